// Package cli implements the usaspending command line tool.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/planetary-society/usaspending-orm/pkg/client"
	"github.com/planetary-society/usaspending-orm/pkg/logging"
	"github.com/planetary-society/usaspending-orm/pkg/resources"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath   string
	baseURL      string
	cacheBackend string
	noCache      bool
	logLevel     string
	logFile      string
	pretty       bool
	metricsAddr  string

	logger  zerolog.Logger
	metrics *metricsServer
}

// NewRootCmd creates the root cobra command for the usaspending CLI.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "usaspending",
		Short: "Query federal spending data from USAspending.gov",
		Long: "usaspending searches, counts and fetches awards through the USAspending.gov API " +
			"with caching, rate limiting and retries. Results are printed as JSON.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.logger = logging.Setup(logging.Config{
				Level:  logging.LogLevel(opts.logLevel),
				Pretty: opts.pretty,
				Output: cmd.ErrOrStderr(),
				File:   opts.logFile,
			})
			if opts.metricsAddr == "" {
				return nil
			}
			m, err := startMetricsServer(opts.metricsAddr, opts.logger)
			if err != nil {
				return fmt.Errorf("start metrics server: %w", err)
			}
			opts.metrics = m
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.metrics != nil {
				opts.metrics.Shutdown()
			}
		},
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (USASPENDING_* env vars override it)")
	flags.StringVar(&opts.baseURL, "base-url", "", "API root URL")
	flags.StringVar(&opts.cacheBackend, "cache-backend", "", "Cache backend (memory, file, badger, sqlite, redis)")
	flags.BoolVar(&opts.noCache, "no-cache", false, "Disable response caching")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFile, "log-file", "", "Also write JSON logs to this rotated file")
	flags.BoolVar(&opts.pretty, "pretty-logs", false, "Human readable log output")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	root.AddCommand(
		newSearchCmd(opts),
		newCountCmd(opts),
		newGetCmd(opts),
	)

	return root
}

// awards builds a client from the config file, environment and flags.
// The caller closes the returned client.
func (o *options) awards() (*resources.Awards, *client.Client, error) {
	cfg, err := client.LoadConfig(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.cacheBackend != "" {
		cfg.CacheBackend = o.cacheBackend
	}
	if o.noCache {
		cfg.CacheEnabled = false
	}
	cfg.Logger = &o.logger

	c, err := client.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create client: %w", err)
	}
	return resources.NewAwards(c, o.logger), c, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
