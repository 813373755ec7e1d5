package cli

import (
	"fmt"
	"strings"

	"github.com/planetary-society/usaspending-orm/pkg/query"
	"github.com/planetary-society/usaspending-orm/pkg/session"
	"github.com/spf13/cobra"
)

func newSearchCmd(opts *options) *cobra.Command {
	var (
		filters     searchFlags
		limit       int
		pageSize    int
		maxPages    int
		orderBy     string
		order       string
		details     bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search awards",
		Example: `  usaspending search --type contracts --fiscal-year 2024 --agency "National Aeronautics and Space Administration" --limit 20
  usaspending search --type grants --keyword lunar --order-by "Award Amount" --details`,
		RunE: func(cmd *cobra.Command, args []string) error {
			awards, c, err := opts.awards()
			if err != nil {
				return err
			}
			defer c.Close()

			search, err := filters.apply(awards.Search())
			if err != nil {
				return err
			}
			if limit > 0 {
				search = search.Limit(limit)
			}
			if pageSize > 0 {
				search = search.PageSize(pageSize)
			}
			if maxPages > 0 {
				search = search.MaxPages(maxPages)
			}
			if orderBy != "" {
				search = search.OrderBy(orderBy, query.Direction(strings.ToLower(order)))
			}

			results, err := search.All(cmd.Context())
			if err != nil {
				return fmt.Errorf("search awards: %w", err)
			}

			if details {
				records := make([]*session.Record, len(results))
				for i, a := range results {
					records[i] = a.Record()
				}
				if err := session.LoadAll(cmd.Context(), records, concurrency); err != nil {
					return err
				}
			}

			opts.logger.Info().Int("awards", len(results)).Msg("Search complete")
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}

	filters.register(cmd.Flags(), "contracts")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of awards (0 for all)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Records per request (max 100)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Stop after this many pages")
	cmd.Flags().StringVar(&orderBy, "order-by", "", `Sort field, e.g. "Award Amount"`)
	cmd.Flags().StringVar(&order, "order", string(query.Desc), "Sort direction (asc, desc)")
	cmd.Flags().BoolVar(&details, "details", false, "Load the full detail document of every award")
	cmd.Flags().IntVar(&concurrency, "concurrency", session.DefaultLoadConcurrency, "Parallel detail requests with --details")

	return cmd
}
