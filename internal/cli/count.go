package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCountCmd(opts *options) *cobra.Command {
	var (
		filters searchFlags
		byType  bool
	)

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count matching awards",
		RunE: func(cmd *cobra.Command, args []string) error {
			if byType {
				filters.category = ""
				filters.codes = nil
			}

			awards, c, err := opts.awards()
			if err != nil {
				return err
			}
			defer c.Close()

			search, err := filters.apply(awards.Search())
			if err != nil {
				return err
			}

			if byType {
				counts, err := search.CountByType(cmd.Context())
				if err != nil {
					return fmt.Errorf("count awards by type: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), counts)
			}

			n, err := search.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("count awards: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int{"count": n})
		},
	}

	filters.register(cmd.Flags(), "contracts")
	cmd.Flags().BoolVar(&byType, "by-type", false, "Count every award category (ignores --type and --award-type)")

	return cmd
}
