package cli

import (
	"github.com/planetary-society/usaspending-orm/pkg/resources"
	"github.com/spf13/cobra"
)

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "get AWARD_ID...",
		Short:   "Fetch awards by generated unique award id",
		Example: "  usaspending get CONT_AWD_80GSFC18C0008_8000_-NONE-_-NONE-",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			awards, c, err := opts.awards()
			if err != nil {
				return err
			}
			defer c.Close()

			out := make([]*resources.Award, 0, len(args))
			for _, id := range args {
				award, err := awards.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				out = append(out, award)
			}

			if len(out) == 1 {
				return writeJSON(cmd.OutOrStdout(), out[0])
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}
