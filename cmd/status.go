package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Shows what the store already holds",
		Long:  "Prints the number of stored ids, the largest one, and the lower bound an automatic crawl would start from.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.requireApp()
			if err != nil {
				return err
			}
			st, err := a.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "known ids:  %d\n", st.KnownIDs)
			if st.HasMax {
				fmt.Fprintf(out, "max id:     %d\n", st.MaxID)
			} else {
				fmt.Fprintln(out, "max id:     none")
			}
			fmt.Fprintf(out, "next lower: %d\n", st.NextLower)
			return nil
		},
	}
}
