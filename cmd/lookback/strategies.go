package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/lookback/internal/strategy/builtin"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List available strategies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tKIND\tPERIODIC\tDESCRIPTION")
		for _, info := range builtin.NewRegistry(nil).Describe() {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", info.Name, info.Kind, info.Periodic, info.Description)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
