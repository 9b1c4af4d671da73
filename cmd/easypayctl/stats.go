package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"easypay/app/services/dashboard"
)

func statsCmd(rt *deps) *cobra.Command {
	var q dashboard.Query

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := rt.dashboard().Statistics(cmd.Context(), q)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
	cmd.Flags().StringVar(&q.Range, "range", dashboard.Range7d, "today|7d|month|30d|90d|custom")
	cmd.Flags().StringVar(&q.Start, "start", "", "custom range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&q.End, "end", "", "custom range end (YYYY-MM-DD)")
	return cmd
}
