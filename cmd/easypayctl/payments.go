package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	model "easypay/app/models/payment"
	paymentsvc "easypay/app/services/payment"
)

func syncCmd(rt *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <id>...",
		Short: "Sync completed payments with the gateway status",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			result := rt.payments().SyncMany(cmd.Context(), ids)
			return printBulk(cmd.OutOrStdout(), result)
		},
	}
}

func cancelCmd(rt *deps) *cobra.Command {
	var (
		reason string
		amount int64
	)

	cmd := &cobra.Command{
		Use:   "cancel <id>...",
		Short: "Cancel payments in full, or one payment partially with --amount",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			if amount > 0 {
				if len(ids) != 1 {
					return fmt.Errorf("--amount needs exactly one payment id")
				}
				p, err := rt.payments().Cancel(cmd.Context(), ids[0], paymentsvc.CancelInput{
					Type:   model.CancelPartial,
					Amount: amount,
					Reason: reason,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "payment %d %s, cancelled %d, remaining %d\n",
					p.ID, p.Status, p.CancelledAmount, p.RemainingAmount())
				return nil
			}

			result := rt.payments().CancelMany(cmd.Context(), ids, reason)
			return printBulk(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "cancel reason sent to the gateway")
	cmd.Flags().Int64Var(&amount, "amount", 0, "partial cancel amount")
	return cmd
}

func printBulk(w io.Writer, result paymentsvc.BulkResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d payment(s) failed", len(result.Failed))
	}
	return nil
}
