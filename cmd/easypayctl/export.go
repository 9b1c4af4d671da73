package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	model "easypay/app/models/payment"
	"easypay/app/repositories"
	"easypay/app/services/export"
	"easypay/pkg/app"
)

func exportCmd(rt *deps) *cobra.Command {
	var (
		out, status, from, to string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export payments as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt.loadConfig()
			loc := app.Location()

			var filter repositories.PaymentFilter
			if status != "" {
				filter.Status = model.Status(status)
				if !filter.Status.Valid() {
					return fmt.Errorf("invalid status %q", status)
				}
			}
			if from != "" {
				t, err := time.ParseInLocation("2006-01-02", from, loc)
				if err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
				filter.From = &t
			}
			if to != "" {
				t, err := time.ParseInLocation("2006-01-02", to, loc)
				if err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
				t = t.AddDate(0, 0, 1)
				filter.To = &t
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			n, err := export.Export(cmd.Context(), w, rt.repository(), filter, loc)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d payment(s) written to %s\n", n, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, e.g. "+export.FileName(time.Now())+"; stdout when empty")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&from, "from", "", "created from date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "created to date inclusive (YYYY-MM-DD)")
	return cmd
}
