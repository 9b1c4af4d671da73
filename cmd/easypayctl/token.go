package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"easypay/pkg/jwt"
)

func tokenCmd(rt *deps) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt.loadConfig()
			token, err := jwt.NewJWT().IssueToken(subject, jwt.RoleAdmin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	return cmd
}
