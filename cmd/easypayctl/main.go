// easypayctl 运维命令行：状态同步、取消、导出、统计和管理后台 Token
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	btsConfig "easypay/config"
)

func init() {
	btsConfig.Initialize()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var env string

	rootCmd := &cobra.Command{
		Use:           "easypayctl",
		Short:         "EasyPay payment operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "load .env.<env> instead of .env")

	rt := &deps{env: &env}
	rootCmd.PersistentPostRun = func(*cobra.Command, []string) { rt.close() }
	rootCmd.AddCommand(
		syncCmd(rt),
		cancelCmd(rt),
		exportCmd(rt),
		statsCmd(rt),
		tokenCmd(rt),
	)
	return rootCmd
}
