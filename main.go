package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"tasnim.dev/role-grant/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "role-grant",
		Short:         "Time-boxed IAM role grants with approval and automatic cleanup",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(cmd.NewServeCmd())
	rootCmd.AddCommand(cmd.NewCleanupCmd())
	rootCmd.AddCommand(cmd.NewLambdaCmd())
	rootCmd.AddCommand(cmd.NewPoliciesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
