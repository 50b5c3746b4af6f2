package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lacs-cc/auth-gateway/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "auth-gateway-configure",
		Short: "Operations tool for the auth gateway",
		Long:  "CLI tool for inspecting invite codes and testing gateway dependencies",
	}

	rootCmd.AddCommand(commands.NewInvitesCmd())
	rootCmd.AddCommand(commands.NewTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
