package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// sessionSecretCmd represents the session-secret command
var sessionSecretCmd = &cobra.Command{
	Use:   "session-secret",
	Short: "Manage the session token signing secret",
	Long:  `Manage the session token signing secret`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'session-secret' requires a subcommand (generate, issue)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(sessionSecretCmd)
}
