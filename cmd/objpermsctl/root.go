package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "objpermsctl",
	Short: "Per-object permissions panel server and tooling",
	Long: `objpermsctl runs the per-object permissions panel server and manages
its database schema, permission definitions, and grants.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
