package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// registryCmd represents the registry command
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage the permission definitions",
	Long: `Manage the permission definitions the panel offers per object kind.

Definitions live in a YAML file (registry_path in objperms.yml) and are
mirrored into the registered_permissions table so reporting tools can
resolve labels without the file.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'registry' requires a subcommand (sync, watch)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(registryCmd)
}
