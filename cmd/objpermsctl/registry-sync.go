package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/objperms/objperms/pkg/audit"
	"github.com/objperms/objperms/pkg/config"
	"github.com/objperms/objperms/pkg/db"
	"github.com/objperms/objperms/pkg/registry"
)

// registrySyncCmd represents the registry sync command
var registrySyncCmd = &cobra.Command{
	Use:   "sync [file]",
	Short: "Upsert the permission definitions into the database",
	Long: `Upsert the permission definitions into the registered_permissions table.

Rows for permissions no longer in the file are left in place, so servers
still running an older definitions file keep resolving their vocabulary.

When no file is given, registry_path from the configuration is used.

Example:
  objpermsctl registry sync
  objpermsctl registry sync /etc/objperms/registry.yml`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		filename := config.Get().RegistryPath
		if len(args) > 0 {
			filename = args[0]
		}

		database, err := db.Connect(db.Config{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to connect to DB: %v\n", err)
			os.Exit(1)
		}

		if err := syncRegistryFromFile(database, filename); err != nil {
			fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	registryCmd.AddCommand(registrySyncCmd)
}

func syncRegistryFromFile(database *gorm.DB, filename string) error {
	reg, err := registry.LoadFile(filename)
	if err != nil {
		audit.Log(audit.RegistrySyncEvent{Path: filename, ErrorMessage: err.Error()})
		return err
	}

	perms := 0
	for _, k := range reg.Kinds {
		perms += len(k.Permissions)
	}

	if err := reg.Sync(database); err != nil {
		audit.Log(audit.RegistrySyncEvent{
			Path:         filename,
			Kinds:        len(reg.Kinds),
			Permissions:  perms,
			ErrorMessage: err.Error(),
		})
		return err
	}

	audit.Log(audit.RegistrySyncEvent{
		Path:        filename,
		Kinds:       len(reg.Kinds),
		Permissions: perms,
		Success:     true,
	})

	fmt.Printf("Synced %d permission(s) across %d kind(s) from %s\n", perms, len(reg.Kinds), filename)
	return nil
}
