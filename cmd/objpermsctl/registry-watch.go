package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/objperms/objperms/pkg/config"
	"github.com/objperms/objperms/pkg/db"
)

// registryWatchCmd represents the registry watch command
var registryWatchCmd = &cobra.Command{
	Use:   "watch [file]",
	Short: "Watch the definitions file and resync when it changes",
	Long: `Watch the permission definitions file and resync the database
whenever it changes.

Useful next to a config-management tool that rewrites the file in place.
When no file is given, registry_path from the configuration is used.

Example:
  objpermsctl registry watch
  objpermsctl registry watch /etc/objperms/registry.yml`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		filename := config.Get().RegistryPath
		if len(args) > 0 {
			filename = args[0]
		}

		if err := watchRegistry(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to watch definitions: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	registryCmd.AddCommand(registryWatchCmd)
}

func watchRegistry(filename string) error {
	database, err := db.Connect(db.Config{})
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filename); err != nil {
		return fmt.Errorf("failed to watch file %s: %w", filename, err)
	}

	// Sync once up front so the watcher never starts stale.
	if err := syncRegistryFromFile(database, filename); err != nil {
		fmt.Fprintf(os.Stderr, "Error syncing definitions: %v\n", err)
	}

	fmt.Printf("Watching %s for permission definition changes\n", filename)

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				fmt.Printf("[%s] Definitions changed, resyncing...\n", time.Now().Format(time.RFC3339))

				if err := syncRegistryFromFile(database, filename); err != nil {
					fmt.Fprintf(os.Stderr, "Error syncing definitions: %v\n", err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watcher error: %v\n", err)
		case <-sigChan:
			fmt.Println("\nShutting down...")
			return nil
		}
	}
}
