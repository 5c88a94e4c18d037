package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/objperms/objperms/pkg/config"
	"github.com/objperms/objperms/pkg/db"
	"github.com/objperms/objperms/pkg/registry"
	"github.com/objperms/objperms/pkg/server"
	"github.com/objperms/objperms/pkg/server/endpoints"
)

func defaultPortInt() int {
	if _, portStr, err := net.SplitHostPort(config.Get().ListenAddr); err == nil {
		if p, err := strconv.Atoi(portStr); err == nil {
			return p
		}
	}
	return 8080
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the permissions panel server",
	Long: `Run the permissions panel server.

Requires the DATABASE_URL environment variable. Panel settings come from
objperms.yml (see OBJPERMS_CONFIG_PATH) and OBJPERMS_* environment
variables.

By default, database migrations are run on startup. Use --no-migrate to skip.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Validate required environment variables first (fail fast)
		if os.Getenv("DATABASE_URL") == "" {
			fmt.Fprintln(os.Stderr, "DATABASE_URL environment variable is required")
			os.Exit(1)
		}

		cfg := config.Get()
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.ListenAddr = listen
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(1)
		}

		// Run migrations unless --no-migrate is set
		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			log.Println("Running database migrations...")
			if err := runMigrations(); err != nil {
				fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
				os.Exit(1)
			}
		}

		reg, err := registry.LoadFile(cfg.RegistryPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to load permission definitions: %v\n", err)
			os.Exit(1)
		}

		database, err := db.Connect(db.Config{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to connect to DB: %v\n", err)
			os.Exit(1)
		}

		// Keep the registered_permissions vocabulary in step with the
		// definitions file the server was started with.
		if err := reg.Sync(database); err != nil {
			fmt.Fprintf(os.Stderr, "Unable to sync permission definitions: %v\n", err)
			os.Exit(1)
		}

		s := server.NewServer(cfg, reg, database)

		endpoints.RegisterAll(s)

		log.Printf("Running panel server at http://%s%s...\n", cfg.ListenAddr, cfg.BasePath)
		log.Fatal(s.Start())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringP("listen", "l", "", "listen address (overrides listen_addr)")
	serverCmd.Flags().Bool("no-migrate", false, "skip running database migrations on start")
}
