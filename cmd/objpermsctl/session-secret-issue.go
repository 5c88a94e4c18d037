package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/objperms/objperms/pkg/config"
	"github.com/objperms/objperms/pkg/db"
	"github.com/objperms/objperms/pkg/server/middleware"
	gormstore "github.com/objperms/objperms/pkg/server/store/gorm"
)

// sessionSecretIssueCmd represents the session-secret > issue command
var sessionSecretIssueCmd = &cobra.Command{
	Use:   "issue <username>",
	Short: "Issue a session token for a user",
	Long: `Issue a signed session token for a user.

The token is signed with the configured session secret and expires after
the configured session TTL. Place it in the panel session cookie of the
user it was issued for.

The username must exist in the users table.

Example:
  objpermsctl session-secret issue alice`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		token, err := issueSessionToken(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token for %s: %v\n", args[0], err)
			os.Exit(1)
		}
		fmt.Println(token)
	},
}

func init() {
	sessionSecretCmd.AddCommand(sessionSecretIssueCmd)
}

func issueSessionToken(username string) (string, error) {
	cfg := config.Get()
	if cfg.SessionSecret == "" {
		return "", fmt.Errorf("no session secret configured; set OBJPERMS_SESSION_SECRET or session_secret in %s", config.ConfigFileName)
	}

	database, err := db.Connect(db.Config{})
	if err != nil {
		return "", err
	}

	subjects := gormstore.NewSubjectsStore(database)
	if _, err := subjects.FindUserByUsername(username); err != nil {
		return "", fmt.Errorf("user %q: %w", username, err)
	}

	auth := middleware.NewSessionAuthenticator(cfg.SessionSecret)
	return auth.Mint(username, cfg.SessionLifetime())
}
