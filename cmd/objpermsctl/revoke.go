package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/objperms/objperms/pkg/audit"
	"github.com/objperms/objperms/pkg/db"
	"github.com/objperms/objperms/pkg/rowkey"
	gormstore "github.com/objperms/objperms/pkg/server/store/gorm"
)

// revokeCmd represents the revoke command
var revokeCmd = &cobra.Command{
	Use:   "revoke <subject> <kind> <object-id> [permission...]",
	Short: "Revoke permissions from a subject on an object",
	Long: `Revoke permissions from a user or group on one object.

With --all, every permission the subject holds on the object is removed.
Named permissions are not checked against the definitions file, so grants
left behind by an older definitions file can still be cleaned up.

Example:
  objpermsctl revoke user_3 vm 7 admin
  objpermsctl revoke group_2 vm 7 --all`,
	Args: cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		all, err := cmd.Flags().GetBool("all")
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		if err := runRevoke(args[0], args[1], args[2], args[3:], all); err != nil {
			fmt.Fprintf(os.Stderr, "Revoke failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	revokeCmd.Flags().BoolP("all", "a", false, "Revoke every permission the subject holds on the object")

	rootCmd.AddCommand(revokeCmd)
}

func runRevoke(subjectArg, kind, objArg string, perms []string, all bool) error {
	subject, err := rowkey.Parse(subjectArg)
	if err != nil {
		return err
	}
	objID, err := strconv.ParseInt(objArg, 10, 64)
	if err != nil {
		return fmt.Errorf("object id %q is not numeric", objArg)
	}

	if all && len(perms) > 0 {
		return fmt.Errorf("--all does not take permission arguments")
	}
	if !all && len(perms) == 0 {
		return fmt.Errorf("name the permissions to revoke, or pass --all")
	}

	database, err := db.Connect(db.Config{})
	if err != nil {
		return err
	}

	grants := gormstore.NewGrantsStore(database)

	if all {
		removed, err := grants.RevokeAll(subject, kind, objID)
		if err != nil {
			return err
		}

		audit.Log(audit.RevokeEvent{
			Actor:   cliActor(),
			Subject: subject,
			ObjKind: kind,
			ObjID:   objID,
			Perms:   removed,
			All:     true,
			Success: true,
		})

		fmt.Printf("Revoked all permissions (%d) from %s on %s %d\n", len(removed), subject, kind, objID)
		return nil
	}

	for _, perm := range perms {
		if err := grants.Revoke(subject, kind, objID, perm); err != nil {
			return fmt.Errorf("revoking %s: %w", perm, err)
		}
	}

	audit.Log(audit.RevokeEvent{
		Actor:   cliActor(),
		Subject: subject,
		ObjKind: kind,
		ObjID:   objID,
		Perms:   perms,
		Success: true,
	})

	fmt.Printf("Revoked %s from %s on %s %d\n", strings.Join(perms, ", "), subject, kind, objID)
	return nil
}
