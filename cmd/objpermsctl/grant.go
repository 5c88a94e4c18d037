package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/objperms/objperms/pkg/audit"
	"github.com/objperms/objperms/pkg/config"
	"github.com/objperms/objperms/pkg/db"
	"github.com/objperms/objperms/pkg/registry"
	"github.com/objperms/objperms/pkg/rowkey"
	gormstore "github.com/objperms/objperms/pkg/server/store/gorm"
)

// grantCmd represents the grant command
var grantCmd = &cobra.Command{
	Use:   "grant <subject> <kind> <object-id> <permission>...",
	Short: "Grant permissions to a subject on an object",
	Long: `Grant permissions to a user or group on one object.

The subject is addressed in row-key form: user_<id> or group_<id>.
Permissions must exist in the definitions file for the object kind.

Example:
  objpermsctl grant user_3 vm 7 admin start
  objpermsctl grant group_2 vm 7 start`,
	Args: cobra.MinimumNArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runGrant(args[0], args[1], args[2], args[3:]); err != nil {
			fmt.Fprintf(os.Stderr, "Grant failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(grantCmd)
}

func cliActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "objpermsctl"
}

func runGrant(subjectArg, kind, objArg string, perms []string) error {
	subject, err := rowkey.Parse(subjectArg)
	if err != nil {
		return err
	}
	objID, err := strconv.ParseInt(objArg, 10, 64)
	if err != nil {
		return fmt.Errorf("object id %q is not numeric", objArg)
	}

	reg, err := registry.LoadFile(config.Get().RegistryPath)
	if err != nil {
		return fmt.Errorf("loading permission definitions: %w", err)
	}
	kd, ok := reg.Kind(kind)
	if !ok {
		return fmt.Errorf("unknown object kind %q", kind)
	}
	for _, perm := range perms {
		if _, ok := kd.Perm(perm); !ok {
			return fmt.Errorf("unknown permission %q for kind %q", perm, kind)
		}
	}

	database, err := db.Connect(db.Config{})
	if err != nil {
		return err
	}

	subjects := gormstore.NewSubjectsStore(database)
	if _, err := subjects.FetchSubject(subject); err != nil {
		return fmt.Errorf("subject %s: %w", subject, err)
	}

	grants := gormstore.NewGrantsStore(database)
	for _, perm := range perms {
		if err := grants.Grant(subject, kind, objID, perm); err != nil {
			return fmt.Errorf("granting %s: %w", perm, err)
		}
	}

	audit.Log(audit.GrantEvent{
		Actor:   cliActor(),
		Subject: subject,
		ObjKind: kind,
		ObjID:   objID,
		Perms:   perms,
		Success: true,
	})

	fmt.Printf("Granted %s to %s on %s %d\n", strings.Join(perms, ", "), subject, kind, objID)
	return nil
}
