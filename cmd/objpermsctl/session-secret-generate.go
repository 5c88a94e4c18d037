package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/objperms/objperms/pkg/server/middleware"
)

// sessionSecretGenerateCmd represents the session-secret > generate command
var sessionSecretGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a session signing secret",
	Long: `
Generate a session signing secret

Use this command to generate a new Base64-encoded 256 bit secret. Once generated, the secret should be placed into the environment of
the panel server. It signs the session tokens that identify who is driving a panel, so mutations can be attributed in the audit log.

Example:

$ export OBJPERMS_SESSION_SECRET="$(objpermsctl session-secret generate)"
`,
	Run: func(cmd *cobra.Command, args []string) {
		secret, _ := middleware.GenerateSecret()
		fmt.Printf("%s", secret)
	},
}

func init() {
	sessionSecretCmd.AddCommand(sessionSecretGenerateCmd)
}
