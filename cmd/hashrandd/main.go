// Command hashrandd runs the zero-knowledge auth / ephemeral-secret-sharing
// HTTP service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hashrandd",
	Short: "hashrandd - zero-knowledge auth and ephemeral secret sharing daemon",
	Long: `hashrandd issues and validates short-lived session tokens bound to
per-session Ed25519/X25519 keypairs and hosts an ephemeral, OTP-protected
shared-secret exchange, entirely on pseudonymous user IDs derived from email
addresses rather than stored accounts.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
