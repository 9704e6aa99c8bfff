// internal/cli/token.go
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jobmesh/harvester/internal/ingest/apiboard"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API credentials in the OS keyring",
	// Credentials management needs no sources file or browser; skip the
	// application bootstrap the other commands get from the root command.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	PersistentPostRun: func(cmd *cobra.Command, args []string) {},
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [account]",
	Short: "Store a bearer token for the structured board API",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := "api"
		if len(args) == 1 {
			account = args[0]
		}

		fmt.Printf("Token for %q: ", account)
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return fmt.Errorf("read token: %w", scanner.Err())
		}
		token := strings.TrimSpace(scanner.Text())
		if token == "" {
			return fmt.Errorf("empty token")
		}

		if err := apiboard.StoreToken(account, token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		fmt.Printf("Stored token for %q\n", account)
		return nil
	},
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete [account]",
	Short: "Remove a stored token",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := "api"
		if len(args) == 1 {
			account = args[0]
		}
		if err := apiboard.DeleteToken(account); err != nil {
			return fmt.Errorf("delete token: %w", err)
		}
		fmt.Printf("Deleted token for %q\n", account)
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd, tokenDeleteCmd)
	rootCmd.AddCommand(tokenCmd)
}
