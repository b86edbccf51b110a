package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/solatis/searchtrace/internal/core/auth"
	"github.com/solatis/searchtrace/internal/core/config"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys for the graph service",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Mint an API key signed with a configured HMAC secret",
	Args:  cobra.NoArgs,
	RunE:  runKeysCreate,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysCreateCmd)
	keysCreateCmd.Flags().String("secret-id", "", "secret to sign with (required when several are configured)")
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set ST_HMAC_SECRET environment variable)")
	}

	secretID, _ := cmd.Flags().GetString("secret-id")
	if secretID == "" {
		if len(secrets) > 1 {
			ids := make([]string, 0, len(secrets))
			for id := range secrets {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			return fmt.Errorf("--secret-id required, configured secrets: %v", ids)
		}
		for id := range secrets {
			secretID = id
		}
	}

	secret, ok := secrets[secretID]
	if !ok {
		return fmt.Errorf("secret %q is not configured", secretID)
	}
	key, err := auth.NewAPIKey(secret, secretID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}
