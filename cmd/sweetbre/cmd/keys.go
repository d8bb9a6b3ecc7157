package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/solatis/sweetbre/internal/core/auth"
	"github.com/solatis/sweetbre/internal/core/config"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys and HMAC secrets",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Mint an API key signed with a configured HMAC secret",
	Args:  cobra.NoArgs,
	RunE:  runKeysGenerate,
}

var keysSecretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Print a new SB_HMAC_SECRET value",
	Args:  cobra.NoArgs,
	RunE:  runKeysSecret,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd, keysSecretCmd)
	keysGenerateCmd.Flags().String("secret-id", "", "secret to sign with (optional when exactly one is configured)")
}

func runKeysGenerate(cmd *cobra.Command, args []string) error {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	secretID, _ := cmd.Flags().GetString("secret-id")
	secretID, err = pickSecret(secrets, secretID)
	if err != nil {
		return err
	}
	key, err := auth.GenerateAPIKey(secretID, secrets[secretID])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}

func pickSecret(secrets map[string][]byte, secretID string) (string, error) {
	if len(secrets) == 0 {
		return "", fmt.Errorf("no HMAC secrets configured (set SB_HMAC_SECRET)")
	}
	if secretID != "" {
		if _, ok := secrets[secretID]; !ok {
			return "", fmt.Errorf("secret %s is not configured", secretID)
		}
		return secretID, nil
	}
	if len(secrets) > 1 {
		return "", fmt.Errorf("%d secrets configured, choose one with --secret-id", len(secrets))
	}
	for id := range secrets {
		secretID = id
	}
	return secretID, nil
}

func runKeysSecret(cmd *cobra.Command, args []string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	secretID := strings.ReplaceAll(id.String(), "-", "")
	fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", secretID, base64.StdEncoding.EncodeToString(secret))
	return nil
}
