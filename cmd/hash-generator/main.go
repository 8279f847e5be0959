// Command hash-generator produces credentials for the meal-plan API: bcrypt
// hashes for auth.api_key_hash and signed bearer tokens for clients.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/phrazzld/mealplan-api/internal/service/auth"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "hash-generator",
		Short:         "Generate API key hashes and bearer tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.AddCommand(newAPIKeyCommand(), newTokenCommand())
	return root
}

func newAPIKeyCommand() *cobra.Command {
	var (
		key  string
		cost int
	)
	cmd := &cobra.Command{
		Use:   "api-key",
		Short: "Hash an API key for auth.api_key_hash",
		Long:  "Hash an API key with bcrypt. A random key is generated when --key is empty.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if key == "" {
				generated, err := randomKey()
				if err != nil {
					return err
				}
				key = generated
			}
			hash, err := auth.HashAPIKey(key, cost)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key: %s\nHash: %s\n", key, hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "API key to hash")
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func newTokenCommand() *cobra.Command {
	var (
		secret   string
		subject  string
		lifetime time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("MEALPLAN_AUTH_JWT_SECRET")
			}
			svc, err := auth.NewJWTService(secret)
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(context.Background(), subject, lifetime)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to $MEALPLAN_AUTH_JWT_SECRET)")
	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().DurationVar(&lifetime, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func randomKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
