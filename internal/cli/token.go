package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/auth"
)

// EnvOperatorKey supplies the operator key when --operator-key is absent.
const EnvOperatorKey = "SPLITLEDGER_OPERATOR_KEY"

func newTokenCmd(s *state) *cobra.Command {
	var account, role, operatorKey string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token for an account",
		Long: `Mint a signed API token for an account. The operator key is checked
against auth.operator_key_hash before anything is signed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is required to sign tokens")
			}
			if operatorKey == "" {
				operatorKey = os.Getenv(EnvOperatorKey)
			}
			if err := auth.VerifyOperatorKey(s.cfg.Auth.OperatorKeyHash, operatorKey); err != nil {
				return err
			}

			jwt := auth.NewJWTManager(s.cfg.Auth.JWTSecret, s.cfg.Auth.Issuer, s.cfg.Auth.TokenTTLDuration())
			token, err := jwt.Generate(account, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "account the token acts as")
	cmd.Flags().StringVar(&role, "role", auth.RoleMember, "token role (member or operator)")
	cmd.Flags().StringVar(&operatorKey, "operator-key", "", "operator key (or $"+EnvOperatorKey+")")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key",
		Short: "Hash an operator key read from stdin",
		Long: `Read an operator key from the first line of stdin and print the bcrypt
hash to put in auth.operator_key_hash.`,
		Args: cobra.NoArgs,
		// Hashing needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read key: %w", err)
			}
			hash, err := auth.HashOperatorKey(strings.TrimSpace(line))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
