package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

func newMigrateCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.New(s.cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date\n", s.cfg.Database.Path)
			return nil
		},
	}
}

func newBootstrapCmd(s *state) *cobra.Command {
	var admin string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Store the initial ledger settings",
		Long: `Store the initial ledger settings from the configuration. Running it
again leaves existing settings untouched and prints them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if admin != "" {
				s.cfg.Ledger.Admin = admin
			}
			if s.cfg.Ledger.Admin == "" {
				return fmt.Errorf("an admin account is required (--admin or ledger.admin)")
			}

			a, err := s.open()
			if err != nil {
				return err
			}
			defer a.Close()

			settings, err := a.Bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			printSettings(cmd, settings)
			return nil
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "admin account (overrides ledger.admin)")
	return cmd
}

func newSettingsCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Show the current ledger settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open()
			if err != nil {
				return err
			}
			defer a.Close()

			settings, err := a.Ledger.Settings(cmd.Context())
			if err != nil {
				return err
			}
			printSettings(cmd, settings)
			return nil
		},
	}
}

func printSettings(cmd *cobra.Command, settings *models.Settings) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "admin:                 %s\n", settings.Admin)
	fmt.Fprintf(out, "payment fee:           %d%%\n", settings.PaymentFeePercent)
	fmt.Fprintf(out, "settlement threshold:  %d%%\n", settings.SettlementThresholdPercent)
	fmt.Fprintf(out, "max payments per bill: %d\n", settings.MaxPaymentsPerBill)
	fmt.Fprintf(out, "max shares per bill:   %d\n", settings.MaxSharesPerBill)
}
