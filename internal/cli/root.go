// Package cli implements ledgerctl, the operator command line for
// splitledger. Commands work directly against the configured database.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/app"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/pkg/logging"
)

// state is shared by every command of one invocation.
type state struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// open builds the ledger without connecting to the event broker.
func (s *state) open() (*app.App, error) {
	return app.Open(s.cfg, app.Options{})
}

// Execute runs ledgerctl with os.Args.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// NewRootCmd returns the ledgerctl command tree.
func NewRootCmd() *cobra.Command {
	s := &state{}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate a splitledger database",
		Long: `ledgerctl prepares and inspects a splitledger database: it runs
migrations, bootstraps the ledger settings, creates groups and bills,
and mints caller tokens for the API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(s.configPath)
			if err != nil {
				return err
			}
			if s.logLevel != "" {
				cfg.Log.Level = s.logLevel
			}
			if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
				return err
			}
			s.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&s.configPath, "config", "c", "", "path to a .toml or .yaml config file")
	root.PersistentFlags().StringVar(&s.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCmd(s),
		newBootstrapCmd(s),
		newSettingsCmd(s),
		newGroupCmd(s),
		newBillCmd(s),
		newTokenCmd(s),
		newHashKeyCmd(),
	)
	return root
}
