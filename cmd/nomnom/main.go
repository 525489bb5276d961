package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/nomnom/internal/config"
	"github.com/dukerupert/nomnom/internal/logging"
)

type app struct {
	cfg    *config.Config
	dbPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:          "nomnom",
		Short:        "Shared grocery lists with live updates",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if a.dbPath != "" {
				cfg.DBPath = a.dbPath
			}
			a.cfg = cfg
			logging.Setup(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (overrides NOMNOM_DB_PATH)")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newTokenCmd(a))
	cmd.AddCommand(newBackupCmd(a))
	cmd.AddCommand(newRestoreCmd(a))
	return cmd
}
