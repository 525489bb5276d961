package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/nomnom/internal/backup"
	"github.com/dukerupert/nomnom/internal/database"
)

func newBackupCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a snapshot of the database",
		Long: "Write a consistent snapshot of the database. The snapshot is encrypted " +
			"when NOMNOM_BACKUP_PASSPHRASE is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = fmt.Sprintf("nomnom-backup-%s.db", time.Now().UTC().Format("2006-01-02T150405Z"))
				if a.cfg.BackupPassphrase != "" {
					out += ".enc"
				}
			}

			db, err := database.Open(a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if _, err := backup.Create(cmd.Context(), db, out, a.cfg.BackupPassphrase); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "snapshot path (default nomnom-backup-<timestamp>.db)")
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <snapshot>",
		Short: "Replace the database with a snapshot",
		Long:  "Replace the database with a snapshot. Stop the server first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return backup.Restore(cmd.Context(), args[0], a.cfg.DBPath, a.cfg.BackupPassphrase, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing database file")
	return cmd
}
