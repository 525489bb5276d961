// Package backup writes consistent snapshots of the list database and
// restores them. Snapshots are plain SQLite files unless a passphrase is
// given, in which case they are sealed with Argon2id and AES-256-GCM.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var sqliteHeader = []byte("SQLite format 3\x00")

// ErrPassphraseRequired is returned when restoring a sealed snapshot without
// a passphrase.
var ErrPassphraseRequired = errors.New("backup is encrypted, passphrase required")

// ErrExists is returned when a restore would overwrite a database file.
var ErrExists = errors.New("database file already exists")

// Create writes a snapshot of db to dst and returns its size in bytes.
// VACUUM INTO produces a consistent copy while the server keeps running.
func Create(ctx context.Context, db *sql.DB, dst, passphrase string) (int64, error) {
	if _, err := os.Stat(dst); err == nil {
		return 0, fmt.Errorf("%s: %w", dst, os.ErrExist)
	}

	snapshot := dst
	if passphrase != "" {
		snapshot = dst + ".tmp"
		defer os.Remove(snapshot)
	}

	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return 0, fmt.Errorf("vacuum into %s: %w", snapshot, err)
	}

	if passphrase != "" {
		plain, err := os.ReadFile(snapshot)
		if err != nil {
			return 0, fmt.Errorf("read snapshot: %w", err)
		}
		sealed, err := Seal(plain, passphrase)
		if err != nil {
			return 0, err
		}
		if err := os.WriteFile(dst, sealed, 0600); err != nil {
			return 0, fmt.Errorf("write backup: %w", err)
		}
	}

	info, err := os.Stat(dst)
	if err != nil {
		return 0, fmt.Errorf("stat backup: %w", err)
	}
	slog.Info("backup written", "path", dst, "bytes", info.Size(), "encrypted", passphrase != "")
	return info.Size(), nil
}

// Restore replaces the database at dbPath with the snapshot in src. The
// server must not be running. Without force an existing dbPath is left
// alone and ErrExists is returned.
func Restore(ctx context.Context, src, dbPath, passphrase string, force bool) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	if !bytes.HasPrefix(data, sqliteHeader) {
		if passphrase == "" {
			return ErrPassphraseRequired
		}
		data, err = Open(data, passphrase)
		if err != nil {
			return err
		}
		if !bytes.HasPrefix(data, sqliteHeader) {
			return fmt.Errorf("restored data is not a SQLite database")
		}
	}

	if _, err := os.Stat(dbPath); err == nil && !force {
		return fmt.Errorf("%s: %w", dbPath, ErrExists)
	}

	tmp := filepath.Join(filepath.Dir(dbPath), "."+filepath.Base(dbPath)+".restore")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	defer os.Remove(tmp)

	if err := checkIntegrity(ctx, tmp); err != nil {
		return err
	}

	// Stale WAL files belong to the old database.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", dbPath+suffix, err)
		}
	}
	if err := os.Rename(tmp, dbPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	slog.Info("backup restored", "from", src, "path", dbPath)
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
