package migrations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// ErrChecksumMismatch marks an applied migration whose file has since
// been edited. Ledger tables are append-only, so an applied schema file
// must never change.
var ErrChecksumMismatch = errors.New("applied migration was modified")

// Migration is one embedded schema file and whether it has been applied.
type Migration struct {
	Filename  string
	Checksum  string
	Applied   bool
	AppliedAt time.Time
}

type source struct {
	filename string
	content  []byte
	checksum string
}

// Run verifies applied migrations against their files, then applies the
// pending ones in filename order and returns how many ran. Each file
// runs in its own transaction together with its bookkeeping row.
func Run(ctx context.Context, db *sql.DB) (int, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, fmt.Errorf("ensure migrations table: %w", err)
	}
	sources, err := loadSources()
	if err != nil {
		return 0, fmt.Errorf("load migration files: %w", err)
	}
	applied, err := appliedRows(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("read applied migrations: %w", err)
	}

	var pending []source
	for _, src := range sources {
		row, ok := applied[src.filename]
		if !ok {
			pending = append(pending, src)
			continue
		}
		if row.Checksum != "" && row.Checksum != src.checksum {
			return 0, fmt.Errorf("%w: %s", ErrChecksumMismatch, src.filename)
		}
	}

	for i, src := range pending {
		if err := apply(ctx, db, src); err != nil {
			return i, fmt.Errorf("apply migration %s: %w", src.filename, err)
		}
		slog.Info("migration applied", "file", src.filename)
	}
	if len(pending) == 0 {
		slog.Debug("schema up to date", "migrations", len(sources))
	}
	return len(pending), nil
}

// Status lists every embedded migration in order with its applied time.
func Status(ctx context.Context, db *sql.DB) ([]Migration, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure migrations table: %w", err)
	}
	sources, err := loadSources()
	if err != nil {
		return nil, fmt.Errorf("load migration files: %w", err)
	}
	applied, err := appliedRows(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}

	out := make([]Migration, len(sources))
	for i, src := range sources {
		m := Migration{Filename: src.filename, Checksum: src.checksum}
		if row, ok := applied[src.filename]; ok {
			m.Applied = true
			m.AppliedAt = row.AppliedAt
		}
		out[i] = m
	}
	return out, nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			checksum   TEXT NOT NULL DEFAULT '',
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func appliedRows(ctx context.Context, db *sql.DB) (map[string]Migration, error) {
	rows, err := db.QueryContext(ctx, `SELECT filename, checksum, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]Migration)
	for rows.Next() {
		var m Migration
		var at string
		if err := rows.Scan(&m.Filename, &m.Checksum, &at); err != nil {
			return nil, err
		}
		m.Applied = true
		m.AppliedAt, _ = time.Parse(time.RFC3339, at)
		applied[m.Filename] = m
	}
	return applied, rows.Err()
}

func loadSources() ([]source, error) {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		return nil, err
	}

	var sources []source
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(FS, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		sum := sha256.Sum256(content)
		sources = append(sources, source{
			filename: entry.Name(),
			content:  content,
			checksum: hex.EncodeToString(sum[:]),
		})
	}
	slices.SortFunc(sources, func(a, b source) int { return strings.Compare(a.filename, b.filename) })
	return sources, nil
}

func apply(ctx context.Context, db *sql.DB, src source) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(src.content)); err != nil {
		return fmt.Errorf("execute sql: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (filename, checksum, applied_at) VALUES (?, ?, ?)`,
		src.filename, src.checksum, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}
