package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/msomdec/care-practice/internal/repository/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle and hands out repositories.
type DB struct {
	SqlDB *sql.DB
}

// New opens a SQLite database at the given path and configures it for use.
// It enables WAL mode and foreign keys.
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets raters read the ledger while another rater appends.
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: db}, nil
}

// Migrate applies pending schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	_, err := migrations.Run(ctx, db.SqlDB)
	return err
}

// MigrationStatus lists the embedded migrations and when each was applied.
func (db *DB) MigrationStatus(ctx context.Context) ([]migrations.Migration, error) {
	return migrations.Status(ctx, db.SqlDB)
}

// MigrateCount applies pending migrations and reports how many ran.
func (db *DB) MigrateCount(ctx context.Context) (int, error) {
	return migrations.Run(ctx, db.SqlDB)
}

func (db *DB) Close() error {
	return db.SqlDB.Close()
}

func (db *DB) Participants() *ParticipantRepository {
	return NewParticipantRepository(db)
}

func (db *DB) PracticeSessions() *PracticeSessionRepository {
	return NewPracticeSessionRepository(db)
}

func (db *DB) Assessments() *AssessmentRepository {
	return NewAssessmentRepository(db)
}

func (db *DB) SelfEfficacy() *SelfEfficacyRepository {
	return NewSelfEfficacyRepository(db)
}

func (db *DB) TurnLog() *TurnLogRepository {
	return NewTurnLogRepository(db)
}
