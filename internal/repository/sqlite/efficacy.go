package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/msomdec/care-practice/internal/domain"
)

// SelfEfficacyRepository is the append-only self-rating ledger.
type SelfEfficacyRepository struct {
	db *sql.DB
}

// NewSelfEfficacyRepository creates a new SQLite-backed SelfEfficacyRepository.
func NewSelfEfficacyRepository(db *DB) *SelfEfficacyRepository {
	return &SelfEfficacyRepository{db: db.SqlDB}
}

func (r *SelfEfficacyRepository) Append(ctx context.Context, row *domain.SelfEfficacyRow) error {
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO self_efficacy (timestamp, participant_id, session_id, phase, mode, scenario,
		 exploration, action, session_mgmt)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Timestamp, row.ParticipantID, row.SessionID, string(row.Phase), string(row.Mode), row.Scenario,
		row.Exploration, row.Action, row.SessionMgmt,
	)
	if err != nil {
		return fmt.Errorf("insert self-efficacy: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get self-efficacy seq: %w", err)
	}
	row.Seq = seq
	return nil
}

func (r *SelfEfficacyRepository) ListByParticipant(ctx context.Context, participantID string) ([]domain.SelfEfficacyRow, error) {
	return r.list(ctx, `WHERE participant_id = ?`, participantID)
}

func (r *SelfEfficacyRepository) ListAll(ctx context.Context) ([]domain.SelfEfficacyRow, error) {
	return r.list(ctx, ``)
}

func (r *SelfEfficacyRepository) list(ctx context.Context, where string, args ...any) ([]domain.SelfEfficacyRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, timestamp, participant_id, session_id, phase, mode, scenario,
		 exploration, action, session_mgmt
		 FROM self_efficacy `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("list self-efficacy: %w", err)
	}
	defer rows.Close()

	var out []domain.SelfEfficacyRow
	for rows.Next() {
		var e domain.SelfEfficacyRow
		var phase, mode string
		if err := rows.Scan(&e.Seq, &e.Timestamp, &e.ParticipantID, &e.SessionID, &phase, &mode, &e.Scenario,
			&e.Exploration, &e.Action, &e.SessionMgmt); err != nil {
			return nil, fmt.Errorf("scan self-efficacy: %w", err)
		}
		e.Phase = domain.Phase(phase)
		e.Mode = domain.Mode(mode)
		out = append(out, e)
	}
	return out, rows.Err()
}
