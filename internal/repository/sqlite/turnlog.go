package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/msomdec/care-practice/internal/domain"
)

// TurnLogRepository stores per-turn scores and session snapshots.
type TurnLogRepository struct {
	db *sql.DB
}

// NewTurnLogRepository creates a new SQLite-backed TurnLogRepository.
func NewTurnLogRepository(db *DB) *TurnLogRepository {
	return &TurnLogRepository{db: db.SqlDB}
}

func (r *TurnLogRepository) AppendTurn(ctx context.Context, e *domain.TurnLogEntry) error {
	flags, err := json.Marshal(e.Flags)
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO turn_log (timestamp, session_id, phase, mode, scenario, turn_index, text, flags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.SessionID, string(e.Phase), string(e.Mode), e.Scenario, e.TurnIndex, e.Text, string(flags),
	)
	if err != nil {
		return fmt.Errorf("insert turn log: %w", err)
	}
	return nil
}

func (r *TurnLogRepository) AppendSnapshot(ctx context.Context, s *domain.SessionSnapshot) error {
	rates, err := json.Marshal(s.Rates)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO session_snapshots (timestamp, session_id, phase, mode, scenario, turns, rates,
		 counselor_words, gap_words, gap_ratio)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Timestamp, s.SessionID, string(s.Phase), string(s.Mode), s.Scenario, s.Turns, string(rates),
		s.CounselorWords, s.GapWords, s.GapRatio,
	)
	if err != nil {
		return fmt.Errorf("insert session snapshot: %w", err)
	}
	return nil
}

func (r *TurnLogRepository) ListTurns(ctx context.Context, sessionID string) ([]domain.TurnLogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT timestamp, session_id, phase, mode, scenario, turn_index, text, flags
		 FROM turn_log WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turn log: %w", err)
	}
	defer rows.Close()

	var out []domain.TurnLogEntry
	for rows.Next() {
		var e domain.TurnLogEntry
		var phase, mode, flags string
		if err := rows.Scan(&e.Timestamp, &e.SessionID, &phase, &mode, &e.Scenario, &e.TurnIndex, &e.Text, &flags); err != nil {
			return nil, fmt.Errorf("scan turn log: %w", err)
		}
		e.Phase = domain.Phase(phase)
		e.Mode = domain.Mode(mode)
		if err := json.Unmarshal([]byte(flags), &e.Flags); err != nil {
			return nil, fmt.Errorf("decode flags: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
