package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/care-practice/internal/domain"
)

// PracticeSessionRepository stores each participant's live protocol
// state as a JSON document.
type PracticeSessionRepository struct {
	db *sql.DB
}

// NewPracticeSessionRepository creates a new SQLite-backed PracticeSessionRepository.
func NewPracticeSessionRepository(db *DB) *PracticeSessionRepository {
	return &PracticeSessionRepository{db: db.SqlDB}
}

func (r *PracticeSessionRepository) Get(ctx context.Context, participantID string) (*domain.SessionState, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT state FROM practice_sessions WHERE participant_id = ?`, participantID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get practice session: %w", err)
	}

	state := &domain.SessionState{}
	if err := json.Unmarshal([]byte(raw), state); err != nil {
		return nil, fmt.Errorf("decode practice session: %w", err)
	}
	if state.TurnCount == nil {
		state.TurnCount = make(map[domain.Phase]int)
	}
	if state.Completed == nil {
		state.Completed = make(map[domain.Phase]bool)
	}
	return state, nil
}

// Save upserts the state for its participant.
func (r *PracticeSessionRepository) Save(ctx context.Context, state *domain.SessionState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode practice session: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO practice_sessions (participant_id, session_id, phase, state, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(participant_id) DO UPDATE SET
		   session_id = excluded.session_id,
		   phase = excluded.phase,
		   state = excluded.state,
		   updated_at = excluded.updated_at`,
		state.ParticipantID, state.SessionID, string(state.Phase), string(raw), state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save practice session: %w", err)
	}
	return nil
}
