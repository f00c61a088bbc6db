package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/care-practice/internal/domain"
)

// ParticipantRepository implements domain.ParticipantRepository using SQLite.
type ParticipantRepository struct {
	db *sql.DB
}

// NewParticipantRepository creates a new SQLite-backed ParticipantRepository.
func NewParticipantRepository(db *DB) *ParticipantRepository {
	return &ParticipantRepository{db: db.SqlDB}
}

func (r *ParticipantRepository) Create(ctx context.Context, p *domain.Participant) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO participants (id, email, rater_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.RaterID, now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: email already registered", domain.ErrInvalidInput)
		}
		return fmt.Errorf("insert participant: %w", err)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (r *ParticipantRepository) GetByID(ctx context.Context, id string) (*domain.Participant, error) {
	return r.getOne(ctx, "id", id)
}

func (r *ParticipantRepository) GetByEmail(ctx context.Context, email string) (*domain.Participant, error) {
	return r.getOne(ctx, "email", email)
}

func (r *ParticipantRepository) UpdateRaterID(ctx context.Context, id, raterID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE participants SET rater_id = ?, updated_at = ? WHERE id = ?`,
		raterID, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update rater id: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// getOne loads a participant by a trusted column name.
func (r *ParticipantRepository) getOne(ctx context.Context, column, value string) (*domain.Participant, error) {
	p := &domain.Participant{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, rater_id, created_at, updated_at
		 FROM participants WHERE `+column+` = ?`, value,
	).Scan(&p.ID, &p.Email, &p.RaterID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query participant by %s: %w", column, err)
	}
	return p, nil
}

func isUniqueConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "unique constraint")
}
