package domain

import (
	"context"
	"time"
)

// Participant is a signed-in person. The same identity is used as the
// practice participant and, through RaterID, as an assessment rater.
type Participant struct {
	ID        string
	Email     string
	RaterID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity is the verified caller attached to a request.
type Identity struct {
	Participant *Participant
	Instructor  bool
}

// ParticipantRepository defines persistence operations for participants.
type ParticipantRepository interface {
	Create(ctx context.Context, p *Participant) error
	GetByID(ctx context.Context, id string) (*Participant, error)
	GetByEmail(ctx context.Context, email string) (*Participant, error)
	UpdateRaterID(ctx context.Context, id, raterID string) error
}
