package domain

import (
	"context"
	"time"
)

// SelfEfficacyRow is one self-rating captured around a practice phase.
type SelfEfficacyRow struct {
	Seq           int64
	Timestamp     time.Time
	ParticipantID string
	SessionID     string
	Phase         Phase
	Mode          Mode
	Scenario      string
	Exploration   int
	Action        int
	SessionMgmt   int
}

// SelfEfficacyRepository is append-only.
type SelfEfficacyRepository interface {
	Append(ctx context.Context, row *SelfEfficacyRow) error
	ListByParticipant(ctx context.Context, participantID string) ([]SelfEfficacyRow, error)
	ListAll(ctx context.Context) ([]SelfEfficacyRow, error)
}
