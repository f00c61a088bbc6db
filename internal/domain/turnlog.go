package domain

import (
	"context"
	"time"
)

// TurnLogEntry records one scored counselor turn for later analysis.
type TurnLogEntry struct {
	Timestamp time.Time
	SessionID string
	Phase     Phase
	Mode      Mode
	Scenario  string
	TurnIndex int
	Text      string
	Flags     SkillFlags
}

// SessionSnapshot records aggregate rates after a turn.
type SessionSnapshot struct {
	Timestamp      time.Time
	SessionID      string
	Phase          Phase
	Mode           Mode
	Scenario       string
	Turns          int
	Rates          map[Skill]float64
	CounselorWords int
	GapWords       int
	GapRatio       float64
}

// TurnLogRepository stores turn and snapshot rows.
type TurnLogRepository interface {
	AppendTurn(ctx context.Context, entry *TurnLogEntry) error
	AppendSnapshot(ctx context.Context, snap *SessionSnapshot) error
	ListTurns(ctx context.Context, sessionID string) ([]TurnLogEntry, error)
}
