package domain

import (
	"context"
	"time"
)

// Phase is one stage of the practice protocol.
type Phase string

const (
	PhasePre      Phase = "pre"
	PhasePractice Phase = "practice"
	PhasePost     Phase = "post"
)

// Phases lists the protocol stages in order.
var Phases = []Phase{PhasePre, PhasePractice, PhasePost}

// Next returns the phase after p. ok is false for the last phase.
func (p Phase) Next() (Phase, bool) {
	switch p {
	case PhasePre:
		return PhasePractice, true
	case PhasePractice:
		return PhasePost, true
	}
	return "", false
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p == PhasePre || p == PhasePractice || p == PhasePost
}

// Mode selects whether feedback is shown during practice.
type Mode string

const (
	ModePracticeOnly     Mode = "practice_only"
	ModePracticeFeedback Mode = "practice_feedback"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModePracticeOnly || m == ModePracticeFeedback
}

// MicroFeedback is the short coaching note attached to one counselor turn.
type MicroFeedback struct {
	StrengthTitle string `json:"strengthTitle"`
	StrengthNote  string `json:"strengthNote"`
	FeedbackTitle string `json:"feedbackTitle"`
	FeedbackNote  string `json:"feedbackNote"`
	AltResponse   string `json:"altResponse,omitempty"`
}

// SkillRating is one parsed line of the session-level feedback.
type SkillRating struct {
	Demonstrated bool `json:"demonstrated"`
	Score        int  `json:"score"`
}

// SessionFeedback is the generated end-of-session coaching report.
type SessionFeedback struct {
	Markdown      string                 `json:"markdown"`
	Ratings       map[string]SkillRating `json:"ratings"`
	AdviceTiming  string                 `json:"adviceTiming,omitempty"`
	ExemplarWords int                    `json:"exemplarWords"`
	GeneratedAt   time.Time              `json:"generatedAt"`
}

// SessionState is the full state of one participant's practice protocol.
// SelectedMode is the stored choice; Mode() applies the phase coercion.
type SessionState struct {
	SessionID     string         `json:"sessionId"`
	ParticipantID string         `json:"participantId"`
	Phase         Phase          `json:"phase"`
	ScenarioID    string         `json:"scenarioId"`
	SelectedMode  Mode           `json:"selectedMode"`
	TurnCount     map[Phase]int  `json:"turnCount"`
	Completed     map[Phase]bool `json:"completed"`

	ClientTexts     []string         `json:"clientTexts"`
	CounselorTexts  []string         `json:"counselorTexts"`
	Labels          []SkillFlags     `json:"labels"`
	MicroFeedback   []*MicroFeedback `json:"microFeedback"`
	SessionFeedback *SessionFeedback `json:"sessionFeedback,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Mode returns the effective mode. Outside the practice phase it is
// always practice_only, whatever was selected.
func (s *SessionState) Mode() Mode {
	if s.Phase != PhasePractice {
		return ModePracticeOnly
	}
	if !s.SelectedMode.Valid() {
		return ModePracticeOnly
	}
	return s.SelectedMode
}

// PhaseCompleted reports whether the current phase has reached its cap.
func (s *SessionState) PhaseCompleted() bool {
	return s.Completed[s.Phase]
}

// AwaitingClient reports whether every client line has been answered,
// meaning a new client line must be generated before the next turn.
func (s *SessionState) AwaitingClient() bool {
	return len(s.ClientTexts) <= len(s.CounselorTexts)
}

// Turn is a read-only view of one exchange.
type Turn struct {
	Index         int
	ClientText    string
	CounselorText string
	Flags         SkillFlags
	Feedback      *MicroFeedback
}

// Turns pairs each counselor reply with the client line it answered.
func (s *SessionState) Turns() []Turn {
	turns := make([]Turn, 0, len(s.CounselorTexts))
	for i, text := range s.CounselorTexts {
		t := Turn{Index: i, CounselorText: text}
		if i < len(s.ClientTexts) {
			t.ClientText = s.ClientTexts[i]
		}
		if i < len(s.Labels) {
			t.Flags = s.Labels[i]
		}
		if i < len(s.MicroFeedback) {
			t.Feedback = s.MicroFeedback[i]
		}
		turns = append(turns, t)
	}
	return turns
}

// PracticeSessionRepository persists the single live protocol state of
// each participant.
type PracticeSessionRepository interface {
	Get(ctx context.Context, participantID string) (*SessionState, error)
	Save(ctx context.Context, state *SessionState) error
}
