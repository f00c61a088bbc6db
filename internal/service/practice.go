package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/care-practice/internal/domain"
)

// Scenario is a client persona script.
type Scenario struct {
	ID         string
	Name       string
	Background string
	Style      string
}

// PhaseRule binds a phase to its persona and turn cap.
type PhaseRule struct {
	ScenarioID string
	TurnLimit  int
}

// Protocol is the static phase plan.
type Protocol struct {
	Phases    map[domain.Phase]PhaseRule
	Scenarios map[string]Scenario
}

// TurnLimit returns the cap for a phase.
func (p Protocol) TurnLimit(phase domain.Phase) int {
	return p.Phases[phase].TurnLimit
}

// ScenarioFor returns the persona used in a phase.
func (p Protocol) ScenarioFor(phase domain.Phase) Scenario {
	return p.Scenarios[p.Phases[phase].ScenarioID]
}

// NewSessionState returns a fresh state at the start of the protocol.
func NewSessionState(participantID string, p Protocol) *domain.SessionState {
	s := &domain.SessionState{ParticipantID: participantID}
	ResetSession(s, p)
	return s
}

// ResetSession restarts the protocol: first phase, zero counts, nothing
// completed, a new session ID and empty runtime. ParticipantID is kept.
func ResetSession(s *domain.SessionState, p Protocol) {
	s.SessionID = uuid.NewString()
	s.Phase = domain.PhasePre
	s.ScenarioID = p.Phases[domain.PhasePre].ScenarioID
	s.SelectedMode = domain.ModePracticeOnly
	s.TurnCount = make(map[domain.Phase]int, len(domain.Phases))
	s.Completed = make(map[domain.Phase]bool, len(domain.Phases))
	for _, ph := range domain.Phases {
		s.TurnCount[ph] = 0
		s.Completed[ph] = false
	}
	clearRuntime(s)
}

// phaseDone is the single completion predicate: the flag was set, or the
// count has reached the cap.
func phaseDone(s *domain.SessionState, p Protocol, phase domain.Phase) bool {
	return s.Completed[phase] || s.TurnCount[phase] >= p.TurnLimit(phase)
}

// SyncCompletion marks every phase whose count has reached its cap as
// completed. A stored state can fall out of step when the configured cap
// is lowered. It reports whether anything changed.
func SyncCompletion(s *domain.SessionState, p Protocol) bool {
	if s.Completed == nil {
		s.Completed = make(map[domain.Phase]bool, len(domain.Phases))
	}
	changed := false
	for _, ph := range domain.Phases {
		if !s.Completed[ph] && phaseDone(s, p, ph) {
			s.Completed[ph] = true
			changed = true
		}
	}
	return changed
}

// AdvancePhase moves to the next phase. The current phase must be
// completed and must not be the last one. On error nothing changes.
func AdvancePhase(s *domain.SessionState, p Protocol) error {
	if !phaseDone(s, p, s.Phase) {
		remaining := p.TurnLimit(s.Phase) - s.TurnCount[s.Phase]
		return fmt.Errorf("%w: finish the %s phase first (%d turn(s) left)",
			domain.ErrInvalidTransition, s.Phase, remaining)
	}
	next, ok := s.Phase.Next()
	if !ok {
		return fmt.Errorf("%w: the %s phase is the last one; start a new session to practice again",
			domain.ErrInvalidTransition, s.Phase)
	}

	s.Phase = next
	s.ScenarioID = p.Phases[next].ScenarioID
	s.SessionID = uuid.NewString()
	clearRuntime(s)
	return nil
}

// CheckTurn reports why a counselor turn cannot be accepted, or nil.
func CheckTurn(s *domain.SessionState, p Protocol, text string) error {
	if phaseDone(s, p, s.Phase) {
		return fmt.Errorf("%w: the %s phase is complete; advance to the next phase",
			domain.ErrInvalidTransition, s.Phase)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: please type a reply", domain.ErrInvalidTransition)
	}
	return nil
}

// RecordTurn appends a scored counselor turn and applies the turn cap.
// It returns whether the phase is now completed. On error nothing changes.
func RecordTurn(s *domain.SessionState, p Protocol, text string, flags domain.SkillFlags, micro *domain.MicroFeedback) (bool, error) {
	if err := CheckTurn(s, p, text); err != nil {
		return false, err
	}
	if flags == nil {
		flags = domain.NewSkillFlags()
	}

	s.CounselorTexts = append(s.CounselorTexts, strings.TrimSpace(text))
	s.Labels = append(s.Labels, flags)
	s.MicroFeedback = append(s.MicroFeedback, micro)
	s.TurnCount[s.Phase]++
	if s.TurnCount[s.Phase] >= p.TurnLimit(s.Phase) {
		s.Completed[s.Phase] = true
	}
	return s.Completed[s.Phase], nil
}

// SelectMode stores the feedback mode. It is only meaningful during practice.
func SelectMode(s *domain.SessionState, mode domain.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidInput, mode)
	}
	if s.Phase != domain.PhasePractice {
		return fmt.Errorf("%w: the feedback mode can only be chosen in the practice phase",
			domain.ErrInvalidTransition)
	}
	s.SelectedMode = mode
	return nil
}

// FeedbackEnabled reports whether coaching feedback may be produced.
func FeedbackEnabled(s *domain.SessionState) bool {
	return s.Phase == domain.PhasePractice && s.Mode() == domain.ModePracticeFeedback
}

// InputHint is the reply guidance shown under the input box.
func InputHint(s *domain.SessionState) string {
	switch s.Phase {
	case domain.PhasePre:
		return "Reply in 1-3 short sentences. Prioritize empathy or a reflection; ask ONE open question; avoid advice."
	case domain.PhasePractice:
		if s.Mode() == domain.ModePracticeFeedback {
			return "Practice empathy, reflection and open questions. Hold suggestions unless explicitly asked."
		}
		return "Practice listening: use empathy or an open question. Keep it brief (1-3 sentences)."
	}
	return "Final assessment: 1-3 short sentences. Show active listening; one open question max; avoid advice."
}

func clearRuntime(s *domain.SessionState) {
	s.ClientTexts = nil
	s.CounselorTexts = nil
	s.Labels = nil
	s.MicroFeedback = nil
	s.SessionFeedback = nil
	s.UpdatedAt = time.Now().UTC()
}
