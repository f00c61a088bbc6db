package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/llm"
	"github.com/msomdec/care-practice/internal/telemetry"
)

// NoticeKind classifies a non-blocking message returned with a transition.
type NoticeKind string

const (
	NoticeCrisisLanguage         NoticeKind = "crisis_language"
	NoticeClassificationDegraded NoticeKind = "classification_degraded"
	NoticeGenerationFailed       NoticeKind = "generation_failed"
	NoticeLedgerWriteSkipped     NoticeKind = "ledger_write_skipped"
	NoticePhaseComplete          NoticeKind = "phase_complete"
)

// Notice is a warning shown to the user that does not stop the flow.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// Outcome is the state after a transition plus any notices it raised.
// Err holds the *llm.GenerationFailure behind a NoticeGenerationFailed
// notice; the state was saved regardless and the same error is returned
// alongside the outcome.
type Outcome struct {
	State   *domain.SessionState
	Notices []Notice
	Err     error
}

func (o *Outcome) generationFailed(err error) {
	o.Err = err
	o.notice(NoticeGenerationFailed, "The client could not respond right now. Reload to try again.")
}

func (o *Outcome) notice(kind NoticeKind, format string, args ...any) {
	o.Notices = append(o.Notices, Notice{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// EfficacyScores is one self-rating submission.
type EfficacyScores struct {
	Exploration int
	Action      int
	SessionMgmt int
}

// PracticeService runs the phase-gated practice protocol for each
// participant. Transitions for one participant are serialized.
type PracticeService struct {
	sessions    domain.PracticeSessionRepository
	efficacy    domain.SelfEfficacyRepository
	turnLog     domain.TurnLogRepository
	gen         llm.Generator
	classifier  *Classifier
	protocol    Protocol
	rules       CoachingRules
	efficacyMax int
	locks       *keyedMutex
	logger      *slog.Logger
}

// NewPracticeService creates a new PracticeService.
func NewPracticeService(
	sessions domain.PracticeSessionRepository,
	efficacy domain.SelfEfficacyRepository,
	turnLog domain.TurnLogRepository,
	gen llm.Generator,
	protocol Protocol,
	rules CoachingRules,
	efficacyMax int,
) *PracticeService {
	logger := slog.Default().With("component", "practice")
	return &PracticeService{
		sessions:    sessions,
		efficacy:    efficacy,
		turnLog:     turnLog,
		gen:         gen,
		classifier:  NewClassifier(gen, logger),
		protocol:    protocol,
		rules:       rules,
		efficacyMax: efficacyMax,
		locks:       newKeyedMutex(),
		logger:      logger,
	}
}

// Protocol returns the phase plan.
func (s *PracticeService) Protocol() Protocol {
	return s.protocol
}

// Rules returns the coaching thresholds.
func (s *PracticeService) Rules() CoachingRules {
	return s.rules
}

// EfficacyMax is the top of the self-efficacy scale.
func (s *PracticeService) EfficacyMax() int {
	return s.efficacyMax
}

// Get returns the participant's state, creating it on first use and
// generating the opening client line when one is missing.
func (s *PracticeService) Get(ctx context.Context, participantID string) (*Outcome, error) {
	unlock := s.locks.Lock(participantID)
	defer unlock()

	state, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}
	out := &Outcome{State: state}
	if err := s.ensureClientLine(ctx, out); err != nil {
		return nil, err
	}
	return out, out.Err
}

// Start restarts the protocol from the first phase with a new session ID.
func (s *PracticeService) Start(ctx context.Context, participantID string) (*Outcome, error) {
	unlock := s.locks.Lock(participantID)
	defer unlock()

	state, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}
	ResetSession(state, s.protocol)
	if err := s.sessions.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("practice session started", "participant", participantID, "session", state.SessionID)

	out := &Outcome{State: state}
	if err := s.ensureClientLine(ctx, out); err != nil {
		return nil, err
	}
	return out, out.Err
}

// Advance moves to the next phase once the current one is completed.
func (s *PracticeService) Advance(ctx context.Context, participantID string) (*Outcome, error) {
	unlock := s.locks.Lock(participantID)
	defer unlock()

	state, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if err := AdvancePhase(state, s.protocol); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("practice phase advanced", "participant", participantID, "phase", state.Phase)

	out := &Outcome{State: state}
	if err := s.ensureClientLine(ctx, out); err != nil {
		return nil, err
	}
	return out, out.Err
}

// SelectMode stores the practice feedback mode.
func (s *PracticeService) SelectMode(ctx context.Context, participantID string, mode domain.Mode) (*Outcome, error) {
	unlock := s.locks.Lock(participantID)
	defer unlock()

	state, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if err := SelectMode(state, mode); err != nil {
		return nil, err
	}
	state.UpdatedAt = time.Now().UTC()
	if err := s.sessions.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &Outcome{State: state}, nil
}

// SubmitTurn scores a counselor reply, records it and generates the next
// client line. Classification, next-line generation and micro feedback
// run concurrently. The turn is committed even when the next client line
// fails: the saved outcome is returned together with the
// GenerationFailure, and the line is regenerated on the next call.
func (s *PracticeService) SubmitTurn(ctx context.Context, participantID, text string) (*Outcome, error) {
	unlock := s.locks.Lock(participantID)
	defer unlock()

	state, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if err := CheckTurn(state, s.protocol, text); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)

	out := &Outcome{State: state}
	if state.AwaitingClient() {
		line, err := s.generateClientLine(ctx, state)
		if err != nil {
			return nil, err
		}
		state.ClientTexts = append(state.ClientTexts, line)
	}

	if MentionsRisk(text) {
		out.notice(NoticeCrisisLanguage,
			"Crisis-related language detected. In real settings, use local crisis resources (US: 988).")
	}

	prior := state.ClientTexts[len(state.CounselorTexts)]
	scn := s.protocol.ScenarioFor(state.Phase)
	finalTurn := state.TurnCount[state.Phase]+1 >= s.protocol.TurnLimit(state.Phase)
	withFeedback := FeedbackEnabled(state)

	var (
		class   Classification
		micro   *domain.MicroFeedback
		next    string
		nextErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		class = s.classifier.Classify(gctx, text, prior)
		return nil
	})
	if withFeedback {
		g.Go(func() error {
			reply, err := s.gen.Generate(gctx, microFeedbackPrompt(prior, text), microMaxTokens, microTemperature)
			if err != nil {
				s.logger.Warn("micro feedback unavailable", "error", err)
				micro = fallbackMicroFeedback()
				return nil
			}
			micro = ParseMicroFeedback(reply)
			return nil
		})
	}
	if !finalTurn {
		g.Go(func() error {
			next, nextErr = s.gen.Generate(gctx, nextClientPrompt(scn, prior, text), nextLineMaxTokens, personaTemperature)
			return nil
		})
	}
	_ = g.Wait()

	completed, err := RecordTurn(state, s.protocol, text, class.Flags, micro)
	if err != nil {
		return nil, err
	}
	if class.Degraded {
		out.notice(NoticeClassificationDegraded, "Skill scoring was unavailable for this turn; it counts as no skills shown.")
	}
	switch {
	case next != "":
		state.ClientTexts = append(state.ClientTexts, next)
	case nextErr != nil:
		s.logger.Warn("next client line unavailable", "participant", participantID, "error", nextErr)
		out.generationFailed(nextErr)
	}
	if completed {
		out.notice(NoticePhaseComplete, "%s phase complete. Continue to the next phase when ready.", strings.ToUpper(string(state.Phase)))
	}

	state.UpdatedAt = time.Now().UTC()
	if err := s.sessions.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	telemetry.TurnsSubmitted.WithLabelValues(string(state.Phase)).Inc()

	s.logTurn(ctx, state, out)
	return out, out.Err
}

// SessionFeedback generates the end-of-session report. It is only
// available in the practice phase with feedback enabled.
func (s *PracticeService) SessionFeedback(ctx context.Context, participantID string) (*domain.SessionFeedback, error) {
	unlock := s.locks.Lock(participantID)
	defer unlock()

	state, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if !FeedbackEnabled(state) {
		return nil, fmt.Errorf("%w: switch to Practice + Feedback mode during the practice phase to get feedback",
			domain.ErrFeedbackDisabled)
	}
	if len(state.CounselorTexts) == 0 {
		return nil, fmt.Errorf("%w: reply to the client at least once before requesting feedback", domain.ErrInvalidInput)
	}

	prompt := sessionFeedbackPrompt(s.protocol.ScenarioFor(state.Phase), state.ClientTexts, state.CounselorTexts)
	md, err := s.gen.Generate(ctx, prompt, sessionFeedbackMaxTokens, sessionFeedbackTemperature)
	if err != nil {
		return nil, err
	}

	state.SessionFeedback = ParseSessionFeedback(md)
	state.UpdatedAt = time.Now().UTC()
	if err := s.sessions.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return state.SessionFeedback, nil
}

// SaveSelfEfficacy records a self-rating in the pre or post phase. Saving
// in a completed pre phase moves on to practice.
func (s *PracticeService) SaveSelfEfficacy(ctx context.Context, participantID string, scores EfficacyScores) (*Outcome, error) {
	unlock := s.locks.Lock(participantID)
	defer unlock()

	state, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if state.Phase == domain.PhasePractice {
		return nil, fmt.Errorf("%w: self-efficacy is recorded before and after practice", domain.ErrInvalidTransition)
	}
	fields := []struct {
		name  string
		value int
	}{
		{"exploration", scores.Exploration},
		{"action", scores.Action},
		{"session management", scores.SessionMgmt},
	}
	for _, f := range fields {
		if f.value < 0 || f.value > s.efficacyMax {
			return nil, fmt.Errorf("%w: %s must be between 0 and %d", domain.ErrInvalidInput, f.name, s.efficacyMax)
		}
	}

	row := &domain.SelfEfficacyRow{
		ParticipantID: state.ParticipantID,
		SessionID:     state.SessionID,
		Phase:         state.Phase,
		Mode:          state.Mode(),
		Scenario:      s.protocol.ScenarioFor(state.Phase).Name,
		Exploration:   scores.Exploration,
		Action:        scores.Action,
		SessionMgmt:   scores.SessionMgmt,
	}
	if err := s.efficacy.Append(ctx, row); err != nil {
		telemetry.LedgerWrites.WithLabelValues("self_efficacy", "error").Inc()
		return nil, fmt.Errorf("append self-efficacy: %w", err)
	}
	telemetry.LedgerWrites.WithLabelValues("self_efficacy", "ok").Inc()

	out := &Outcome{State: state}
	if state.Phase == domain.PhasePre && state.Completed[domain.PhasePre] {
		if err := AdvancePhase(state, s.protocol); err != nil {
			return nil, err
		}
		if err := s.sessions.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		if err := s.ensureClientLine(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, out.Err
}

// TurnReport is one row of the results view.
type TurnReport struct {
	Turn     domain.Turn
	Warnings []Warning
}

// Results is the derived view over a participant's current session.
// Everything except State is recomputed from the full label history.
type Results struct {
	State      *domain.SessionState
	Turns      []TurnReport
	Rates      map[domain.Skill]float64
	Timeseries map[domain.Skill][]float64
	Tallies    []SkillTally
	Efficacy   []domain.SelfEfficacyRow
}

// Results returns the transcript with per-turn warnings and aggregates.
func (s *PracticeService) Results(ctx context.Context, participantID string) (*Results, error) {
	unlock := s.locks.Lock(participantID)
	state, err := s.load(ctx, participantID)
	unlock()
	if err != nil {
		return nil, err
	}

	res := BuildResults(state, s.rules)
	rows, err := s.efficacy.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("list self-efficacy: %w", err)
	}
	res.Efficacy = rows
	return res, nil
}

// ExportEfficacy returns every self-efficacy row in scan order.
func (s *PracticeService) ExportEfficacy(ctx context.Context) ([]domain.SelfEfficacyRow, error) {
	return s.efficacy.ListAll(ctx)
}

// BuildResults derives the results view from a state.
func BuildResults(state *domain.SessionState, rules CoachingRules) *Results {
	warnings := TurnWarnings(state.ClientTexts, state.CounselorTexts, state.Labels, rules)
	turns := state.Turns()
	reports := make([]TurnReport, len(turns))
	for i, t := range turns {
		reports[i] = TurnReport{Turn: t, Warnings: warnings[i]}
	}
	return &Results{
		State:      state,
		Turns:      reports,
		Rates:      Rates(state.Labels, nil),
		Timeseries: Timeseries(state.Labels, nil),
		Tallies:    Tallies(state.Labels),
	}
}

func (s *PracticeService) load(ctx context.Context, participantID string) (*domain.SessionState, error) {
	state, err := s.sessions.Get(ctx, participantID)
	if errors.Is(err, domain.ErrNotFound) {
		state = NewSessionState(participantID, s.protocol)
		if err := s.sessions.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if SyncCompletion(state, s.protocol) {
		s.logger.Info("phase completion synced to turn caps", "participant", participantID, "phase", state.Phase)
		if err := s.sessions.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
	}
	return state, nil
}

// ensureClientLine generates the client line the counselor must answer
// next, if it is missing and the phase is still open. A generation
// failure is recorded on the outcome, not returned.
func (s *PracticeService) ensureClientLine(ctx context.Context, out *Outcome) error {
	state := out.State
	if !state.AwaitingClient() || state.PhaseCompleted() {
		return nil
	}
	line, err := s.generateClientLine(ctx, state)
	if err != nil {
		s.logger.Warn("client line unavailable", "participant", state.ParticipantID, "phase", state.Phase, "error", err)
		out.generationFailed(err)
		return nil
	}
	state.ClientTexts = append(state.ClientTexts, line)
	state.UpdatedAt = time.Now().UTC()
	if err := s.sessions.Save(ctx, state); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PracticeService) generateClientLine(ctx context.Context, state *domain.SessionState) (string, error) {
	scn := s.protocol.ScenarioFor(state.Phase)
	if len(state.ClientTexts) == 0 {
		return s.gen.Generate(ctx, openingPrompt(scn), openingMaxTokens, personaTemperature)
	}
	prev := state.ClientTexts[len(state.ClientTexts)-1]
	reply := state.CounselorTexts[len(state.CounselorTexts)-1]
	return s.gen.Generate(ctx, nextClientPrompt(scn, prev, reply), nextLineMaxTokens, personaTemperature)
}

// logTurn writes the turn and session snapshot rows. Failures never
// block the turn; they become a notice.
func (s *PracticeService) logTurn(ctx context.Context, state *domain.SessionState, out *Outcome) {
	idx := len(state.CounselorTexts) - 1
	scenario := s.protocol.ScenarioFor(state.Phase).Name
	now := time.Now().UTC()

	entry := &domain.TurnLogEntry{
		Timestamp: now,
		SessionID: state.SessionID,
		Phase:     state.Phase,
		Mode:      state.Mode(),
		Scenario:  scenario,
		TurnIndex: idx,
		Text:      state.CounselorTexts[idx],
		Flags:     state.Labels[idx],
	}
	if err := s.turnLog.AppendTurn(ctx, entry); err != nil {
		s.skipLedger(out, "turn_log", err)
		return
	}
	telemetry.LedgerWrites.WithLabelValues("turn_log", "ok").Inc()

	counselorWords := 0
	for _, t := range state.CounselorTexts {
		counselorWords += len(strings.Fields(t))
	}
	gapWords := 0
	if state.SessionFeedback != nil {
		gapWords = state.SessionFeedback.ExemplarWords
	}
	snap := &domain.SessionSnapshot{
		Timestamp:      now,
		SessionID:      state.SessionID,
		Phase:          state.Phase,
		Mode:           state.Mode(),
		Scenario:       scenario,
		Turns:          len(state.CounselorTexts),
		Rates:          Rates(state.Labels, nil),
		CounselorWords: counselorWords,
		GapWords:       gapWords,
		GapRatio:       float64(gapWords) / float64(max(1, counselorWords)),
	}
	if err := s.turnLog.AppendSnapshot(ctx, snap); err != nil {
		s.skipLedger(out, "session_snapshot", err)
		return
	}
	telemetry.LedgerWrites.WithLabelValues("session_snapshot", "ok").Inc()
}

func (s *PracticeService) skipLedger(out *Outcome, table string, err error) {
	telemetry.LedgerWrites.WithLabelValues(table, "skipped").Inc()
	s.logger.Warn("ledger write skipped", "table", table, "error", err)
	out.notice(NoticeLedgerWriteSkipped, "(logging skipped) This turn was not recorded for research logs.")
}

// keyedMutex serializes work per key and drops idle entries.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
