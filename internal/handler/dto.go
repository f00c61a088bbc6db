package handler

import (
	"time"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/service"
)

// ParticipantDTO is the JSON representation of a signed-in participant.
type ParticipantDTO struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	RaterID    string `json:"raterId"`
	Instructor bool   `json:"instructor"`
	CreatedAt  string `json:"createdAt"`
}

func toParticipantDTO(p *domain.Participant, instructor bool) ParticipantDTO {
	return ParticipantDTO{
		ID:         p.ID,
		Email:      p.Email,
		RaterID:    p.RaterID,
		Instructor: instructor,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}

// TurnDTO is one counselor turn with the client line it answered.
type TurnDTO struct {
	Index     int                   `json:"index"`
	Client    string                `json:"client"`
	Counselor string                `json:"counselor"`
	Flags     map[string]int        `json:"flags"`
	Feedback  *domain.MicroFeedback `json:"feedback,omitempty"`
	Warnings  []WarningDTO          `json:"warnings,omitempty"`
}

// WarningDTO is one coaching warning.
type WarningDTO struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func toWarningDTOs(ws []service.Warning) []WarningDTO {
	if len(ws) == 0 {
		return nil
	}
	out := make([]WarningDTO, len(ws))
	for i, w := range ws {
		out[i] = WarningDTO{Code: string(w), Severity: string(w.Severity()), Message: w.Message()}
	}
	return out
}

func flagsMap(f domain.SkillFlags) map[string]int {
	out := make(map[string]int, len(domain.Skills))
	for _, k := range domain.Skills {
		out[string(k)] = f[k]
	}
	return out
}

// SessionDTO is the practice state as the client sees it.
type SessionDTO struct {
	SessionID       string                  `json:"sessionId"`
	Phase           domain.Phase            `json:"phase"`
	Mode            domain.Mode             `json:"mode"`
	Scenario        string                  `json:"scenario"`
	TurnCount       int                     `json:"turnCount"`
	TurnLimit       int                     `json:"turnLimit"`
	Completed       map[domain.Phase]bool   `json:"completed"`
	PhaseCompleted  bool                    `json:"phaseCompleted"`
	PendingClient   string                  `json:"pendingClient,omitempty"`
	Hint            string                  `json:"hint"`
	Turns           []TurnDTO               `json:"turns"`
	SessionFeedback *domain.SessionFeedback `json:"sessionFeedback,omitempty"`
	Notices         []service.Notice        `json:"notices,omitempty"`
}

func toSessionDTO(out *service.Outcome, protocol service.Protocol, rules service.CoachingRules) SessionDTO {
	s := out.State
	res := service.BuildResults(s, rules)
	turns := make([]TurnDTO, len(res.Turns))
	for i, tr := range res.Turns {
		turns[i] = TurnDTO{
			Index:     tr.Turn.Index,
			Client:    tr.Turn.ClientText,
			Counselor: tr.Turn.CounselorText,
			Flags:     flagsMap(tr.Turn.Flags),
			Feedback:  tr.Turn.Feedback,
			Warnings:  toWarningDTOs(tr.Warnings),
		}
	}
	dto := SessionDTO{
		SessionID:       s.SessionID,
		Phase:           s.Phase,
		Mode:            s.Mode(),
		Scenario:        protocol.ScenarioFor(s.Phase).Name,
		TurnCount:       s.TurnCount[s.Phase],
		TurnLimit:       protocol.TurnLimit(s.Phase),
		Completed:       s.Completed,
		PhaseCompleted:  s.PhaseCompleted(),
		Hint:            service.InputHint(s),
		Turns:           turns,
		SessionFeedback: s.SessionFeedback,
		Notices:         out.Notices,
	}
	if !s.AwaitingClient() {
		dto.PendingClient = s.ClientTexts[len(s.ClientTexts)-1]
	}
	return dto
}

// TallyDTO is one row of the present/absent table.
type TallyDTO struct {
	Skill   string  `json:"skill"`
	Rate    float64 `json:"rate"`
	Present int     `json:"present"`
	Absent  int     `json:"absent"`
}

// EfficacyDTO is one self-efficacy row.
type EfficacyDTO struct {
	Timestamp   string       `json:"timestamp"`
	Phase       domain.Phase `json:"phase"`
	Exploration int          `json:"exploration"`
	Action      int          `json:"action"`
	SessionMgmt int          `json:"sessionMgmt"`
}

// ResultsDTO is the results view.
type ResultsDTO struct {
	Session    SessionDTO           `json:"session"`
	Rates      map[string]float64   `json:"rates"`
	Timeseries map[string][]float64 `json:"timeseries"`
	Tallies    []TallyDTO           `json:"tallies"`
	Efficacy   []EfficacyDTO        `json:"efficacy"`
}

func toResultsDTO(res *service.Results, protocol service.Protocol, rules service.CoachingRules) ResultsDTO {
	dto := ResultsDTO{
		Session:    toSessionDTO(&service.Outcome{State: res.State}, protocol, rules),
		Rates:      make(map[string]float64, len(res.Rates)),
		Timeseries: make(map[string][]float64, len(res.Timeseries)),
		Tallies:    make([]TallyDTO, len(res.Tallies)),
		Efficacy:   make([]EfficacyDTO, len(res.Efficacy)),
	}
	for k, v := range res.Rates {
		dto.Rates[string(k)] = v
	}
	for k, v := range res.Timeseries {
		dto.Timeseries[string(k)] = v
	}
	for i, t := range res.Tallies {
		dto.Tallies[i] = TallyDTO{Skill: string(t.Skill), Rate: t.Rate, Present: t.Present, Absent: t.Absent}
	}
	for i, e := range res.Efficacy {
		dto.Efficacy[i] = EfficacyDTO{
			Timestamp:   e.Timestamp.Format(time.RFC3339),
			Phase:       e.Phase,
			Exploration: e.Exploration,
			Action:      e.Action,
			SessionMgmt: e.SessionMgmt,
		}
	}
	return dto
}

// RatingDTO is a stored assessment row.
type RatingDTO struct {
	Timestamp string         `json:"timestamp"`
	ItemID    string         `json:"itemId"`
	ItemIndex int            `json:"itemIndex"`
	Scores    map[string]int `json:"scores"`
	Comment   string         `json:"comment,omitempty"`
}

func toRatingDTO(r *domain.AssessmentRow) *RatingDTO {
	if r == nil {
		return nil
	}
	return &RatingDTO{
		Timestamp: r.Timestamp.Format(time.RFC3339),
		ItemID:    r.ItemID,
		ItemIndex: r.ItemIndex,
		Scores:    r.Scores,
		Comment:   r.Comment,
	}
}

// OverviewDTO is a rater's position in one culture.
type OverviewDTO struct {
	Culture     string               `json:"culture"`
	DatasetFile string               `json:"datasetFile"`
	Progress    domain.RaterProgress `json:"progress"`
	ResumeIndex int                  `json:"resumeIndex"`
	AllRated    bool                 `json:"allRated"`
}

// ItemDTO is one corpus item for grading.
type ItemDTO struct {
	Index  int                `json:"index"`
	Total  int                `json:"total"`
	ID     string             `json:"id"`
	Turns  []domain.Utterance `json:"turns"`
	Latest *RatingDTO         `json:"latest,omitempty"`
}
