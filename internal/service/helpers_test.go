package service_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/llm"
	"github.com/msomdec/care-practice/internal/llm/llmtest"
	"github.com/msomdec/care-practice/internal/repository/sqlite"
	"github.com/msomdec/care-practice/internal/service"
)

const testJWTSecret = "test-secret-key-for-unit-tests"

const (
	classifyOpenQuestion = `{"open_question":1,"empathy":1}`
	classifyAdvice       = `Sure! {"suggestion": 1, "open_question": 0}`
	microReply           = `{"strength_title":"Open Question","strength_note":"You invited more detail.","feedback_title":"Validation","feedback_note":"Name the feeling you heard."}`
	sessionReport        = "## Skill Ratings (session-level)\n" +
		"- Empathy (✔, 4): warm\n" +
		"- Reflection (✖, 1): none\n" +
		"- Open Questions (✔, 5): many\n" +
		"- Validation / Non-judgment (✔, 3): some\n" +
		"- Advice Timing (Too early, 2): rushed\n\n" +
		"## Exemplars (rewrite the counselor's MOST RECENT reply)\n" +
		"- Concise: That sounds heavy.\n\n" +
		"## Risk Flag\n- No"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testProtocol() service.Protocol {
	return service.Protocol{
		Phases: map[domain.Phase]service.PhaseRule{
			domain.PhasePre:      {ScenarioID: "alex", TurnLimit: 2},
			domain.PhasePractice: {ScenarioID: "veteran_father", TurnLimit: 3},
			domain.PhasePost:     {ScenarioID: "jane", TurnLimit: 2},
		},
		Scenarios: map[string]service.Scenario{
			"alex":           {ID: "alex", Name: "Alex", Background: "First-year student, homesick.", Style: "short, guarded"},
			"veteran_father": {ID: "veteran_father", Name: "Veteran Father", Background: "Veteran in a custody dispute.", Style: "frustrated"},
			"jane":           {ID: "jane", Name: "Jane", Background: "Nurse on night shifts.", Style: "tired"},
		},
	}
}

// scriptedCoach routes each prompt kind to a canned reply. classify is
// what the skill classifier receives.
func scriptedCoach(classify string) *llmtest.Backend {
	return &llmtest.Backend{Handler: func(req llm.Request) (string, error) {
		switch {
		case strings.Contains(req.Prompt, "rating counseling micro-skills"):
			return classify, nil
		case strings.Contains(req.Prompt, "skills coach"):
			return microReply, nil
		case strings.Contains(req.Prompt, "supervisor evaluating"):
			return sessionReport, nil
		}
		return "I just feel stuck lately.", nil
	}}
}

type practiceFixture struct {
	svc *service.PracticeService
	db  *sqlite.DB
	pid string
}

func newPracticeFixture(t *testing.T, backends ...llm.Backend) *practiceFixture {
	t.Helper()
	db := newTestDB(t)
	p := &domain.Participant{ID: "participant-1", Email: "p1@example.edu", RaterID: "p1"}
	if err := db.Participants().Create(context.Background(), p); err != nil {
		t.Fatalf("create participant: %v", err)
	}
	svc := service.NewPracticeService(
		db.PracticeSessions(), db.SelfEfficacy(), db.TurnLog(),
		llmtest.Gateway(backends...), testProtocol(), service.DefaultCoachingRules(), 7,
	)
	return &practiceFixture{svc: svc, db: db, pid: p.ID}
}

func hasNotice(out *service.Outcome, kind service.NoticeKind) bool {
	for _, n := range out.Notices {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

func flags(skills ...domain.Skill) domain.SkillFlags {
	f := domain.NewSkillFlags()
	for _, s := range skills {
		f.Set(s)
	}
	return f
}
