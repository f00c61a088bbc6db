package handler_test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/handler"
	"github.com/msomdec/care-practice/internal/llm"
	"github.com/msomdec/care-practice/internal/llm/llmtest"
	"github.com/msomdec/care-practice/internal/repository/corpus"
	"github.com/msomdec/care-practice/internal/repository/sqlite"
	"github.com/msomdec/care-practice/internal/service"
)

const (
	testJWTSecret = "test-secret-for-handler-tests-0123456789"
	testPIN       = "2468"
)

type testEnv struct {
	db       *sqlite.DB
	ids      *service.IdentityService
	practice *service.PracticeService
	assess   *service.AssessmentService
	deps     handler.Deps
}

func testProtocol() service.Protocol {
	return service.Protocol{
		Phases: map[domain.Phase]service.PhaseRule{
			domain.PhasePre:      {ScenarioID: "alex", TurnLimit: 1},
			domain.PhasePractice: {ScenarioID: "alex", TurnLimit: 2},
			domain.PhasePost:     {ScenarioID: "alex", TurnLimit: 1},
		},
		Scenarios: map[string]service.Scenario{
			"alex": {ID: "alex", Name: "Alex", Background: "Homesick student.", Style: "brief"},
		},
	}
}

func scriptedBackend() *llmtest.Backend {
	return &llmtest.Backend{Handler: func(req llm.Request) (string, error) {
		switch {
		case strings.Contains(req.Prompt, "rating counseling micro-skills"):
			return `{"open_question":1,"empathy":1}`, nil
		case strings.Contains(req.Prompt, "skills coach"):
			return `{"strength_title":"Empathy","strength_note":"Warm.","feedback_title":"Questions","feedback_note":"Ask one more."}`, nil
		case strings.Contains(req.Prompt, "supervisor evaluating"):
			return "## Skill Ratings (session-level)\n- Empathy (✔, 4): warm", nil
		}
		return "I miss home a lot.", nil
	}}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, scriptedBackend())
}

func newTestEnvWith(t *testing.T, backend llm.Backend) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	corpusFile := filepath.Join(dir, "chinese.jsonl")
	data := `{"session_id":"c1","turns":[{"role":"seeker","text":"I feel pressure."},{"role":"assistant","text":"Tell me more."}]}
{"session_id":"c2","turns":[{"role":"seeker","text":"Exams."}]}`
	if err := os.WriteFile(corpusFile, []byte(data), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}

	pinHash, err := service.HashPIN(testPIN, 4)
	if err != nil {
		t.Fatalf("HashPIN: %v", err)
	}
	ids := service.NewIdentityService(db.Participants(), testJWTSecret, time.Hour,
		regexp.MustCompile(`^[a-z0-9._%+-]+@example\.edu$`), pinHash)
	practice := service.NewPracticeService(db.PracticeSessions(), db.SelfEfficacy(), db.TurnLog(),
		llmtest.Gateway(backend), testProtocol(), service.DefaultCoachingRules(), 7)
	assess := service.NewAssessmentService(db.Assessments(),
		corpus.NewStore([]corpus.Dataset{{Culture: "Chinese", File: corpusFile}}))

	return &testEnv{
		db: db, ids: ids, practice: practice, assess: assess,
		deps: handler.Deps{
			Identity:    ids,
			Practice:    practice,
			Assessments: assess,
			Health:      handler.NewHealthHandler(db.SqlDB, []string{"scripted"}),
			TokenTTL:    time.Hour,
		},
	}
}

func (e *testEnv) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, e.deps)
	srv := httptest.NewServer(handler.SecurityHeaders(mux))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
