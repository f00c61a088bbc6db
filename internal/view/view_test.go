package view_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/service"
	"github.com/msomdec/care-practice/internal/view"
)

func TestTranscriptFragment_EscapesAndPairs(t *testing.T) {
	flags := domain.NewSkillFlags()
	flags.Set(domain.SkillOpenQuestion)
	state := &domain.SessionState{
		Phase:          domain.PhasePractice,
		TurnCount:      map[domain.Phase]int{domain.PhasePractice: 1},
		ClientTexts:    []string{"<script>alert(1)</script>", "Still here."},
		CounselorTexts: []string{"What happened?"},
		Labels:         []domain.SkillFlags{flags},
		MicroFeedback:  []*domain.MicroFeedback{{StrengthTitle: "Open Question", FeedbackTitle: "Validation"}},
	}
	v := view.PracticeView{
		State:    state,
		Warnings: [][]service.Warning{{service.WarnMissingValidation}},
	}

	var buf bytes.Buffer
	if err := view.TranscriptFragment(v).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()

	if strings.Contains(out, "<script>") {
		t.Fatal("client text must be escaped")
	}
	if !strings.HasPrefix(out, `<ol id="transcript">`) {
		t.Fatalf("expected transcript root, got %s", out[:30])
	}
	for _, want := range []string{"open_question", "Validate the feeling", "Open Question", "Still here."} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

func TestPracticePage_ShowsStatus(t *testing.T) {
	state := &domain.SessionState{
		Phase:     domain.PhasePre,
		TurnCount: map[domain.Phase]int{domain.PhasePre: 2},
		Completed: map[domain.Phase]bool{domain.PhasePre: true},
	}
	var buf bytes.Buffer
	page := view.Layout("Practice", "a@example.edu", view.PracticePage(view.PracticeView{
		State: state, Scenario: "Alex", TurnLimit: 2, Hint: "Be brief & kind",
		Notices: []service.Notice{{Kind: service.NoticePhaseComplete, Message: "PRE phase complete."}},
	}))
	if err := page.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"turn 2 / 2", "phase complete", "Be brief &amp; kind", "PRE phase complete.", "a@example.edu"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in page", want)
		}
	}
}
