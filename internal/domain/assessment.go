package domain

import (
	"context"
	"time"
)

// ScoreFields are the rubric dimensions of an assessment, in ledger column order.
var ScoreFields = []string{
	"empathy_warmth",
	"clarity_helpfulness",
	"safety_nonjudgment",
	"cultural_appropriateness",
	"specificity_nostereotype",
	"meaning_preserve",
}

const (
	MinScore = 1
	MaxScore = 5
)

// AssessmentRow is one immutable rating event. Seq is the storage scan
// order and breaks timestamp ties: the later row wins.
type AssessmentRow struct {
	Seq         int64
	Timestamp   time.Time
	RaterID     string
	Culture     string
	DatasetFile string
	ItemID      string
	ItemIndex   int // display only; ItemID is the identity
	Scores      map[string]int
	Comment     string
}

// RaterProgress is how many distinct items a rater has graded out of the total.
type RaterProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// AssessmentRepository is append-only. Rows are never updated or deleted.
type AssessmentRepository interface {
	Append(ctx context.Context, row *AssessmentRow) error
	ListByRater(ctx context.Context, raterID string) ([]AssessmentRow, error)
	ListByRaterCulture(ctx context.Context, raterID, culture string) ([]AssessmentRow, error)
	ListAll(ctx context.Context) ([]AssessmentRow, error)
}
