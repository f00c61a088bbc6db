package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/msomdec/care-practice/internal/domain"
)

// AssessmentRepository is the append-only rating ledger.
type AssessmentRepository struct {
	db *sql.DB
}

// NewAssessmentRepository creates a new SQLite-backed AssessmentRepository.
func NewAssessmentRepository(db *DB) *AssessmentRepository {
	return &AssessmentRepository{db: db.SqlDB}
}

const assessmentColumns = `seq, timestamp, rater_id, culture, dataset_file, item_id, item_index,
	empathy_warmth, clarity_helpfulness, safety_nonjudgment,
	cultural_appropriateness, specificity_nostereotype, meaning_preserve, comment`

func (r *AssessmentRepository) Append(ctx context.Context, row *domain.AssessmentRow) error {
	s := row.Scores
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO assessments (timestamp, rater_id, culture, dataset_file, item_id, item_index,
		 empathy_warmth, clarity_helpfulness, safety_nonjudgment,
		 cultural_appropriateness, specificity_nostereotype, meaning_preserve, comment)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Timestamp.UTC(), row.RaterID, row.Culture, row.DatasetFile, row.ItemID, row.ItemIndex,
		s["empathy_warmth"], s["clarity_helpfulness"], s["safety_nonjudgment"],
		s["cultural_appropriateness"], s["specificity_nostereotype"], s["meaning_preserve"],
		row.Comment,
	)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get assessment seq: %w", err)
	}
	row.Seq = seq
	return nil
}

func (r *AssessmentRepository) ListByRater(ctx context.Context, raterID string) ([]domain.AssessmentRow, error) {
	return r.list(ctx, `WHERE rater_id = ?`, raterID)
}

func (r *AssessmentRepository) ListByRaterCulture(ctx context.Context, raterID, culture string) ([]domain.AssessmentRow, error) {
	return r.list(ctx, `WHERE rater_id = ? AND culture = ?`, raterID, culture)
}

func (r *AssessmentRepository) ListAll(ctx context.Context) ([]domain.AssessmentRow, error) {
	return r.list(ctx, ``)
}

// list returns rows in scan order.
func (r *AssessmentRepository) list(ctx context.Context, where string, args ...any) ([]domain.AssessmentRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []domain.AssessmentRow
	for rows.Next() {
		var a domain.AssessmentRow
		var ew, ch, sn, ca, ss, mp int
		if err := rows.Scan(&a.Seq, &a.Timestamp, &a.RaterID, &a.Culture, &a.DatasetFile, &a.ItemID, &a.ItemIndex,
			&ew, &ch, &sn, &ca, &ss, &mp, &a.Comment); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		a.Scores = map[string]int{
			"empathy_warmth":           ew,
			"clarity_helpfulness":      ch,
			"safety_nonjudgment":       sn,
			"cultural_appropriateness": ca,
			"specificity_nostereotype": ss,
			"meaning_preserve":         mp,
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
