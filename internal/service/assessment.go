package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/telemetry"
)

// FilterRows keeps the rows of one rater and culture, in scan order.
func FilterRows(rows []domain.AssessmentRow, raterID, culture string) []domain.AssessmentRow {
	var out []domain.AssessmentRow
	for _, r := range rows {
		if r.RaterID == raterID && r.Culture == culture {
			out = append(out, r)
		}
	}
	return out
}

// LatestPerItem returns the effective rating of each item for a rater and
// culture: the row with the greatest timestamp, ties going to the row
// later in scan order. Older rows stay in the ledger as history.
func LatestPerItem(rows []domain.AssessmentRow, raterID, culture string) map[string]domain.AssessmentRow {
	out := make(map[string]domain.AssessmentRow)
	for _, r := range FilterRows(rows, raterID, culture) {
		cur, ok := out[r.ItemID]
		if !ok || !r.Timestamp.Before(cur.Timestamp) {
			out[r.ItemID] = r
		}
	}
	return out
}

// RatedItemIDs is the set of items a rater has graded at least once.
func RatedItemIDs(rows []domain.AssessmentRow, raterID, culture string) map[string]bool {
	out := make(map[string]bool)
	for _, r := range FilterRows(rows, raterID, culture) {
		out[r.ItemID] = true
	}
	return out
}

// NextUnratedIndex returns the first corpus position whose item is not in
// rated. ok is false when every item is rated; callers fall back to 0.
func NextUnratedIndex(items []domain.CorpusItem, rated map[string]bool) (int, bool) {
	for i, it := range items {
		if !rated[it.ID] {
			return i, true
		}
	}
	return 0, false
}

// ResolveResumePointer decides which item to show. Without a valid
// current pointer it resumes at the next unrated item (or 0). A pointer
// at an already rated item moves on to the next unrated one, staying put
// when everything is rated.
func ResolveResumePointer(items []domain.CorpusItem, rated map[string]bool, current *int) int {
	next, ok := NextUnratedIndex(items, rated)
	if current == nil || *current < 0 || *current >= len(items) {
		if ok {
			return next
		}
		return 0
	}
	if rated[items[*current].ID] && ok {
		return next
	}
	return *current
}

// InferCulture returns the culture of the rater's most recent row.
func InferCulture(rows []domain.AssessmentRow, raterID string) (string, bool) {
	var latest *domain.AssessmentRow
	for i := range rows {
		r := &rows[i]
		if r.RaterID != raterID {
			continue
		}
		if latest == nil || !r.Timestamp.Before(latest.Timestamp) {
			latest = r
		}
	}
	if latest == nil {
		return "", false
	}
	return latest.Culture, true
}

// ComputeProgress counts distinct corpus items the rater has graded.
func ComputeProgress(items []domain.CorpusItem, rated map[string]bool) domain.RaterProgress {
	p := domain.RaterProgress{Total: len(items)}
	for _, it := range items {
		if rated[it.ID] {
			p.Done++
		}
	}
	return p
}

// AssessmentService manages rater sessions over the corpus.
type AssessmentService struct {
	rows   domain.AssessmentRepository
	corpus domain.CorpusSource
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(rows domain.AssessmentRepository, corpus domain.CorpusSource) *AssessmentService {
	return &AssessmentService{rows: rows, corpus: corpus}
}

// Cultures lists the configured corpus cultures.
func (s *AssessmentService) Cultures() []string {
	return s.corpus.Cultures()
}

// SuggestCulture infers where a returning rater left off.
func (s *AssessmentService) SuggestCulture(ctx context.Context, raterID string) (string, bool, error) {
	rows, err := s.rows.ListByRater(ctx, raterID)
	if err != nil {
		return "", false, fmt.Errorf("list rater rows: %w", err)
	}
	culture, ok := InferCulture(rows, raterID)
	return culture, ok, nil
}

// Overview is a rater's position within one culture's corpus.
type Overview struct {
	Culture     string
	DatasetFile string
	Progress    domain.RaterProgress
	ResumeIndex int
	AllRated    bool
}

// Overview computes progress and the resume pointer. current is the
// pointer the client is showing, or nil.
func (s *AssessmentService) Overview(ctx context.Context, raterID, culture string, current *int) (*Overview, error) {
	items, rated, err := s.raterView(ctx, raterID, culture)
	if err != nil {
		return nil, err
	}
	file, err := s.corpus.DatasetFile(culture)
	if err != nil {
		return nil, err
	}
	_, remaining := NextUnratedIndex(items, rated)
	return &Overview{
		Culture:     culture,
		DatasetFile: file,
		Progress:    ComputeProgress(items, rated),
		ResumeIndex: ResolveResumePointer(items, rated, current),
		AllRated:    !remaining && len(items) > 0,
	}, nil
}

// ItemView is one corpus item with the rater's effective rating, if any.
type ItemView struct {
	Index  int
	Total  int
	Item   domain.CorpusItem
	Latest *domain.AssessmentRow
}

// Item returns the item at a corpus position.
func (s *AssessmentService) Item(ctx context.Context, raterID, culture string, index int) (*ItemView, error) {
	items, err := s.corpus.Items(ctx, culture)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(items) {
		return nil, fmt.Errorf("%w: item %d of %s", domain.ErrNotFound, index, culture)
	}
	rows, err := s.rows.ListByRaterCulture(ctx, raterID, culture)
	if err != nil {
		return nil, fmt.Errorf("list rater rows: %w", err)
	}

	view := &ItemView{Index: index, Total: len(items), Item: items[index]}
	if latest, ok := LatestPerItem(rows, raterID, culture)[items[index].ID]; ok {
		view.Latest = &latest
	}
	return view, nil
}

// Submission is one rating from a rater.
type Submission struct {
	RaterID string
	Culture string
	ItemID  string
	Scores  map[string]int
	Comment string
}

// SubmitResult reports the stored row and where the rater goes next.
type SubmitResult struct {
	Row       *domain.AssessmentRow
	NextIndex int
	Progress  domain.RaterProgress
	AllRated  bool
}

// Submit appends a rating. Re-rating an item adds a new row; the newest
// row becomes effective.
func (s *AssessmentService) Submit(ctx context.Context, sub Submission) (*SubmitResult, error) {
	raterID := strings.TrimSpace(sub.RaterID)
	if raterID == "" {
		return nil, fmt.Errorf("%w: rater id is required", domain.ErrInvalidInput)
	}
	for _, field := range domain.ScoreFields {
		v, ok := sub.Scores[field]
		if !ok {
			return nil, fmt.Errorf("%w: score %s is required", domain.ErrInvalidInput, field)
		}
		if v < domain.MinScore || v > domain.MaxScore {
			return nil, fmt.Errorf("%w: score %s must be between %d and %d",
				domain.ErrInvalidInput, field, domain.MinScore, domain.MaxScore)
		}
	}

	items, err := s.corpus.Items(ctx, sub.Culture)
	if err != nil {
		return nil, err
	}
	index := -1
	for i, it := range items {
		if it.ID == sub.ItemID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: item %q is not in the %s corpus", domain.ErrNotFound, sub.ItemID, sub.Culture)
	}
	file, err := s.corpus.DatasetFile(sub.Culture)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]int, len(domain.ScoreFields))
	for _, field := range domain.ScoreFields {
		scores[field] = sub.Scores[field]
	}
	row := &domain.AssessmentRow{
		Timestamp:   time.Now().UTC(),
		RaterID:     raterID,
		Culture:     sub.Culture,
		DatasetFile: file,
		ItemID:      sub.ItemID,
		ItemIndex:   index,
		Scores:      scores,
		Comment:     strings.TrimSpace(sub.Comment),
	}
	if err := s.rows.Append(ctx, row); err != nil {
		telemetry.LedgerWrites.WithLabelValues("assessments", "error").Inc()
		return nil, fmt.Errorf("append assessment: %w", err)
	}
	telemetry.LedgerWrites.WithLabelValues("assessments", "ok").Inc()

	rows, err := s.rows.ListByRaterCulture(ctx, raterID, sub.Culture)
	if err != nil {
		return nil, fmt.Errorf("list rater rows: %w", err)
	}
	rated := RatedItemIDs(rows, raterID, sub.Culture)
	_, remaining := NextUnratedIndex(items, rated)
	return &SubmitResult{
		Row:       row,
		NextIndex: ResolveResumePointer(items, rated, &index),
		Progress:  ComputeProgress(items, rated),
		AllRated:  !remaining,
	}, nil
}

// Export returns every ledger row in scan order.
func (s *AssessmentService) Export(ctx context.Context) ([]domain.AssessmentRow, error) {
	return s.rows.ListAll(ctx)
}

func (s *AssessmentService) raterView(ctx context.Context, raterID, culture string) ([]domain.CorpusItem, map[string]bool, error) {
	items, err := s.corpus.Items(ctx, culture)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.rows.ListByRaterCulture(ctx, raterID, culture)
	if err != nil {
		return nil, nil, fmt.Errorf("list rater rows: %w", err)
	}
	return items, RatedItemIDs(rows, raterID, culture), nil
}
