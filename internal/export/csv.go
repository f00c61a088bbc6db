// Package export writes the research ledgers as CSV in their fixed
// column order.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/msomdec/care-practice/internal/domain"
)

// AssessmentHeader is the ledger column order.
func AssessmentHeader() []string {
	h := []string{"timestamp", "rater_id", "culture", "dataset_file", "item_id", "item_index"}
	h = append(h, domain.ScoreFields...)
	return append(h, "comment")
}

// EfficacyHeader is the self-efficacy column order.
var EfficacyHeader = []string{
	"timestamp", "participant_id", "session_id", "phase", "mode", "scenario",
	"exploration", "action", "session_mgmt",
}

// WriteAssessments writes the header and one record per row.
func WriteAssessments(w io.Writer, rows []domain.AssessmentRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AssessmentHeader()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.RaterID,
			r.Culture,
			r.DatasetFile,
			r.ItemID,
			strconv.Itoa(r.ItemIndex),
		}
		for _, f := range domain.ScoreFields {
			rec = append(rec, strconv.Itoa(r.Scores[f]))
		}
		rec = append(rec, r.Comment)
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", r.Seq, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEfficacy writes the header and one record per row.
func WriteEfficacy(w io.Writer, rows []domain.SelfEfficacyRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EfficacyHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.ParticipantID,
			r.SessionID,
			string(r.Phase),
			string(r.Mode),
			r.Scenario,
			strconv.Itoa(r.Exploration),
			strconv.Itoa(r.Action),
			strconv.Itoa(r.SessionMgmt),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", r.Seq, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
