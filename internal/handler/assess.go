package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/msomdec/care-practice/internal/export"
	"github.com/msomdec/care-practice/internal/service"
)

// AssessHandler serves the corpus grading API and the instructor exports.
type AssessHandler struct {
	assess   *service.AssessmentService
	practice *service.PracticeService
}

// NewAssessHandler creates a new AssessHandler.
func NewAssessHandler(assess *service.AssessmentService, practice *service.PracticeService) *AssessHandler {
	return &AssessHandler{assess: assess, practice: practice}
}

// HandleCultures lists the configured cultures and the one the rater
// last worked on.
// GET /api/assess/cultures
func (h *AssessHandler) HandleCultures(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	suggested, _, err := h.assess.SuggestCulture(r.Context(), ident.Participant.RaterID)
	if err != nil {
		writeServiceError(w, "suggest culture", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cultures":  h.assess.Cultures(),
		"suggested": suggested,
	})
}

// HandleOverview returns progress and the resume pointer.
// GET /api/assess/{culture}?current=N
func (h *AssessHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	var current *int
	if v := r.URL.Query().Get("current"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "current must be an integer.")
			return
		}
		current = &n
	}

	ov, err := h.assess.Overview(r.Context(), ident.Participant.RaterID, r.PathValue("culture"), current)
	if err != nil {
		writeServiceError(w, "assessment overview", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overview": OverviewDTO{
		Culture:     ov.Culture,
		DatasetFile: ov.DatasetFile,
		Progress:    ov.Progress,
		ResumeIndex: ov.ResumeIndex,
		AllRated:    ov.AllRated,
	}})
}

// HandleItem returns one corpus item with the rater's effective rating.
// GET /api/assess/{culture}/items/{index}
func (h *AssessHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer.")
		return
	}

	v, err := h.assess.Item(r.Context(), ident.Participant.RaterID, r.PathValue("culture"), index)
	if err != nil {
		writeServiceError(w, "assessment item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": ItemDTO{
		Index:  v.Index,
		Total:  v.Total,
		ID:     v.Item.ID,
		Turns:  v.Item.Turns,
		Latest: toRatingDTO(v.Latest),
	}})
}

// HandleSubmit appends a rating.
// POST /api/assess/{culture}/ratings
// Request: {"itemId":"...","scores":{"empathy_warmth":4,...},"comment":"..."}
func (h *AssessHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	var req struct {
		ItemID  string         `json:"itemId"`
		Scores  map[string]int `json:"scores"`
		Comment string         `json:"comment"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	res, err := h.assess.Submit(r.Context(), service.Submission{
		RaterID: ident.Participant.RaterID,
		Culture: r.PathValue("culture"),
		ItemID:  req.ItemID,
		Scores:  req.Scores,
		Comment: req.Comment,
	})
	if err != nil {
		writeServiceError(w, "submit assessment", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"rating":    toRatingDTO(res.Row),
		"nextIndex": res.NextIndex,
		"progress":  res.Progress,
		"allRated":  res.AllRated,
	})
}

// HandleExportAssessments streams the assessment ledger as CSV.
// GET /api/export/assessments.csv
func (h *AssessHandler) HandleExportAssessments(w http.ResponseWriter, r *http.Request) {
	rows, err := h.assess.Export(r.Context())
	if err != nil {
		writeServiceError(w, "export assessments", err)
		return
	}
	setCSVHeaders(w, "assessments")
	if err := export.WriteAssessments(w, rows); err != nil {
		slog.Error("write assessments csv", "error", err)
	}
}

// HandleExportEfficacy streams the self-efficacy ledger as CSV.
// GET /api/export/efficacy.csv
func (h *AssessHandler) HandleExportEfficacy(w http.ResponseWriter, r *http.Request) {
	rows, err := h.practice.ExportEfficacy(r.Context())
	if err != nil {
		writeServiceError(w, "export self-efficacy", err)
		return
	}
	setCSVHeaders(w, "self_efficacy")
	if err := export.WriteEfficacy(w, rows); err != nil {
		slog.Error("write self-efficacy csv", "error", err)
	}
}

func setCSVHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		`attachment; filename="`+name+`_`+time.Now().UTC().Format("20060102")+`.csv"`)
}
