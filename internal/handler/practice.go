package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/service"
	"github.com/msomdec/care-practice/internal/view"
)

// PracticeHandler exposes the practice protocol as a JSON API and as a
// datastar-driven page.
type PracticeHandler struct {
	practice *service.PracticeService
}

// NewPracticeHandler creates a new PracticeHandler.
func NewPracticeHandler(practice *service.PracticeService) *PracticeHandler {
	return &PracticeHandler{practice: practice}
}

// HandleGet returns the current state, generating the client line the
// counselor must answer when it is missing.
// GET /api/practice
func (h *PracticeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "get practice", func(ctx context.Context, pid string) (*service.Outcome, error) {
		return h.practice.Get(ctx, pid)
	})
}

// HandleStart restarts the protocol.
// POST /api/practice/start
func (h *PracticeHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "start practice", h.practice.Start)
}

// HandleAdvance moves to the next phase.
// POST /api/practice/advance
func (h *PracticeHandler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "advance phase", h.practice.Advance)
}

// HandleMode selects the practice feedback mode.
// PUT /api/practice/mode
// Request: {"mode":"practice_feedback"}
func (h *PracticeHandler) HandleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode domain.Mode `json:"mode"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	h.respond(w, r, "select mode", func(ctx context.Context, pid string) (*service.Outcome, error) {
		return h.practice.SelectMode(ctx, pid, req.Mode)
	})
}

// HandleTurn submits a counselor reply.
// POST /api/practice/turns
// Request: {"text":"..."}
func (h *PracticeHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	h.respond(w, r, "submit turn", func(ctx context.Context, pid string) (*service.Outcome, error) {
		return h.practice.SubmitTurn(ctx, pid, req.Text)
	})
}

// HandleEfficacy records a self-efficacy rating.
// POST /api/practice/efficacy
// Request: {"exploration":5,"action":4,"sessionMgmt":6}
func (h *PracticeHandler) HandleEfficacy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Exploration int `json:"exploration"`
		Action      int `json:"action"`
		SessionMgmt int `json:"sessionMgmt"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	h.respond(w, r, "save self-efficacy", func(ctx context.Context, pid string) (*service.Outcome, error) {
		return h.practice.SaveSelfEfficacy(ctx, pid, service.EfficacyScores{
			Exploration: req.Exploration,
			Action:      req.Action,
			SessionMgmt: req.SessionMgmt,
		})
	})
}

// HandleFeedback generates the session-level feedback report.
// POST /api/practice/feedback
func (h *PracticeHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	fb, err := h.practice.SessionFeedback(r.Context(), ident.Participant.ID)
	if err != nil {
		writeServiceError(w, "session feedback", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": fb})
}

// HandleResults returns the transcript with warnings and aggregates.
// GET /api/practice/results
func (h *PracticeHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	res, err := h.practice.Results(r.Context(), ident.Participant.ID)
	if err != nil {
		writeServiceError(w, "practice results", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": toResultsDTO(res, h.practice.Protocol(), h.practice.Rules()),
	})
}

// HandlePage renders the practice screen.
// GET /practice
func (h *PracticeHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	if ident == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	out, err := h.practice.Get(r.Context(), ident.Participant.ID)
	if out == nil {
		status, msg := errorStatus("practice page", err)
		http.Error(w, msg, status)
		return
	}
	page := view.Layout("Practice", ident.Participant.Email, view.PracticePage(h.practiceView(out)))
	if err := page.Render(r.Context(), w); err != nil {
		slog.Error("render practice page", "error", err)
	}
}

// HandleSend submits the reply signal and patches the screen.
// POST /practice/send
func (h *PracticeHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var signals struct {
		Reply string `json:"reply"`
	}
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ident := IdentityFromContext(r.Context())
	out, err := h.practice.SubmitTurn(r.Context(), ident.Participant.ID, signals.Reply)
	h.patchScreen(w, r, "submit turn", out, err, true)
}

// HandleAdvancePage advances from the page.
// POST /practice/advance
func (h *PracticeHandler) HandleAdvancePage(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	out, err := h.practice.Advance(r.Context(), ident.Participant.ID)
	h.patchScreen(w, r, "advance phase", out, err, false)
}

// HandleRestartPage restarts from the page.
// POST /practice/restart
func (h *PracticeHandler) HandleRestartPage(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	out, err := h.practice.Start(r.Context(), ident.Participant.ID)
	h.patchScreen(w, r, "start practice", out, err, false)
}

func (h *PracticeHandler) patchScreen(w http.ResponseWriter, r *http.Request, op string, out *service.Outcome, err error, clearReply bool) {
	sse := datastar.NewSSE(w, r)
	if out == nil {
		_, msg := errorStatus(op, err)
		sse.PatchElementTempl(view.NoticesFragment([]service.Notice{{Kind: "error", Message: msg}}))
		return
	}

	v := h.practiceView(out)
	sse.PatchElementTempl(view.StatusFragment(v))
	sse.PatchElementTempl(view.TranscriptFragment(v))
	sse.PatchElementTempl(view.NoticesFragment(v.Notices))
	sse.PatchElementTempl(view.HintFragment(v.Hint))
	if clearReply {
		sse.MarshalAndPatchSignals(map[string]any{"reply": ""})
	}
}

func (h *PracticeHandler) practiceView(out *service.Outcome) view.PracticeView {
	protocol := h.practice.Protocol()
	s := out.State
	return view.PracticeView{
		State:     s,
		Scenario:  protocol.ScenarioFor(s.Phase).Name,
		TurnLimit: protocol.TurnLimit(s.Phase),
		Hint:      service.InputHint(s),
		Notices:   out.Notices,
		Warnings:  service.TurnWarnings(s.ClientTexts, s.CounselorTexts, s.Labels, h.practice.Rules()),
	}
}

type practiceOp func(ctx context.Context, participantID string) (*service.Outcome, error)

func (h *PracticeHandler) respond(w http.ResponseWriter, r *http.Request, op string, fn practiceOp) {
	ident := IdentityFromContext(r.Context())
	out, err := fn(r.Context(), ident.Participant.ID)
	if out == nil {
		writeServiceError(w, op, err)
		return
	}
	session := toSessionDTO(out, h.practice.Protocol(), h.practice.Rules())
	if err != nil {
		// The transition was saved but a client line is missing.
		status, msg := errorStatus(op, err)
		writeJSON(w, status, map[string]any{"error": msg, "session": session})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}
