package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/service"
	"github.com/msomdec/care-practice/internal/view"
)

// AuthHandler signs participants in and out.
type AuthHandler struct {
	ids          *service.IdentityService
	tokenTTL     time.Duration
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(ids *service.IdentityService, tokenTTL time.Duration, cookieSecure bool) *AuthHandler {
	return &AuthHandler{ids: ids, tokenTTL: tokenTTL, cookieSecure: cookieSecure}
}

// HandleSignIn processes a JSON sign-in request.
// POST /api/auth/signin
// Request:  {"email":"..."}
// Response: {"participant": {...}}
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	p, token, err := h.ids.SignIn(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, "sign in", err)
		return
	}
	setAuthCookie(w, token, h.tokenTTL, h.cookieSecure)
	slog.Info("participant signed in", "participant", p.ID)
	writeJSON(w, http.StatusOK, map[string]any{"participant": toParticipantDTO(p, false)})
}

// HandleSignInPage signs in from the datastar form and redirects to practice.
// POST /signin
func (h *AuthHandler) HandleSignInPage(w http.ResponseWriter, r *http.Request) {
	var signals struct {
		Email string `json:"email"`
	}
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	_, token, err := h.ids.SignIn(r.Context(), signals.Email)
	if err != nil {
		_, msg := errorStatus("sign in", err)
		sse := datastar.NewSSE(w, r)
		sse.PatchElementTempl(view.ErrorFragment("signin-error", msg))
		return
	}
	setAuthCookie(w, token, h.tokenTTL, h.cookieSecure)
	sse := datastar.NewSSE(w, r)
	sse.Redirect("/practice")
}

// HandleSignOut clears the identity cookie.
// POST /api/auth/signout, POST /signout
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	clearAuthCookie(w, h.cookieSecure)
	if r.Header.Get("Datastar-Request") == "true" {
		sse := datastar.NewSSE(w, r)
		sse.Redirect("/")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the signed-in participant.
// GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participant": toParticipantDTO(ident.Participant, ident.Instructor)})
}

// HandleUpdateRater changes the rater label used on assessment rows.
// PATCH /api/auth/rater
// Request: {"raterId":"..."}
func (h *AuthHandler) HandleUpdateRater(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	var req struct {
		RaterID string `json:"raterId"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	p, err := h.ids.UpdateRaterID(r.Context(), ident.Participant.ID, req.RaterID)
	if err != nil {
		writeServiceError(w, "update rater id", err)
		return
	}
	token, err := h.ids.Reissue(p, ident.Instructor)
	if err != nil {
		writeServiceError(w, "reissue token", err)
		return
	}
	setAuthCookie(w, token, h.tokenTTL, h.cookieSecure)
	writeJSON(w, http.StatusOK, map[string]any{"participant": toParticipantDTO(p, ident.Instructor)})
}

// HandleUnlockInstructor grants the instructor role for a correct PIN.
// POST /api/auth/instructor
// Request: {"pin":"..."}
func (h *AuthHandler) HandleUnlockInstructor(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromContext(r.Context())
	var req struct {
		PIN string `json:"pin"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	token, err := h.ids.UnlockInstructor(ident.Participant, req.PIN)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			slog.Warn("instructor unlock refused", "participant", ident.Participant.ID)
			writeError(w, http.StatusForbidden, "Incorrect PIN.")
			return
		}
		writeServiceError(w, "unlock instructor", err)
		return
	}
	setAuthCookie(w, token, h.tokenTTL, h.cookieSecure)
	writeJSON(w, http.StatusOK, map[string]any{"participant": toParticipantDTO(ident.Participant, true)})
}
