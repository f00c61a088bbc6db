package handler

import (
	"log/slog"
	"net/http"

	"github.com/msomdec/care-practice/internal/view"
)

// HandleHome sends signed-in participants to practice and shows the
// sign-in form to everyone else.
func HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if IdentityFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/practice", http.StatusSeeOther)
		return
	}
	if err := view.Layout("Sign in", "", view.SignInPage()).Render(r.Context(), w); err != nil {
		slog.Error("render home page", "error", err)
	}
}
