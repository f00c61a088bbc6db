package handler

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/msomdec/care-practice/internal/service"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Identity     *service.IdentityService
	Practice     *service.PracticeService
	Assessments  *service.AssessmentService
	Health       *HealthHandler
	TokenTTL     time.Duration
	CookieSecure bool
	// SignInLimiter is keyed by client address, GenerationLimiter by
	// participant. Nil disables either.
	SignInLimiter     *service.RateLimiter
	GenerationLimiter *service.RateLimiter
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, d Deps) {
	authH := NewAuthHandler(d.Identity, d.TokenTTL, d.CookieSecure)
	practiceH := NewPracticeHandler(d.Practice)
	assessH := NewAssessHandler(d.Assessments, d.Practice)

	health := d.Health
	if health == nil {
		health = NewHealthHandler(nil, nil)
	}

	authed := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(d.Identity, h)
	}
	generating := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(d.Identity, RateLimit(d.GenerationLimiter, ParticipantKey, h))
	}
	instructor := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(d.Identity, RequireInstructor(h))
	}

	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Pages.
	mux.Handle("GET /", OptionalAuth(d.Identity, http.HandlerFunc(HandleHome)))
	mux.Handle("GET /practice", OptionalAuth(d.Identity, http.HandlerFunc(practiceH.HandlePage)))
	mux.Handle("POST /signin", RateLimit(d.SignInLimiter, ClientIP, http.HandlerFunc(authH.HandleSignInPage)))
	mux.HandleFunc("POST /signout", authH.HandleSignOut)
	mux.Handle("POST /practice/send", generating(practiceH.HandleSend))
	mux.Handle("POST /practice/advance", generating(practiceH.HandleAdvancePage))
	mux.Handle("POST /practice/restart", generating(practiceH.HandleRestartPage))

	// Identity.
	mux.Handle("POST /api/auth/signin", RateLimit(d.SignInLimiter, ClientIP, http.HandlerFunc(authH.HandleSignIn)))
	mux.HandleFunc("POST /api/auth/signout", authH.HandleSignOut)
	mux.Handle("GET /api/auth/me", authed(authH.HandleMe))
	mux.Handle("PATCH /api/auth/rater", authed(authH.HandleUpdateRater))
	mux.Handle("POST /api/auth/instructor", RateLimit(d.SignInLimiter, ClientIP, authed(authH.HandleUnlockInstructor)))

	// Practice.
	mux.Handle("GET /api/practice", generating(practiceH.HandleGet))
	mux.Handle("POST /api/practice/start", generating(practiceH.HandleStart))
	mux.Handle("POST /api/practice/advance", generating(practiceH.HandleAdvance))
	mux.Handle("PUT /api/practice/mode", authed(practiceH.HandleMode))
	mux.Handle("POST /api/practice/turns", generating(practiceH.HandleTurn))
	mux.Handle("POST /api/practice/efficacy", generating(practiceH.HandleEfficacy))
	mux.Handle("POST /api/practice/feedback", generating(practiceH.HandleFeedback))
	mux.Handle("GET /api/practice/results", authed(practiceH.HandleResults))

	// Assessment.
	mux.Handle("GET /api/assess/cultures", authed(assessH.HandleCultures))
	mux.Handle("GET /api/assess/{culture}", authed(assessH.HandleOverview))
	mux.Handle("GET /api/assess/{culture}/items/{index}", authed(assessH.HandleItem))
	mux.Handle("POST /api/assess/{culture}/ratings", authed(assessH.HandleSubmit))

	// Instructor exports.
	mux.Handle("GET /api/export/assessments.csv", instructor(assessH.HandleExportAssessments))
	mux.Handle("GET /api/export/efficacy.csv", instructor(assessH.HandleExportEfficacy))
}
