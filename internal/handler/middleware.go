package handler

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/service"
)

type contextKey string

const identityContextKey contextKey = "identity"

const authCookie = "auth_token"

// IdentityFromContext extracts the signed-in identity from the request
// context. Returns nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	ident, _ := ctx.Value(identityContextKey).(*domain.Identity)
	return ident
}

// RequireAuth rejects requests without a valid identity cookie with 401
// and injects the identity otherwise.
func RequireAuth(ids *service.IdentityService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := authenticateRequest(r, ids)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Sign in to continue.")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityContextKey, ident)))
	})
}

// OptionalAuth injects the identity when a valid cookie is present and
// lets anonymous requests through.
func OptionalAuth(ids *service.IdentityService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ident, err := authenticateRequest(r, ids); err == nil {
			r = r.WithContext(context.WithValue(r.Context(), identityContextKey, ident))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireInstructor must run inside RequireAuth.
func RequireInstructor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := IdentityFromContext(r.Context())
		if ident == nil {
			writeError(w, http.StatusUnauthorized, "Sign in to continue.")
			return
		}
		if !ident.Instructor {
			writeError(w, http.StatusForbidden, "Instructor access is required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit answers 429 with Retry-After once key(r) runs out of tokens.
// A nil limiter disables the check.
func RateLimit(limiter *service.RateLimiter, key func(*http.Request) string, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := limiter.Allow(key(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please wait a moment.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP keys anonymous requests by remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ParticipantKey keys signed-in requests by participant, falling back to
// the client address.
func ParticipantKey(r *http.Request) string {
	if ident := IdentityFromContext(r.Context()); ident != nil {
		return ident.Participant.ID
	}
	return ClientIP(r)
}

// SecurityHeaders sets conservative browser security headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

func authenticateRequest(r *http.Request, ids *service.IdentityService) (*domain.Identity, error) {
	cookie, err := r.Cookie(authCookie)
	if err != nil {
		return nil, err
	}
	return ids.Resolve(r.Context(), cookie.Value)
}

func setAuthCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

func clearAuthCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
