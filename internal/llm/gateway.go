// Package llm provides the completion gateway: an ordered list of
// text-generation backends tried one after another until one answers.
package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/msomdec/care-practice/internal/telemetry"
)

// Request is a single prompt-in, text-out generation call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Backend is one text-generation provider. Implementations must be safe
// for concurrent use.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Generator is the narrow interface consumers depend on.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Gateway tries each backend once, in order. It holds no mutable state.
type Gateway struct {
	backends []Backend
	logger   *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger used for fallback warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway creates a gateway over the given backends in fallback order.
func NewGateway(backends []Backend, opts ...Option) *Gateway {
	g := &Gateway{
		backends: backends,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Backends returns the configured backend names in fallback order.
func (g *Gateway) Backends() []string {
	names := make([]string, len(g.backends))
	for i, b := range g.backends {
		names[i] = b.Name()
	}
	return names
}

// Generate returns the trimmed text of the first backend that succeeds.
// A backend error, an empty reply or a timeout moves on to the next
// backend; nothing is retried within a backend. When all fail the error
// is a *GenerationFailure.
func (g *Gateway) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if len(g.backends) == 0 {
		telemetry.GenerationFailures.Inc()
		return "", &GenerationFailure{Err: ErrNoBackends}
	}

	req := Request{Prompt: prompt, MaxTokens: maxTokens, Temperature: temperature}

	var attempted []string
	var lastErr error
	for _, b := range g.backends {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		text, err := b.Complete(ctx, req)
		if err == nil {
			text = strings.TrimSpace(text)
			if text == "" {
				err = ErrEmptyResponse
			}
		}
		if err == nil {
			if len(attempted) > 0 {
				g.logger.Info("generation served by fallback backend",
					"backend", b.Name(), "failed", attempted)
			}
			return text, nil
		}

		attempted = append(attempted, b.Name())
		lastErr = err
		telemetry.GatewayFallbacks.WithLabelValues(b.Name()).Inc()
		g.logger.Warn("backend failed, trying next", "backend", b.Name(), "error", err)
	}

	telemetry.GenerationFailures.Inc()
	g.logger.Error("all generation backends failed", "attempted", attempted, "error", lastErr)
	return "", &GenerationFailure{Attempted: attempted, Err: lastErr}
}
