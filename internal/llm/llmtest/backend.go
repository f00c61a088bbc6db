// Package llmtest provides scripted generation backends for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/msomdec/care-practice/internal/llm"
)

// Backend is a thread-safe scripted backend. Handler decides the reply
// for each request; when nil, Responses are returned in sequence and Err
// takes precedence over both.
type Backend struct {
	ID        string
	Handler   func(req llm.Request) (string, error)
	Responses []string
	Err       error

	mu       sync.Mutex
	requests []llm.Request
	next     int
}

func (b *Backend) Name() string {
	if b.ID == "" {
		return "scripted"
	}
	return b.ID
}

func (b *Backend) Complete(ctx context.Context, req llm.Request) (string, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	if b.Err != nil {
		b.mu.Unlock()
		return "", b.Err
	}
	if b.Handler != nil {
		h := b.Handler
		b.mu.Unlock()
		return h(req)
	}
	defer b.mu.Unlock()
	if b.next < len(b.Responses) {
		r := b.Responses[b.next]
		b.next++
		return r, nil
	}
	return "", nil
}

// Calls returns how many requests the backend received.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// Requests returns a copy of the received requests.
func (b *Backend) Requests() []llm.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]llm.Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// Gateway wraps backends in an llm.Gateway.
func Gateway(backends ...llm.Backend) *llm.Gateway {
	return llm.NewGateway(backends)
}
