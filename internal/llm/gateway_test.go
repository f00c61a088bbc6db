package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msomdec/care-practice/internal/llm"
	"github.com/msomdec/care-practice/internal/llm/llmtest"
)

func TestGateway_FirstBackendServes(t *testing.T) {
	primary := &llmtest.Backend{ID: "primary", Responses: []string{"  hello there  "}}
	secondary := &llmtest.Backend{ID: "secondary", Responses: []string{"unused"}}
	g := llm.NewGateway([]llm.Backend{primary, secondary})

	text, err := g.Generate(context.Background(), "prompt", 100, 0.7)
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 0, secondary.Calls())

	reqs := primary.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, 100, reqs[0].MaxTokens)
	assert.InDelta(t, 0.7, reqs[0].Temperature, 1e-9)
}

func TestGateway_FallsBackInOrder(t *testing.T) {
	a := &llmtest.Backend{ID: "a", Err: errors.New("timeout")}
	b := &llmtest.Backend{ID: "b", Responses: []string{""}}
	c := &llmtest.Backend{ID: "c", Responses: []string{"from c"}}
	g := llm.NewGateway([]llm.Backend{a, b, c})

	text, err := g.Generate(context.Background(), "prompt", 50, 0.1)
	require.NoError(t, err)
	assert.Equal(t, "from c", text)
	assert.Equal(t, 1, a.Calls(), "no retry within a backend")
	assert.Equal(t, 1, b.Calls())
	assert.Equal(t, 1, c.Calls())
}

func TestGateway_AllFail(t *testing.T) {
	last := errors.New("connection refused")
	a := &llmtest.Backend{ID: "a", Err: errors.New("boom")}
	b := &llmtest.Backend{ID: "b", Err: last}
	g := llm.NewGateway([]llm.Backend{a, b})

	_, err := g.Generate(context.Background(), "prompt", 50, 0.1)
	require.Error(t, err)
	assert.True(t, llm.IsGenerationFailure(err))
	assert.ErrorIs(t, err, last)

	var gf *llm.GenerationFailure
	require.ErrorAs(t, err, &gf)
	assert.Equal(t, []string{"a", "b"}, gf.Attempted)
}

func TestGateway_NoBackends(t *testing.T) {
	g := llm.NewGateway(nil)
	_, err := g.Generate(context.Background(), "prompt", 50, 0.1)
	assert.True(t, llm.IsGenerationFailure(err))
	assert.ErrorIs(t, err, llm.ErrNoBackends)
}

func TestGateway_CancelledContextStops(t *testing.T) {
	a := &llmtest.Backend{ID: "a", Responses: []string{"never"}}
	g := llm.NewGateway([]llm.Backend{a})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, "prompt", 50, 0.1)
	assert.True(t, llm.IsGenerationFailure(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, a.Calls())
}

func TestGateway_Backends(t *testing.T) {
	g := llm.NewGateway([]llm.Backend{&llmtest.Backend{ID: "x"}, &llmtest.Backend{ID: "y"}})
	assert.Equal(t, []string{"x", "y"}, g.Backends())
}
