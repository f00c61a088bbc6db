package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/msomdec/care-practice/internal/llm"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"empathy": 1}`, `{"empathy": 1}`},
		{"with prose", `Sure! {"empathy": 1, "reflection": 0} hope this helps`, `{"empathy": 1, "reflection": 0}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"trailing comma", `{"a": 1,}`, `{"a": 1}`},
		{"brace in string", `{"note": "use {curly}"} trailing }`, `{"note": "use {curly}"}`},
		{"nested", `x {"a": {"b": 1}} y`, `{"a": {"b": 1}}`},
		{"none", `no json here`, ``},
		{"unbalanced", `{"a": 1`, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, llm.ExtractJSON(tt.in))
		})
	}
}
