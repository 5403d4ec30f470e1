package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"agent", "command", "plan", "skill"}, Names())
}

func TestForFrontmatter(t *testing.T) {
	s, err := For("commands")
	require.NoError(t, err)

	_, ok := s.Properties.Get("argument-hint")
	assert.True(t, ok)
	_, ok = s.Properties.Get("model")
	assert.True(t, ok)
	assert.Contains(t, s.Required, "description")
}

func TestForPlan(t *testing.T) {
	s, err := For("plan")
	require.NoError(t, err)

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"needs_input"`)
	assert.Contains(t, string(b), `"steps"`)
	assert.NotContains(t, string(b), `"$ref"`)
}

func TestForUnknown(t *testing.T) {
	_, err := For("workflow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown schema 'workflow'")
}

func TestGenerateInput(t *testing.T) {
	type input struct {
		Text  string `json:"text" jsonschema:"description=Free text"`
		Limit int    `json:"limit,omitempty"`
	}
	s := Generate[input]()
	assert.Equal(t, "object", s.Type)
	assert.Equal(t, []string{"text"}, s.Required)
}
