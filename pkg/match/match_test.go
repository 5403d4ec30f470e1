package match

import (
	"context"
	"testing"

	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/docs/docstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := docs.Load(context.Background(), docstest.WriteBundle(t))
	require.NoError(t, err)
	return NewEngine(store)
}

func TestMatchRanksByDescription(t *testing.T) {
	e := newTestEngine(t)

	matches := e.Match(context.Background(), "How do I handle API errors with retries in my workflow steps?", Options{
		Kinds: []docs.Kind{docs.KindSkill},
	})
	require.NotEmpty(t, matches)
	assert.Equal(t, "output-error-handling", matches[0].Name)
	assert.Equal(t, docs.KindSkill, matches[0].Kind)
	assert.Contains(t, matches[0].Reasons[0], "terms:")

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestMatchTriggerBonus(t *testing.T) {
	e := newTestEngine(t)

	matches := e.Match(context.Background(), "I am designing the workflow structure for billing", Options{
		Kinds: []docs.Kind{docs.KindSkill},
	})
	require.NotEmpty(t, matches)
	assert.Equal(t, "output-workflow-structure", matches[0].Name)
	assert.Contains(t, matches[0].Reasons, `trigger "designing workflow structure" (workflow-planner)`)
	assert.Greater(t, matches[0].Score, triggerBonus)
}

func TestMatchNameMentioned(t *testing.T) {
	e := newTestEngine(t)

	matches := e.Match(context.Background(), "apply Output-Prompts here", Options{Kinds: []docs.Kind{docs.KindSkill}})
	require.NotEmpty(t, matches)
	assert.Equal(t, "output-prompts", matches[0].Name)
	assert.Contains(t, matches[0].Reasons, "name mentioned")
}

func TestMatchOptions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	request := "review workflow code quality and error handling"

	assert.Nil(t, e.Match(ctx, "   ", Options{}))
	assert.Len(t, e.Match(ctx, request, Options{Limit: 1}), 1)
	assert.Empty(t, e.Match(ctx, request, Options{Threshold: 5}))

	agents := e.Match(ctx, request, Options{Kinds: []docs.Kind{docs.KindAgent}})
	require.NotEmpty(t, agents)
	assert.Equal(t, "workflow-quality", agents[0].Name)
	for _, m := range agents {
		assert.Equal(t, docs.KindAgent, m.Kind)
	}
}

func TestMatchTiesSortByName(t *testing.T) {
	root := t.TempDir()
	docstest.WriteFile(t, root, "skills/b-skill/SKILL.md", docstest.SkillDoc("b-skill", "deploy services"))
	docstest.WriteFile(t, root, "skills/a-skill/SKILL.md", docstest.SkillDoc("a-skill", "deploy services"))
	store, err := docs.Load(context.Background(), root)
	require.NoError(t, err)

	matches := NewEngine(store).Match(context.Background(), "deploy services", Options{})
	require.Len(t, matches, 2)
	assert.Equal(t, "a-skill", matches[0].Name)
	assert.Equal(t, "b-skill", matches[1].Name)
	assert.Equal(t, matches[0].Score, matches[1].Score)
}

func TestTriggers(t *testing.T) {
	triggers := []docs.Trigger{
		{When: "convert * workflow", Skill: "output-prompts"},
		{When: "designing schemas", Skill: "output-workflow-structure"},
		{When: "API failures", Skill: "output-error-handling"},
	}

	got := Triggers("Please convert the legacy workflow; the API failures are annoying", triggers)
	require.Len(t, got, 2)
	assert.Equal(t, "output-prompts", got[0].Skill)
	assert.Equal(t, "output-error-handling", got[1].Skill)

	assert.Empty(t, Triggers("", triggers))
}
