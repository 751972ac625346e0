package agentic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlan_Valid(t *testing.T) {
	raw := `{
		"done": false,
		"reason": "coverage is thin on video",
		"actions": [
			{"type": "web-search", "query": "sparse attention benchmarks", "max_results": 5},
			{"type": "web-extract", "url": "https://a.example/post"},
			{"type": "video-search", "query": "sparse attention talk"}
		]
	}`

	plan, err := ParsePlan(raw, testLog())
	require.NoError(t, err)
	assert.False(t, plan.Done)
	require.Len(t, plan.Actions, 3)
	assert.Equal(t, ActionWebSearch, plan.Actions[0].Type)
	assert.Equal(t, 5, plan.Actions[0].MaxResults)
}

func TestParsePlan_CodeFenceTolerated(t *testing.T) {
	raw := "```json\n{\"done\": true, \"reason\": \"enough\", \"actions\": []}\n```"

	plan, err := ParsePlan(raw, testLog())
	require.NoError(t, err)
	assert.True(t, plan.Done)
	assert.Empty(t, plan.Actions)
}

func TestParsePlan_MalformedActionSkippedOthersSurvive(t *testing.T) {
	raw := `{
		"done": false,
		"actions": [
			{"type": "web-search", "query": "q1"},
			{"type": "academic-search", "query": "q2"},
			{"type": "web-extract"},
			{"type": "preprint-recent-search", "query": "q3"},
			{"type": "video-search", "query": "q4"}
		]
	}`

	plan, err := ParsePlan(raw, testLog())
	require.NoError(t, err, "one bad action must not sink the plan")
	require.Len(t, plan.Actions, 4)
	for _, action := range plan.Actions {
		assert.NotEqual(t, ActionWebExtract, action.Type)
	}
}

func TestParsePlan_SkipsUnknownActionType(t *testing.T) {
	raw := `{"done": false, "actions": [
		{"type": "launch-rocket"},
		{"type": "web-search", "query": "q"}
	]}`

	plan, err := ParsePlan(raw, testLog())
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionWebSearch, plan.Actions[0].Type)
}

func TestParsePlan_SkipsSearchWithoutQuery(t *testing.T) {
	raw := `{"done": false, "actions": [{"type": "web-search"}]}`

	plan, err := ParsePlan(raw, testLog())
	require.NoError(t, err)
	assert.Empty(t, plan.Actions)
}

func TestParsePlan_RejectsGarbage(t *testing.T) {
	_, err := ParsePlan("I could not decide on a plan, sorry!", testLog())
	require.Error(t, err)
}

func TestParsePlan_RejectsUnknownEnvelopeField(t *testing.T) {
	raw := `{"done": false, "actions": [], "surprise": 1}`
	_, err := ParsePlan(raw, testLog())
	require.Error(t, err)
}

func TestActionKey(t *testing.T) {
	assert.Equal(t, "web-search|q", Action{Type: ActionWebSearch, Query: "q"}.Key())
	assert.Equal(t, "web-extract|https://a", Action{Type: ActionWebExtract, URL: "https://a"}.Key())
	assert.Equal(t, "stop", Action{Type: ActionStop}.Key())

	a := Action{Type: ActionWebSearch, Query: "q", MaxResults: 3}
	b := Action{Type: ActionWebSearch, Query: "q", MaxResults: 9}
	assert.Equal(t, a.Key(), b.Key(), "limits do not change identity")
}
