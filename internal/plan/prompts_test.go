package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/gomemory/internal/gateway"
)

func TestBuildRetrievalPrompt_ListsTools(t *testing.T) {
	tools := []gateway.ToolDefinition{
		{Name: "search_entity", Description: "find an entity by name"},
	}
	out := BuildRetrievalPrompt("where is Bob", tools)

	assert.Contains(t, out, "where is Bob", "expected prompt to include the user prompt")
	assert.Contains(t, out, "search_entity", "expected prompt to list the available tool")
	assert.Contains(t, out, "find an entity by name", "expected prompt to list the tool description")
}

func TestBuildFilterPrompt_ListsArchetypes(t *testing.T) {
	out := BuildFilterPrompt("always use staging for tests", nil)

	assert.Contains(t, out, "always use staging for tests", "expected prompt to include the user prompt")
	for _, a := range InstructionArchetypes {
		assert.Contains(t, out, a.Name, "expected prompt to list archetype %q", a.Name)
	}
}

func TestParseFilterResponse_ValidJSON(t *testing.T) {
	raw := `{"items":[{"content":"always use staging","type":"instruction"}],"skip_reason":""}`
	r, err := parseFilterResponse(raw)
	require.NoError(t, err)
	require.Len(t, r.Items, 1)
	assert.Equal(t, "instruction", r.Items[0].Type)
}

func TestParseFilterResponse_StripsCodeFence(t *testing.T) {
	raw := "```json\n{\"items\":[],\"skip_reason\":\"just a question\"}\n```"
	r, err := parseFilterResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "just a question", r.SkipReason, "expected skip_reason to survive fence stripping")
}

func TestParseFilterResponse_EmptyYieldsSkipReason(t *testing.T) {
	r, err := parseFilterResponse("   ")
	require.NoError(t, err)
	assert.NotEmpty(t, r.SkipReason, "expected a non-empty skip_reason for an empty response")
}

func TestParseFilterResponse_InvalidJSON(t *testing.T) {
	_, err := parseFilterResponse("not json")
	assert.Error(t, err, "expected error for invalid JSON")
}
