package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse_ValidJSON(t *testing.T) {
	raw := `{"entities":[{"name":"Alice","type":"person"}],"implied_facts":["likes tea"],
		"intents":["information"],"operations":{"retrieve":true,"store":false}}`

	r, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Len(t, r.Entities, 1)
	assert.Equal(t, "Alice", r.Entities[0].Name)
	assert.Len(t, r.ImpliedFacts, 1)
}

func TestParseResponse_WithCodeFence(t *testing.T) {
	raw := "```json\n{\"entities\":[],\"intents\":[\"recall\"]}\n```"

	r, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Len(t, r.Intents, 1)
	assert.Equal(t, IntentRecall, r.Intents[0])
}

func TestParseResponse_EmptyInput(t *testing.T) {
	_, err := ParseResponse("   ")
	assert.Error(t, err, "expected error for empty input")
}

func TestParseResponse_InvalidJSON(t *testing.T) {
	_, err := ParseResponse("not json at all")
	assert.Error(t, err, "expected error for invalid JSON")
}

func TestParseResponse_FiltersUnknownIntents(t *testing.T) {
	raw := `{"intents":["information","made_up_intent","planning"]}`

	r, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.Len(t, r.Intents, 2, "expected unknown intent filtered out")
}

func TestRuleBasedFallback_ExtractsCapitalizedEntities(t *testing.T) {
	r := RuleBasedFallback("I met Bob at the Conference yesterday.")

	found := false
	for _, e := range r.Entities {
		if e.Name == "Bob" {
			found = true
		}
		assert.NotEqual(t, "I", e.Name, "sentence-starter capitalization should not be treated as an entity")
	}
	assert.True(t, found, "expected Bob to be extracted as an entity")
	assert.True(t, r.Operations.Retrieve)
	assert.False(t, r.Operations.Store)
}

func TestRuleBasedFallback_NoCapitalizedWords(t *testing.T) {
	r := RuleBasedFallback("i went to the store today")
	assert.Empty(t, r.Entities)
}
