package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/gomemory/internal/store"
)

func TestTruncate_ShortStringUnchanged(t *testing.T) {
	assert.Equal(t, "short", Truncate("short"))
}

func TestTruncate_LongStringGetsMarker(t *testing.T) {
	long := strings.Repeat("x", MaxResultChars+100)
	got := Truncate(long)
	assert.Greater(t, len(got), MaxResultChars, "expected truncated output to still exceed the raw limit once the marker is appended")
	assert.True(t, strings.HasSuffix(got, truncationMarker), "expected truncated output to end with the truncation marker")
	assert.True(t, strings.HasPrefix(got, strings.Repeat("x", 10)), "expected truncated output to preserve the original prefix")
}

func TestRemapMisroutedSubtype_DirectType(t *testing.T) {
	nt, subtype := remapMisroutedSubtype("fact", "definitional")
	assert.Equal(t, store.NodeFact, nt)
	assert.Equal(t, "definitional", subtype)
}

func TestRemapMisroutedSubtype_MisroutedAsType(t *testing.T) {
	nt, subtype := remapMisroutedSubtype("tool_usage", "")
	assert.Equal(t, store.NodeInstruction, nt)
	assert.Equal(t, "tool_usage", subtype)

	nt, subtype = remapMisroutedSubtype("scheduled", "")
	assert.Equal(t, store.NodePlan, nt)
	assert.Equal(t, "scheduled", subtype)
}

func TestRemapMisroutedSubtype_Unrecognized(t *testing.T) {
	nt, _ := remapMisroutedSubtype("nonsense", "")
	assert.Empty(t, nt)
}

func TestValidateStoreContent_TooShortNonEntity(t *testing.T) {
	assert.Error(t, ValidateStoreContent("hi", store.NodeFact), "expected error for short non-entity content")
}

func TestValidateStoreContent_ShortEntityAllowed(t *testing.T) {
	assert.NoError(t, ValidateStoreContent("Bob", store.NodeEntity), "expected short entity content to be allowed")
}

func TestValidateStoreContent_RepeatedWords(t *testing.T) {
	assert.Error(t, ValidateStoreContent("test test test test test test", store.NodeFact), "expected error for excessively repetitive content")
}

func TestValidateStoreContent_ValidContent(t *testing.T) {
	assert.NoError(t, ValidateStoreContent("the deployment runs every night at 2am", store.NodeFact), "expected valid content to pass")
}

func TestParseValidFrom_RFC3339(t *testing.T) {
	ms, err := parseValidFrom("2024-01-15T10:00:00Z")
	require.NoError(t, err)
	assert.Greater(t, ms, int64(0), "expected positive unix millis")
}

func TestParseValidFrom_DateOnly(t *testing.T) {
	ms, err := parseValidFrom("2024-01-15")
	require.NoError(t, err)
	assert.Greater(t, ms, int64(0), "expected positive unix millis")
}

func TestParseValidFrom_Malformed(t *testing.T) {
	_, err := parseValidFrom("not a date")
	assert.Error(t, err, "expected error for malformed valid_from")
}

func TestDedupStrings(t *testing.T) {
	got := dedupStrings([]string{"a", "b", "a", "", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestStoreToolDefs_IncludesSharedAndMutatingTools(t *testing.T) {
	defs := StoreToolDefs()
	names := make(map[string]bool)
	for _, d := range defs {
		names[d.Name] = true
	}
	for _, want := range []string{"search_entity", "search_facts", "store_memory", "supersede_memory", "done"} {
		assert.True(t, names[want], "expected store tool set to include %q, got %v", want, names)
	}
}
