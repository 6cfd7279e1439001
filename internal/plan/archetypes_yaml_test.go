package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadArchetypeOverrides_EmptyPathReturnsBuiltins(t *testing.T) {
	got, err := LoadArchetypeOverrides("")
	require.NoError(t, err)
	assert.Equal(t, InstructionArchetypes, got)
}

func TestLoadArchetypeOverrides_MissingFileReturnsBuiltins(t *testing.T) {
	got, err := LoadArchetypeOverrides(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, InstructionArchetypes, got)
}

func TestLoadArchetypeOverrides_AppendsNewArchetypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archetypes.yaml")
	content := "archetypes:\n  - name: escalation_path\n    description: who to notify on a breach\n    scope: 0.5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := LoadArchetypeOverrides(path)
	require.NoError(t, err)
	assert.Len(t, got, len(InstructionArchetypes)+1)
	assert.Equal(t, "escalation_path", got[len(got)-1].Name)
}

func TestLoadArchetypeOverrides_SkipsDuplicateNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archetypes.yaml")
	content := "archetypes:\n  - name: ban\n    description: duplicate of a builtin\n    scope: 0.9\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := LoadArchetypeOverrides(path)
	require.NoError(t, err)
	assert.Len(t, got, len(InstructionArchetypes), "expected a duplicate archetype name to be skipped")
}
