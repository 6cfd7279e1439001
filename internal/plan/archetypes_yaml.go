package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// archetypeFile is the top-level structure of an instruction archetype
// override file.
//
// Example:
//
//	archetypes:
//	  - name: escalation_path
//	    description: who to notify when a threshold is breached
//	    scope: 0.5
type archetypeFile struct {
	Archetypes []Archetype `yaml:"archetypes"`
}

// LoadArchetypeOverrides reads a YAML file of additional instruction
// archetypes and appends them to the built-in table, letting an operator
// extend the eight recognized archetypes without a code change. A missing
// path is not an error; deployments that don't need extra archetypes simply
// omit the flag/env var.
func LoadArchetypeOverrides(path string) ([]Archetype, error) {
	if path == "" {
		return InstructionArchetypes, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return InstructionArchetypes, nil
		}
		return nil, fmt.Errorf("plan: read archetype file %q: %w", path, err)
	}

	var af archetypeFile
	if err := yaml.Unmarshal(raw, &af); err != nil {
		return nil, fmt.Errorf("plan: parse archetype file %q: %w", path, err)
	}

	merged := make([]Archetype, 0, len(InstructionArchetypes)+len(af.Archetypes))
	merged = append(merged, InstructionArchetypes...)
	seen := make(map[string]bool, len(merged))
	for _, a := range merged {
		seen[a.Name] = true
	}
	for _, a := range af.Archetypes {
		if a.Name == "" || seen[a.Name] {
			continue
		}
		seen[a.Name] = true
		merged = append(merged, a)
	}
	return merged, nil
}
