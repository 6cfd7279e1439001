// Package textnorm provides the shared name/content canonicalization used by
// the store's entity lookup and the safety nets' instruction dedup key.
package textnorm

import (
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
)

// qualifiers is the fixed trailing-qualifier list stripped from entity names
// and instruction dedup keys alike.
var qualifiers = []string{
	"project", "account", "client", "tool", "team", "company", "org",
}

var qualifierAutomaton *ahocorasick.Automaton

func init() {
	patterns := make([]string, len(qualifiers))
	for i, q := range qualifiers {
		patterns[i] = " " + q
	}
	automaton, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		Build()
	if err != nil {
		// The pattern set is fixed and known-good; this can only fail on a
		// library bug, in which case qualifier stripping silently no-ops.
		qualifierAutomaton = nil
		return
	}
	qualifierAutomaton = automaton
}

// isJoiner reports whether r commonly appears inside names ("O'Brien",
// "Jean-Luc", "AT&T") and should be preserved rather than treated as a
// token boundary.
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘',
		'-', '–', '—',
		'·', '.', '_', '/', '#', '&':
		return true
	default:
		return false
	}
}

// Canonicalize lowercases s, collapses runs of whitespace/punctuation into
// single spaces while preserving in-name joiners, and trims the result. It
// is the single normalization function shared by findEntitiesByName and the
// instruction safety net's dedup key.
func Canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}

	result := out.String()
	if len(result) > 0 && result[len(result)-1] == ' ' {
		result = result[:len(result)-1]
	}
	return result
}

// StripQualifiers removes a fixed set of trailing qualifier words (project,
// account, client, tool, team, company, org) from an already-canonicalized
// name, repeating until no qualifier ends the name ("acme tool team" ->
// "acme"); each round is one Aho-Corasick scan rather than a loop of
// strings.TrimSuffix calls.
func StripQualifiers(canonical string) string {
	if qualifierAutomaton == nil {
		return trimQualifiersFallback(canonical)
	}
	for {
		haystack := []byte(canonical)
		matches := qualifierAutomaton.FindAllOverlapping(haystack)
		trimmed := canonical
		for _, m := range matches {
			if m.End == len(canonical) {
				candidate := strings.TrimRight(canonical[:m.Start], " ")
				if len(candidate) < len(trimmed) {
					trimmed = candidate
				}
			}
		}
		if trimmed == canonical {
			return canonical
		}
		canonical = trimmed
	}
}

func trimQualifiersFallback(s string) string {
	for {
		trimmed := s
		for _, q := range qualifiers {
			trimmed = strings.TrimSuffix(trimmed, " "+q)
		}
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

// EntityKey canonicalizes a name and strips trailing qualifiers, producing
// the lookup/dedup key used by findEntitiesByName and the instruction
// pre-fetch safety net.
func EntityKey(name string) string {
	return StripQualifiers(Canonicalize(name))
}
