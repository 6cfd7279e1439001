// Package stem implements the lightweight suffix-stripping stemmer used
// only for LIKE-based topic matching over instruction content, never for
// embedding retrieval.
package stem

import (
	"strings"

	"github.com/orsinium-labs/stopwords"
)

var en = stopwords.MustGet("en")

var suffixGroupOne = []string{"ting", "sing", "ning", "ling", "ring", "ding", "ping", "ying"}
var suffixGroupTwo = []string{"ied", "ies", "ing", "ed", "er", "es", "ly"}

// Stem applies the three-step suffix-stripping rule to a single lowercased
// word of length >= 4. Shorter words pass through unchanged.
func Stem(word string) string {
	w := strings.ToLower(word)
	if len(w) < 4 {
		return w
	}

	for _, suf := range suffixGroupOne {
		if strings.HasSuffix(w, suf) {
			if candidate := w[:len(w)-len(suf)]; len(candidate) >= 3 {
				w = candidate
			}
			break
		}
	}

	for _, suf := range suffixGroupTwo {
		if strings.HasSuffix(w, suf) {
			if candidate := w[:len(w)-len(suf)]; len(candidate) >= 3 {
				w = candidate
			}
			break
		}
	}

	if strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w)-1 >= 4 {
		w = w[:len(w)-1]
	}

	return w
}

// TopicStems tokenizes a topic string, drops stopwords and tokens shorter
// than 3 characters, and stems what remains -- the input to
// Store.GetInstructions's any-stem LIKE match.
func TopicStems(topic string) []string {
	fields := strings.Fields(strings.ToLower(topic))
	stems := make([]string, 0, len(fields))
	seen := make(map[string]bool)
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'[]{}")
		if len(f) <= 2 {
			continue
		}
		if en.Contains(f) {
			continue
		}
		s := Stem(f)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		stems = append(stems, s)
	}
	return stems
}
