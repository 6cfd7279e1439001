package stem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStemShortWordsPassThrough(t *testing.T) {
	for _, w := range []string{"a", "is", "the", "cat"} {
		assert.Equal(t, w, Stem(w))
	}
}

func TestStemSuffixGroupOne(t *testing.T) {
	cases := map[string]string{
		"meeting": "mee",
		"calling": "cal",
	}
	for in, want := range cases {
		assert.Equal(t, want, Stem(in))
	}
}

func TestStemSuffixGroupTwo(t *testing.T) {
	cases := map[string]string{
		"deployed": "deploy",
		"quickly":  "quick",
		"writer":   "writ",
	}
	for in, want := range cases {
		assert.Equal(t, want, Stem(in))
	}
}

func TestStemTrailingSPreservesDoubleS(t *testing.T) {
	assert.Equal(t, "process", Stem("process"), "expected unchanged (ends in ss)")
}

func TestTopicStemsDropsStopwordsAndShortTokens(t *testing.T) {
	got := TopicStems("the deadline and writer ok")
	assert.Equal(t, []string{"deadline", "writ"}, got)
}

func TestTopicStemsDeduplicates(t *testing.T) {
	got := TopicStems("deploy deploying deployed")
	assert.Equal(t, []string{"deploy", "deplo"}, got, "expected deploy and deployed to dedup to one stem; deploying strips \"ying\" to deplo")
}
