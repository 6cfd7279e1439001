package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSentences_Basic(t *testing.T) {
	got := SplitSentences("I like tea. She likes coffee!")
	assert.Equal(t, []string{"I like tea.", "She likes coffee!"}, got)
}

func TestSplitSentences_ProtectsAbbreviations(t *testing.T) {
	got := SplitSentences("Dr. Smith called about the meeting.")
	assert.Len(t, got, 1, "expected abbreviation to prevent a split")
}

func TestSplitSentences_DoesNotSplitOnDecimalOrDomain(t *testing.T) {
	got := SplitSentences("The price is 3.14 dollars and see example.com for details.")
	assert.Len(t, got, 1, "expected no split on embedded periods")
}

func TestSplitSentences_EmptyInput(t *testing.T) {
	got := SplitSentences("   ")
	assert.Nil(t, got)
}

func TestSplitSentences_NoTerminalPunctuation(t *testing.T) {
	got := SplitSentences("just a fragment with no period")
	assert.Equal(t, []string{"just a fragment with no period"}, got)
}
