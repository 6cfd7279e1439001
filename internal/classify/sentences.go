package classify

import "strings"

// abbreviations is the fixed list of abbreviations protected from
// sentence-boundary splitting
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true, "inc": true, "ltd": true,
	"co": true, "corp": true, "vs": true, "etc": true, "eg": true,
	"ie": true, "approx": true, "dept": true, "est": true, "no": true,
}

// SplitSentences splits prompt on sentence punctuation, protecting the
// abbreviation list above so "Dr. Smith called." doesn't split after "Dr.".
func SplitSentences(prompt string) []string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil
	}

	var sentences []string
	var cur strings.Builder
	runes := []rune(prompt)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if r == '.' && isProtectedAbbreviation(cur.String()) {
			continue
		}
		// Only split if followed by whitespace/EOF, so "3.14" / "example.com"
		// within a single token don't trigger a break.
		if i+1 < len(runes) && !isSentenceBoundarySpace(runes[i+1]) {
			continue
		}
		sentences = append(sentences, strings.TrimSpace(cur.String()))
		cur.Reset()
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		sentences = append(sentences, rest)
	}
	if len(sentences) == 0 {
		sentences = []string{prompt}
	}
	return sentences
}

func isSentenceBoundarySpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// isProtectedAbbreviation reports whether the token ending at the current
// '.' is a known abbreviation (case-insensitive, trailing punctuation
// stripped, internal dots removed so "e.g." matches "eg").
func isProtectedAbbreviation(built string) bool {
	built = strings.TrimRight(built, ".")
	fields := strings.Fields(built)
	if len(fields) == 0 {
		return false
	}
	last := strings.ToLower(fields[len(fields)-1])
	last = strings.Trim(last, "\"'[]")
	last = strings.ReplaceAll(last, ".", "")
	return abbreviations[last]
}
