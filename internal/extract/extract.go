package extract

import (
	"regexp"
	"strings"
)

// Students reference questions as "question 5", "Q5b", or just "5b". The
// keyword form wins over a bare leading number so "question 3 part 2" yields
// "3", not "2".
var (
	keywordRef = regexp.MustCompile(`(?i)\bq(?:uestion)?\s*(\d+)[a-z]*`)
	leadingRef = regexp.MustCompile(`^\s*(\d+)[a-z]*`)
)

// QuestionNumber parses free text into a question-number reference. Returns
// the digit group, or "" when the text carries no reference.
func QuestionNumber(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if m := keywordRef.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := leadingRef.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
