package nlg

import (
	"regexp"
	"strings"
)

// Data tokens that must survive rephrasing verbatim.
var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bAPPT-[A-Z0-9]{8}\b`),
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`\b\d{1,2}:\d{2}\b`),
}

// ExtractTokens returns the data tokens present in text, in order of the
// pattern list, duplicates removed.
func ExtractTokens(text string) []string {
	var tokens []string
	seen := map[string]struct{}{}
	for _, pattern := range tokenPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			if _, dup := seen[match]; dup {
				continue
			}
			seen[match] = struct{}{}
			tokens = append(tokens, match)
		}
	}
	return tokens
}

// PreservesTokens reports whether every data token of src appears verbatim in
// out. A rephrased reply that drops or mangles a date, time or confirmation
// code is rejected.
func PreservesTokens(src, out string) bool {
	for _, token := range ExtractTokens(src) {
		if !strings.Contains(out, token) {
			return false
		}
	}
	return true
}
