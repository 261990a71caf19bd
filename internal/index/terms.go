package index

import (
	"strings"
	"unicode"
)

// minTermLength is the shortest token worth indexing; shorter tokens are
// mostly articles and noise on a household calendar.
const minTermLength = 3

// stopWords are common English words excluded from the term index.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "this": {},
	"that": {}, "are": {}, "was": {}, "will": {}, "have": {}, "has": {},
	"not": {}, "but": {}, "you": {}, "all": {}, "can": {}, "her": {},
	"his": {}, "our": {}, "out": {}, "get": {}, "about": {}, "into": {},
	"after": {}, "before": {},
}

// extractTerms tokenizes the given text fields into the set of lower-cased
// search terms an event is indexed under. Tokens shorter than
// minTermLength and stop words are dropped.
func extractTerms(fields ...string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, field := range fields {
		for _, token := range strings.FieldsFunc(strings.ToLower(field), isTermSeparator) {
			if len(token) < minTermLength {
				continue
			}
			if _, stop := stopWords[token]; stop {
				continue
			}
			terms[token] = struct{}{}
		}
	}
	return terms
}

// isTermSeparator splits tokens on anything that is not a letter or digit.
func isTermSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// normalizeTerm canonicalizes a user-supplied search term for matching
// against the precomputed term sets.
func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
