package retrieval

import (
	"sort"
	"strings"
	"unicode"
)

// minSubstringRunes is the smallest query length that earns the exact
// substring bonus; shorter queries match too many documents by accident.
const minSubstringRunes = 2

// Tokenize lowercases the text and splits it into latin/digit words plus
// CJK unigrams and bigrams. CJK text has no word boundaries, so bigrams
// stand in for words.
func Tokenize(s string) []string {
	s = strings.ToLower(s)
	var tokens []string
	var word []rune
	var prevCJK rune

	flush := func() {
		if len(word) > 0 {
			tokens = append(tokens, string(word))
			word = word[:0]
		}
	}

	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
			if prevCJK != 0 {
				tokens = append(tokens, string([]rune{prevCJK, r}))
			}
			prevCJK = r
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word = append(word, r)
			prevCJK = 0
		default:
			flush()
			prevCJK = 0
		}
	}
	flush()
	return tokens
}

// lexicalScore counts how many query tokens the document contains, with a
// flat bonus when the whole query appears verbatim.
func lexicalScore(queryTokens []string, query string, doc string) float64 {
	docLower := strings.ToLower(doc)
	docTokens := make(map[string]bool)
	for _, t := range Tokenize(doc) {
		docTokens[t] = true
	}

	var score float64
	for _, t := range queryTokens {
		if docTokens[t] {
			score++
		}
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if len([]rune(q)) >= minSubstringRunes && strings.Contains(docLower, q) {
		score += float64(len(queryTokens))
	}
	return score
}

// lexicalTopK ranks items by lexical score and keeps the k best with a
// positive score.
func lexicalTopK(query string, items []Item, k int) []Result {
	queryTokens := Tokenize(query)
	results := make([]Result, 0, len(items))
	for _, it := range items {
		s := lexicalScore(queryTokens, query, it.Text)
		if s > 0 {
			results = append(results, Result{Item: it, Score: s})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}
