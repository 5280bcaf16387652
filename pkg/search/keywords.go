package search

import (
	"strings"
	"unicode/utf8"
)

// minKeywordLength is the rune count a token must exceed to be a keyword.
const minKeywordLength = 2

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the a an is are was were be been being have has had do does did will
		would could should may might must shall can need dare ought used to of in
		for on with at by from as into through during before after above below
		up down out off over under again further then once here there when where
		why how all each few more most other some such no nor not only own same
		so than too very just and but or what which who this that these those
		의 가 이 은 를 으로 에 와 과 도 는 에서 한 하는 것 등 및 또는 있는
		없는 된 되는 해 하여 위해 대한 통해 무엇 어떤 어떻게 왜 있습니까 입니까`) {
		stopWords[w] = struct{}{}
	}
}

// IsStopWord reports whether w is ignored by keyword extraction.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// Keywords lower-cases query, strips '?' and '.', splits on whitespace and
// drops stop words and tokens of two characters or fewer. Order and repeats
// are preserved.
func Keywords(query string) []string {
	cleaned := strings.NewReplacer("?", "", ".", "").Replace(strings.ToLower(query))

	var keywords []string
	for _, word := range strings.Fields(cleaned) {
		if IsStopWord(word) || utf8.RuneCountInString(word) <= minKeywordLength {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}
