package rules

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// token is a word in the evaluated text with its byte offsets.
type token struct {
	word  string // lowercased
	start int
	end   int
}

// tokenize splits s into lowercased words of letters and digits.
// Every other rune separates words. Words are NFC-composed so decomposed
// diacritics compare equal; offsets refer to s as given.
func tokenize(s string) []token {
	var tokens []token
	start := -1
	for i, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || (start >= 0 && unicode.Is(unicode.Mn, r)) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, token{word: fold(s[start:i]), start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{word: fold(s[start:]), start: start, end: len(s)})
	}
	return tokens
}

func fold(w string) string {
	return norm.NFC.String(strings.ToLower(w))
}

// words returns the lowercased words of s.
func words(s string) []string {
	tokens := tokenize(s)
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.word
	}
	return out
}

// normalize lowercases s and collapses it to its words separated by single
// spaces, so punctuation and spacing differences compare equal.
func normalize(s string) string {
	return strings.Join(words(s), " ")
}

// phraseMatch describes where a phrase occurs in a token stream.
type phraseMatch struct {
	phrase string
	first  int // index of the first token
	span   Span
}

// findPhrase returns the first occurrence of phrase in tokens at or after
// index from. When prefix is set the last phrase word may match the start of
// a longer token, which catches simple inflections.
func findPhrase(text string, tokens []token, phrase []string, from int, prefix bool) (phraseMatch, bool) {
	if len(phrase) == 0 {
		return phraseMatch{}, false
	}
	last := len(phrase) - 1
	for i := from; i+last < len(tokens); i++ {
		ok := true
		for j, w := range phrase {
			tw := tokens[i+j].word
			if tw == w || (prefix && j == last && strings.HasPrefix(tw, w)) {
				continue
			}
			ok = false
			break
		}
		if ok {
			start, end := tokens[i].start, tokens[i+last].end
			return phraseMatch{
				phrase: strings.Join(phrase, " "),
				first:  i,
				span:   Span{Start: start, End: end, Text: text[start:end]},
			}, true
		}
	}
	return phraseMatch{}, false
}

// countPhrase counts non-overlapping occurrences of phrase in tokens.
func countPhrase(text string, tokens []token, phrase []string) (int, *Span) {
	var (
		n     int
		first *Span
	)
	for from := 0; ; {
		m, ok := findPhrase(text, tokens, phrase, from, false)
		if !ok {
			return n, first
		}
		if first == nil {
			span := m.span
			first = &span
		}
		n++
		from = m.first + len(phrase)
	}
}

// containsPhrase reports whether text contains phrase as whole words.
func containsPhrase(text, phrase string, prefix bool) bool {
	_, ok := findPhrase(text, tokenize(text), words(phrase), 0, prefix)
	return ok
}

// firstLetter returns the first letter rune of s and its offset.
func firstLetter(s string) (rune, int, bool) {
	for i, r := range s {
		if unicode.IsLetter(r) {
			return r, i, true
		}
		if unicode.IsDigit(r) {
			return r, i, false
		}
	}
	return utf8.RuneError, -1, false
}

var sentenceEndRe = regexp.MustCompile(`[.!?]+(\s+|$)`)

// countSentences counts sentences in s. A terminator directly following one
// of the abbreviations (lowercase, without the trailing dot) does not end a
// sentence. Trailing text without terminator counts as a sentence.
func countSentences(s string, abbreviations map[string]bool) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	n := 0
	lastEnd := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(s, -1) {
		if isAbbreviationAt(s, loc[0], abbreviations) {
			continue
		}
		if strings.TrimSpace(s[lastEnd:loc[0]]) != "" {
			n++
		}
		lastEnd = loc[1]
	}
	if strings.TrimSpace(s[lastEnd:]) != "" {
		n++
	}
	return n
}

// isAbbreviationAt reports whether the terminator at offset i closes an
// abbreviation such as "bijv." or "o.a.".
func isAbbreviationAt(s string, i int, abbreviations map[string]bool) bool {
	if len(abbreviations) == 0 {
		return false
	}
	j := i
	for j > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:j])
		if unicode.IsSpace(r) {
			break
		}
		j -= size
	}
	word := strings.ToLower(strings.TrimRight(s[j:i], "."))
	return word != "" && abbreviations[word]
}

// toSet lowercases entries into a lookup set.
func toSet(entries []string) map[string]bool {
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		set[strings.ToLower(strings.TrimSuffix(strings.TrimSpace(e), "."))] = true
	}
	return set
}
