// Package mentions finds the names of known entries inside free text.
// One Aho-Corasick automaton over canonicalized entry names serves both
// exact lookup and scanning.
package mentions

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// isJoiner reports punctuation that belongs inside a name:
// "Monkey D. Luffy", "O'Brien", "Jean-Luc".
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘',
		'-', '–', '—',
		'·', '.', '_', '/', '#', '&':
		return true
	default:
		return false
	}
}

// fold lowercases r and maps typographic apostrophes and dashes to ASCII.
func fold(r rune) rune {
	c := unicode.ToLower(r)
	switch c {
	case '’', '‘':
		return '\''
	case '–', '—':
		return '-'
	}
	return c
}

func isWordRune(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c)
}

type foldedRune struct {
	r    rune // folded
	size int  // byte length in the original
	keep bool
}

// foldRunes folds s and marks the runes that survive canonicalization.
// Letters and digits always do; a joiner only when it sits between two of
// them, so "D. Luffy" loses its period while "O'Brien" keeps its apostrophe.
func foldRunes(s string) []foldedRune {
	runes := make([]foldedRune, 0, len(s))
	for _, ch := range s {
		runes = append(runes, foldedRune{r: fold(ch), size: utf8.RuneLen(ch)})
	}

	wordAfter := make([]bool, len(runes))
	next := false
	for i := len(runes) - 1; i >= 0; i-- {
		c := runes[i].r
		switch {
		case isWordRune(c):
			next = true
		case !isJoiner(c):
			next = false
		}
		wordAfter[i] = next
	}

	prev := false
	for i := range runes {
		c := runes[i].r
		switch {
		case isWordRune(c):
			runes[i].keep = true
			prev = true
		case isJoiner(c):
			runes[i].keep = prev && i+1 < len(runes) && wordAfter[i+1]
		default:
			prev = false
		}
	}
	return runes
}

// Canonicalize is applied to names and to scanned text alike: lowercase,
// letters and digits kept, joiners kept inside words, every other run of
// characters collapsed to one space, no leading or trailing space.
func Canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, fr := range foldRunes(s) {
		if fr.keep {
			out.WriteRune(fr.r)
			lastWasSpace = false
			continue
		}
		if !lastWasSpace {
			out.WriteByte(' ')
			lastWasSpace = true
		}
	}
	return strings.TrimSuffix(out.String(), " ")
}

// offsetMap maps every byte of Canonicalize(original) to its byte offset in
// original, plus one trailing entry for the end of the string.
func offsetMap(original string) []int {
	mapping := make([]int, 0, len(original)+1)

	lastWasSpace := true
	origPos := 0
	for _, fr := range foldRunes(original) {
		if fr.keep {
			for i := 0; i < utf8.RuneLen(fr.r); i++ {
				mapping = append(mapping, origPos)
			}
			lastWasSpace = false
		} else if !lastWasSpace {
			mapping = append(mapping, origPos)
			lastWasSpace = true
		}
		origPos += fr.size
	}
	return append(mapping, origPos)
}

func mapOffset(canon int, mapping []int, originalLen int) int {
	if canon < 0 {
		return 0
	}
	if canon >= len(mapping) {
		return originalLen
	}
	return mapping[canon]
}
