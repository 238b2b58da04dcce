package entity_detect

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldedText is a lower-cased (and optionally diacritic-stripped) copy of a
// string together with a byte offset table back into the original.
type foldedText struct {
	text string
	// orig[i] is the original byte offset of the rune that produced folded
	// byte i; orig[len(text)] is the original length.
	orig []int
}

// fold lower-cases s rune by rune.  When stripMarks is set each rune is
// NFD-decomposed and its non-spacing marks are dropped.
func fold(s string, stripMarks bool) foldedText {
	var b strings.Builder
	b.Grow(len(s))
	orig := make([]int, 0, len(s)+1)

	emit := func(r rune, at int) {
		n := b.Len()
		b.WriteRune(r)
		for i := n; i < b.Len(); i++ {
			orig = append(orig, at)
		}
	}

	for i, r := range s {
		r = unicode.ToLower(r)
		if !stripMarks || r < utf8.RuneSelf {
			emit(r, i)
			continue
		}
		for _, d := range norm.NFD.String(string(r)) {
			if !unicode.Is(unicode.Mn, d) {
				emit(d, i)
			}
		}
	}
	orig = append(orig, len(s))
	return foldedText{text: b.String(), orig: orig}
}

// span maps a folded [start, end) back to original offsets.
func (f foldedText) span(start, end int) (int, int) {
	return f.orig[start], f.orig[end]
}

// stripDiacritics removes non-spacing marks after canonical decomposition.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// indexFold finds needle in haystack case-insensitively and returns the
// original byte span of the first occurrence.
func indexFold(haystack, needle string) (int, int, bool) {
	h := fold(haystack, false)
	n := fold(needle, false).text
	at := strings.Index(h.text, n)
	if at < 0 {
		return 0, 0, false
	}
	start, end := h.span(at, at+len(n))
	return start, end, true
}

// leadingSpace returns the byte length of the whitespace prefix of s.
func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
}

//Personal.AI order the ending
