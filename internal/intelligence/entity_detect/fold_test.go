package entity_detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFold_LowerCasesAndKeepsOffsets(t *testing.T) {
	f := fold("Hello WORLD", false)
	assert.Equal(t, "hello world", f.text)
	require.Len(t, f.orig, len(f.text)+1)

	start, end := f.span(6, 11)
	assert.Equal(t, 6, start)
	assert.Equal(t, 11, end)
}

func TestFold_StripsDiacriticsAndMapsBack(t *testing.T) {
	s := "ŽLUŤOUČKÝ kůň"
	f := fold(s, true)
	assert.Equal(t, "zlutoucky kun", f.text)

	start, end := f.span(10, 13)
	assert.Equal(t, "kůň", s[start:end])

	start, end = f.span(0, 9)
	assert.Equal(t, "ŽLUŤOUČKÝ", s[start:end])
}

func TestFold_WithoutStrippingKeepsMarks(t *testing.T) {
	f := fold("Plzeň", false)
	assert.Equal(t, "plzeň", f.text)
	start, end := f.span(0, len(f.text))
	assert.Equal(t, 0, start)
	assert.Equal(t, len("Plzeň"), end)
}

func TestStripDiacritics(t *testing.T) {
	assert.Equal(t, "Prilis zlutoucky kun", stripDiacritics("Příliš žluťoučký kůň"))
	assert.Equal(t, `a\.b`, stripDiacritics(`a\.b`))
}

func TestIndexFold(t *testing.T) {
	start, end, ok := indexFold("I live in PRAGUE now", "prague")
	require.True(t, ok)
	assert.Equal(t, 10, start)
	assert.Equal(t, 16, end)

	_, _, ok = indexFold("I live in Brno", "prague")
	assert.False(t, ok)
}

func TestLeadingSpace(t *testing.T) {
	assert.Equal(t, 0, leadingSpace("abc"))
	assert.Equal(t, 3, leadingSpace(" \t\nabc"))
	assert.Equal(t, 2, leadingSpace("  "))
}

//Personal.AI order the ending
