package entity_detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/entity"
)

func TestExtractDependencies(t *testing.T) {
	assert.Equal(t, []string{"@NUMBER", "@CURRENCY"}, extractDependencies(`@NUMBER\s*@CURRENCY|@NUMBER`))
	assert.Empty(t, extractDependencies(`[a-z]+@[a-z]+\.com`))
	assert.Equal(t, []string{"@NUM-2"}, extractDependencies(`x@NUM-2`))
}

func TestOptionalWrap(t *testing.T) {
	tests := []struct {
		left, right, content, want string
	}{
		{"", "", "a|b", "(a|b)"},
		{"(", ")", "a|b", "(a|b)"},
		{"(", "", "a", "((a)"},
		{"", ")", "a", "(a))"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, optionalWrap(tt.left, tt.right, tt.content))
	}
}

func TestRegexTemplate_ExpandLongestFirstAndEscaped(t *testing.T) {
	tpl, err := newRegexTemplate("ITEM", `@CODE\.x`, Options{})
	require.NoError(t, err)

	deps := []entity.Entity{
		{Entity: "CODE", Text: "a.b"},
		{Entity: "code", Text: "a.b.c"},
		{Entity: "OTHER", Text: "zzz"},
	}
	assert.Equal(t, `(a\.b\.c|a\.b)\.x`, tpl.expand(deps))
	assert.Equal(t, `(@CODE)\.x`, tpl.expand(nil))
}

func TestRegexTemplate_ExpandKeepsLoneEnclosingCharacters(t *testing.T) {
	tpl, err := newRegexTemplate("EITHER", `(@A|@B)`, Options{})
	require.NoError(t, err)

	deps := []entity.Entity{{Entity: "A", Text: "x"}, {Entity: "B", Text: "y"}}
	assert.Equal(t, `((x)|(y))`, tpl.expand(deps))
}

func TestRegexTemplate_RegistrationErrors(t *testing.T) {
	_, err := newRegexTemplate("PRICE", `@NUMBER\s*czk`, Options{ExtractValueFrom: "CURRENCY"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDetectorMisconfigured))

	_, err = newRegexTemplate("BROKEN", `(\d+`, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDetectorMisconfigured))

	tpl, err := newRegexTemplate("PRICE", `@NUMBER\s*czk`, Options{ExtractValueFrom: "number"})
	require.NoError(t, err)
	assert.Equal(t, "@NUMBER", tpl.valueFrom)
}

func TestRegexTemplate_DetectValueRules(t *testing.T) {
	ctx := context.Background()
	number := entity.Entity{Entity: "NUMBER", Start: 6, End: 9, Text: "100", Value: 100}
	text := "order 100 CZK now"

	t.Run("value of the first dependency", func(t *testing.T) {
		tpl, err := newRegexTemplate("PRICE", `@NUMBER\s*czk`, Options{})
		require.NoError(t, err)
		res, err := tpl.Detect(ctx, Request{Text: text, Entities: []entity.Entity{number}})
		require.NoError(t, err)
		require.False(t, res.IsNone())
		c := res.Candidates()[0]
		assert.Equal(t, &Span{Start: 6, End: 13}, c.Span)
		assert.Equal(t, 100, c.Value)
	})

	t.Run("extract value function gets groups and entities", func(t *testing.T) {
		var gotGroups []string
		var gotEnts []entity.Entity
		tpl, err := newRegexTemplate("PRICE", `@NUMBER\s*(czk|eur)`, Options{
			ExtractValue: func(groups []string, ents []entity.Entity) interface{} {
				gotGroups, gotEnts = groups, ents
				return "custom"
			},
		})
		require.NoError(t, err)
		res, err := tpl.Detect(ctx, Request{Text: text, Entities: []entity.Entity{number}})
		require.NoError(t, err)
		assert.Equal(t, "custom", res.Candidates()[0].Value)
		assert.Equal(t, []string{"100 czk", "100", "czk"}, gotGroups)
		assert.Equal(t, []entity.Entity{number}, gotEnts)
	})

	t.Run("no dependencies yields the folded match", func(t *testing.T) {
		tpl, err := newRegexTemplate("CURRENCY", `czk`, Options{})
		require.NoError(t, err)
		res, err := tpl.Detect(ctx, Request{Text: text})
		require.NoError(t, err)
		assert.Equal(t, "czk", res.Candidates()[0].Value)
	})

	t.Run("missing value dependency skips matching", func(t *testing.T) {
		tpl, err := newRegexTemplate("PRICE", `@NUMBER\s*czk`, Options{ExtractValueFrom: "@NUMBER"})
		require.NoError(t, err)
		res, err := tpl.Detect(ctx, Request{Text: text})
		require.NoError(t, err)
		assert.True(t, res.IsNone())
	})

	t.Run("dependency outside the match yields nothing", func(t *testing.T) {
		tpl, err := newRegexTemplate("PRICE", `(@NUMBER)?\s*czk`, Options{})
		require.NoError(t, err)
		far := entity.Entity{Entity: "NUMBER", Start: 14, End: 17, Text: "now"}
		res, err := tpl.Detect(ctx, Request{Text: text, Entities: []entity.Entity{far}})
		require.NoError(t, err)
		assert.True(t, res.IsNone())
	})

	t.Run("unresolved placeholder matches only its literal tag", func(t *testing.T) {
		tpl, err := newRegexTemplate("PRICE", `@NUMBER\s*czk`, Options{})
		require.NoError(t, err)
		res, err := tpl.Detect(ctx, Request{Text: text})
		require.NoError(t, err)
		assert.True(t, res.IsNone())
	})
}

func TestRegexTemplate_WholeWords(t *testing.T) {
	ctx := context.Background()
	tpl, err := newRegexTemplate("NUM", `\d+`, Options{MatchWholeWords: true})
	require.NoError(t, err)

	res, err := tpl.Detect(ctx, Request{Text: "abc123 45"})
	require.NoError(t, err)
	assert.Equal(t, &Span{Start: 7, End: 9}, res.Candidates()[0].Span)

	res, err = tpl.Detect(ctx, Request{Text: "abc123 45", WithinWords: true})
	require.NoError(t, err)
	assert.Equal(t, &Span{Start: 3, End: 6}, res.Candidates()[0].Span)

	res, err = tpl.Detect(ctx, Request{Text: "č123"})
	require.NoError(t, err)
	assert.True(t, res.IsNone(), "extended latin letters count as word characters")
}

func TestRegexTemplate_EmptyMatchIsNone(t *testing.T) {
	ctx := context.Background()
	tpl, err := newRegexTemplate("TAIL", `x?$`, Options{})
	require.NoError(t, err)

	for _, withinWords := range []bool{false, true} {
		res, err := tpl.Detect(ctx, Request{Text: "abc", WithinWords: withinWords})
		require.NoError(t, err)
		assert.True(t, res.IsNone())
	}
}

func TestRegexTemplate_ReplaceDiacritics(t *testing.T) {
	ctx := context.Background()
	tpl, err := newRegexTemplate("CITY", `plzen`, Options{ReplaceDiacritics: true})
	require.NoError(t, err)

	text := "Cesta do Plzeň"
	res, err := tpl.Detect(ctx, Request{Text: text})
	require.NoError(t, err)
	require.False(t, res.IsNone())
	span := res.Candidates()[0].Span
	assert.Equal(t, "Plzeň", text[span.Start:span.End])

	plain, err := newRegexTemplate("CITY", `plzen`, Options{})
	require.NoError(t, err)
	res, err = plain.Detect(ctx, Request{Text: text})
	require.NoError(t, err)
	assert.True(t, res.IsNone())
}

//Personal.AI order the ending
