package entity_detect

import (
	"context"
	"regexp"
	"strings"

	"github.com/turtacn/entigo/pkg/types/entity"
)

var newlinesRe = regexp.MustCompile(`[\r\n]+`)

// Resolve normalises text (newline runs become one space, outer whitespace
// is trimmed), resolves its entities and returns the lower-cased text with
// every anonymize-flagged entity replaced by its @NAME tag.  Intents are
// always empty.
func (e *Engine) Resolve(ctx context.Context, text string, src ExpectationSource) entity.Result {
	clean := strings.TrimSpace(newlinesRe.ReplaceAllString(text, " "))

	var expected []string
	if src != nil {
		expected = src.ExpectedEntities()
	}
	ents := e.ResolveEntities(ctx, clean, WithExpected(expected...))

	return entity.Result{
		Text:     e.anonymize(clean, ents),
		Entities: ents,
		Intents:  []entity.Intent{},
	}
}

// anonymize lower-cases text and substitutes anonymized entities from right
// to left.  ents must be sorted by start; an entity reaching into an already
// replaced region is skipped.
func (e *Engine) anonymize(text string, ents []entity.Entity) string {
	parts := make([]string, 0, 2*len(ents)+1)
	cursor := len(text)
	for i := len(ents) - 1; i >= 0; i-- {
		ent := ents[i]
		spec, ok := e.lookup(ent.Entity)
		if !ok || !spec.Anonymize || ent.End > cursor || ent.Start < 0 {
			continue
		}
		parts = append(parts, strings.ToLower(text[ent.End:cursor]), entity.Tag(ent.Entity))
		cursor = ent.Start
	}
	parts = append(parts, strings.ToLower(text[:cursor]))

	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteString(parts[i])
	}
	return b.String()
}

// ResolveEntityValue returns the value of the first name entity found in
// text, or nil.  For an unregistered name the text itself is returned.
func (e *Engine) ResolveEntityValue(ctx context.Context, name, text string) interface{} {
	if _, ok := e.lookup(name); !ok {
		return text
	}
	ents := e.ResolveEntities(ctx, text, WithSingleEntity(name))
	if len(ents) == 0 {
		return nil
	}
	return ents[0].Value
}

//Personal.AI order the ending
