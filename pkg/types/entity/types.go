// Package entity defines the wire-level types produced by entity resolution.
package entity

import "strings"

// Entity is a typed, scored span of an utterance.  Start and End are byte
// offsets into the original text with 0 <= Start < End <= len(text), and
// Text equals text[Start:End].
type Entity struct {
	Entity string      `json:"entity"`
	Start  int         `json:"start"`
	End    int         `json:"end"`
	Text   string      `json:"text"`
	Score  float64     `json:"score"`
	Value  interface{} `json:"value"`
}

// Len returns the span length in bytes.
func (e Entity) Len() int { return e.End - e.Start }

// Overlaps reports whether e and o share at least one byte.
func (e Entity) Overlaps(o Entity) bool {
	return e.Start < o.End && o.Start < e.End
}

// Covers reports whether o lies fully inside e.
func (e Entity) Covers(o Entity) bool {
	return e.Start <= o.Start && e.End >= o.End
}

// Tag returns the dependency placeholder for the entity name ("@PRICE").
func (e Entity) Tag() string { return Tag(e.Entity) }

// Tag returns "@" followed by the upper-cased name.  A leading "@" on name is
// not duplicated.
func Tag(name string) string {
	return "@" + strings.ToUpper(strings.TrimPrefix(name, "@"))
}

// Intent is a classified intent.  Resolution never produces intents; the
// field exists so the response shape matches the dialogue layer contract.
type Intent struct {
	Intent string  `json:"intent"`
	Score  float64 `json:"score"`
}

// Result is the outcome of resolving one utterance.
type Result struct {
	// Text is the normalised utterance, lower-cased, with every
	// anonymize-flagged entity replaced by its "@NAME" tag.
	Text     string   `json:"text"`
	Entities []Entity `json:"entities"`
	Intents  []Intent `json:"intents"`
}

// Names returns the entity names of ents in order.
func Names(ents []Entity) []string {
	out := make([]string, len(ents))
	for i, e := range ents {
		out[i] = e.Entity
	}
	return out
}

// First returns the first entity named name in ents.
func First(ents []Entity, name string) (Entity, bool) {
	for _, e := range ents {
		if e.Entity == name {
			return e, true
		}
	}
	return Entity{}, false
}

//Personal.AI order the ending
