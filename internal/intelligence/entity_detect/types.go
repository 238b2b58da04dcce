// Package entity_detect implements the entity-detection engine: a registry of
// independently registered detectors, a dependency-ordered scheduler that
// runs them in concurrent waves, a regex-template compiler that substitutes
// already-resolved entities into @NAME placeholders, and an overlap resolver
// that prunes the candidate pool to a non-overlapping entity list.
//
// The engine never performs I/O.  Detector failures are logged and isolated;
// the only error surfaced to callers is a misconfigured registration.
package entity_detect

import (
	"context"
	"time"

	"github.com/turtacn/entigo/pkg/types/entity"
)

// ---------------------------------------------------------------------------
// Candidates and results
// ---------------------------------------------------------------------------

// Span is a half-open byte range relative to the window a detector was
// called with.
type Span struct {
	Start int
	End   int
}

// Candidate is one raw detector hit.  Exactly one of Text or Span locates it:
// a text hint is searched case-insensitively in the window, a span hint is
// taken as window-relative offsets.
type Candidate struct {
	Text  string
	Span  *Span
	Score *float64
	Value interface{}
}

// TextHint returns a candidate located by searching for text in the window.
func TextHint(text string) Candidate {
	return Candidate{Text: text}
}

// SpanHint returns a candidate at window-relative offsets [start, end).
func SpanHint(start, end int) Candidate {
	return Candidate{Span: &Span{Start: start, End: end}}
}

// WithScore returns a copy of c with the score set.
func (c Candidate) WithScore(score float64) Candidate {
	c.Score = &score
	return c
}

// WithValue returns a copy of c with the value set.
func (c Candidate) WithValue(v interface{}) Candidate {
	c.Value = v
	return c
}

type resultKind int

const (
	kindNone resultKind = iota
	kindOne
	kindMany
)

// Result is what a detector returns for one window: nothing, a single hit
// (the wrapper then searches the rest of the window again), or all hits at
// once (terminal for the window).
type Result struct {
	kind       resultKind
	candidates []Candidate
}

// None reports that the detector found nothing.
func None() Result { return Result{} }

// One reports a single hit.
func One(c Candidate) Result {
	return Result{kind: kindOne, candidates: []Candidate{c}}
}

// Many reports every remaining hit in the window at once.
func Many(cs ...Candidate) Result {
	return Result{kind: kindMany, candidates: cs}
}

// IsNone reports whether r carries no candidates.
func (r Result) IsNone() bool {
	return r.kind == kindNone || len(r.candidates) == 0
}

// Candidates returns the candidates carried by r.
func (r Result) Candidates() []Candidate {
	return r.candidates
}

// ---------------------------------------------------------------------------
// Detectors
// ---------------------------------------------------------------------------

// Request is the input of one detector call.
type Request struct {
	// Text is the current window: a suffix of the resolved text.
	Text string

	// Entities are the already-resolved entities the detector depends on
	// that lie fully inside the window, with window-relative offsets.
	Entities []entity.Entity

	// WithinWords is set on the sub-word search variant.
	WithinWords bool
}

// Detector finds candidates of one entity type in a window.
type Detector interface {
	Detect(ctx context.Context, req Request) (Result, error)
}

// SubWordCapable is implemented by detectors that can search inside words.
// Detectors that do not implement it, or report false, are skipped on the
// sub-word pass.
type SubWordCapable interface {
	SupportsSubWords() bool
}

// DetectorFunc adapts a plain function to Detector.  It does not take part
// in sub-word search.
type DetectorFunc func(ctx context.Context, text string, deps []entity.Entity) (Result, error)

// Detect implements Detector.
func (f DetectorFunc) Detect(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req.Text, req.Entities)
}

// SubWordDetectorFunc adapts a function that honours Request.WithinWords.
type SubWordDetectorFunc func(ctx context.Context, req Request) (Result, error)

// Detect implements Detector.
func (f SubWordDetectorFunc) Detect(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// SupportsSubWords implements SubWordCapable.
func (SubWordDetectorFunc) SupportsSubWords() bool { return true }

func supportsSubWords(d Detector) bool {
	s, ok := d.(SubWordCapable)
	return ok && s.SupportsSubWords()
}

// ValueExtractor computes an entity value from a regex match.  groups[0] is
// the whole match and groups[1:] the pattern's own capture groups, all taken
// from the folded text; entities are the dependency entities inside the
// match span.
type ValueExtractor func(groups []string, entities []entity.Entity) interface{}

// Options configure a registration.
type Options struct {
	// Anonymize replaces the entity text with its @NAME tag in Resolve output.
	Anonymize bool

	// ExtractValue computes regex values; it takes precedence over
	// ExtractValueFrom.
	ExtractValue ValueExtractor

	// ExtractValueFrom names the dependency ("NUMBER" or "@NUMBER") whose
	// value becomes the regex entity value.  It must occur in the pattern.
	ExtractValueFrom string

	// MatchWholeWords anchors regex matches at non-word characters or the
	// text edges, except on the sub-word pass.
	MatchWholeWords bool

	// ReplaceDiacritics strips combining marks from the text and from the
	// substituted dependency values before regex matching.
	ReplaceDiacritics bool

	// Dependencies declares the entities a callback detector consumes.
	// Regex detectors infer theirs from the pattern.
	Dependencies []string
}

// DetectorSpec is an immutable registration.
type DetectorSpec struct {
	Name         string
	Detector     Detector
	Dependencies []string
	Anonymize    bool
}

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// ExpectationSource supplies the entity names the dialogue currently
// expects.  Expected entities win span conflicts.
type ExpectationSource interface {
	ExpectedEntities() []string
}

// Expected is a static ExpectationSource.
type Expected []string

// ExpectedEntities implements ExpectationSource.
func (e Expected) ExpectedEntities() []string { return e }

// Metrics records engine telemetry.
type Metrics interface {
	RecordWave(ctx context.Context, detectors int)
	RecordDetection(ctx context.Context, entityName string, found int, duration time.Duration)
	RecordDetectorFailure(ctx context.Context, entityName, code string)
	RecordDependencyCycle(ctx context.Context, stuck []string)
	RecordResolution(ctx context.Context, mode string, entities int, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordWave(context.Context, int)                              {}
func (noopMetrics) RecordDetection(context.Context, string, int, time.Duration)  {}
func (noopMetrics) RecordDetectorFailure(context.Context, string, string)        {}
func (noopMetrics) RecordDependencyCycle(context.Context, []string)              {}
func (noopMetrics) RecordResolution(context.Context, string, int, time.Duration) {}

//Personal.AI order the ending
