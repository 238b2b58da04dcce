package entity_detect

import (
	"context"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/entity"
)

var (
	// dependencyRe finds @NAME tags in a pattern source.
	dependencyRe = regexp.MustCompile(`@[A-Z0-9-]+`)

	// placeholderRe finds @NAME tags with an optional enclosing character
	// on either side.
	placeholderRe = regexp.MustCompile(`(\()?@([A-Z0-9-]+)(\))?`)
)

const (
	// wordChars are the characters that may not touch a whole-word match.
	wordChars = `a-z0-9\x{00C0}-\x{017F}`

	matchGroup = "entigo_match"
)

// extractDependencies returns the distinct @NAME tags of a pattern in order
// of first appearance.
func extractDependencies(pattern string) []string {
	seen := make(map[string]bool)
	var deps []string
	for _, tag := range dependencyRe.FindAllString(pattern, -1) {
		if !seen[tag] {
			seen[tag] = true
			deps = append(deps, tag)
		}
	}
	return deps
}

// optionalWrap groups content as a whole when both enclosing characters or
// neither are present, otherwise keeps the lone character.
func optionalWrap(left, right, content string) string {
	if (left == "") == (right == "") {
		return "(" + content + ")"
	}
	return left + "(" + content + ")" + right
}

// regexTemplate is a compiled-per-call detector built from a pattern with
// @NAME placeholders.
type regexTemplate struct {
	name         string
	source       string
	dependencies []string
	valueFrom    string
	extract      ValueExtractor
	wholeWords   bool
	diacritics   bool
}

func newRegexTemplate(name, pattern string, opts Options) (*regexTemplate, error) {
	deps := extractDependencies(pattern)

	valueFrom := ""
	if opts.ExtractValueFrom != "" {
		valueFrom = entity.Tag(opts.ExtractValueFrom)
		if !slices.Contains(deps, valueFrom) {
			return nil, errors.Misconfigured("regexp entity detector extracts its value from a dependency missing in the pattern").
				WithDetailf("entity=%s extractValue=%s", name, valueFrom)
		}
	}

	t := &regexTemplate{
		name:         name,
		source:       pattern,
		dependencies: deps,
		valueFrom:    valueFrom,
		extract:      opts.ExtractValue,
		wholeWords:   opts.MatchWholeWords,
		diacritics:   opts.ReplaceDiacritics,
	}

	// Every placeholder left as its literal tag must still compile.
	if _, err := t.compile(nil, false); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDetectorMisconfigured, "regexp entity detector does not compile").
			WithDetailf("entity=%s pattern=%s", name, pattern)
	}
	return t, nil
}

// SupportsSubWords implements SubWordCapable.
func (t *regexTemplate) SupportsSubWords() bool { return true }

// expand substitutes the resolved dependency texts into the placeholders.
func (t *regexTemplate) expand(deps []entity.Entity) string {
	var b strings.Builder
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(t.source, -1) {
		b.WriteString(t.source[last:m[0]])
		last = m[1]

		left, right := group(t.source, m, 1), group(t.source, m, 3)
		tag := "@" + group(t.source, m, 2)

		var values []string
		for _, e := range deps {
			if e.Tag() != tag {
				continue
			}
			v := regexp.QuoteMeta(e.Text)
			if t.diacritics {
				v = stripDiacritics(v)
			}
			values = append(values, v)
		}
		if len(values) == 0 {
			b.WriteString(optionalWrap(left, right, tag))
			continue
		}
		sort.SliceStable(values, func(i, j int) bool { return len(values[i]) > len(values[j]) })
		b.WriteString(optionalWrap(left, right, strings.Join(values, "|")))
	}
	b.WriteString(t.source[last:])
	return b.String()
}

func group(s string, m []int, n int) string {
	if m[2*n] < 0 {
		return ""
	}
	return s[m[2*n]:m[2*n+1]]
}

// compile builds the case-insensitive matcher.  The match itself is always
// captured by matchGroup; on whole-word runs the boundaries around it are
// consumed by non-capturing groups.
func (t *regexTemplate) compile(deps []entity.Entity, withinWords bool) (*regexp.Regexp, error) {
	pattern := "(?P<" + matchGroup + ">" + t.expand(deps) + ")"
	if t.wholeWords && !withinWords {
		pattern = "(?:^|[^" + wordChars + "])" + pattern + "(?:[^" + wordChars + "]|$)"
	}
	return regexp.Compile("(?i)" + pattern)
}

// Detect implements Detector.
func (t *regexTemplate) Detect(_ context.Context, req Request) (Result, error) {
	if t.valueFrom != "" && !hasTag(req.Entities, t.valueFrom) {
		return None(), nil
	}

	re, err := t.compile(req.Entities, req.WithinWords)
	if err != nil {
		return None(), errors.Wrap(err, errors.ErrCodeDetectorFailed, "expanded regexp does not compile").
			WithDetailf("entity=%s", t.name)
	}

	folded := fold(req.Text, t.diacritics)
	loc := re.FindStringSubmatchIndex(folded.text)
	if loc == nil {
		return None(), nil
	}

	mi := re.SubexpIndex(matchGroup)
	fs, fe := loc[2*mi], loc[2*mi+1]
	if fs == fe {
		return None(), nil
	}
	groups := []string{folded.text[fs:fe]}
	for i := mi + 1; i < len(loc)/2; i++ {
		if loc[2*i] < 0 {
			groups = append(groups, "")
			continue
		}
		groups = append(groups, folded.text[loc[2*i]:loc[2*i+1]])
	}

	start, end := folded.span(fs, fe)
	inside := make([]entity.Entity, 0, len(req.Entities))
	for _, e := range req.Entities {
		if e.Start >= start && e.End <= end {
			inside = append(inside, e)
		}
	}

	var value interface{}
	switch {
	case t.extract != nil:
		value = t.extract(groups, inside)
	case t.valueFrom != "" || len(t.dependencies) > 0:
		tag := t.valueFrom
		if tag == "" {
			tag = t.dependencies[0]
		}
		dep, ok := byTag(inside, tag)
		if !ok {
			return None(), nil
		}
		value = dep.Value
	default:
		value = groups[0]
	}

	return One(SpanHint(start, end).WithValue(value)), nil
}

func hasTag(ents []entity.Entity, tag string) bool {
	_, ok := byTag(ents, tag)
	return ok
}

func byTag(ents []entity.Entity, tag string) (entity.Entity, bool) {
	for _, e := range ents {
		if e.Tag() == tag {
			return e, true
		}
	}
	return entity.Entity{}, false
}

//Personal.AI order the ending
