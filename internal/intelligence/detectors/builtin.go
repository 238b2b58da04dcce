// Package detectors provides the built-in callback detectors that can be
// registered by name from configuration.
package detectors

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/entigo/internal/intelligence/entity_detect"
	"github.com/turtacn/entigo/pkg/types/entity"
)

// Built-in detector names accepted by DetectorConfig.Builtin.
const (
	Email  = "email"
	Phone  = "phone"
	Number = "number"
	URL    = "url"
)

var (
	emailRegexp  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRegexp  = regexp.MustCompile(`\+?\d(?:[\s\-]?\d){7,}`)
	numberRegexp = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)
	urlRegexp    = regexp.MustCompile(`(?i)(?:https?://|www\.)[^\s<>"]+`)
)

// ---------------------------------------------------------------------------
// Regex-backed detector
// ---------------------------------------------------------------------------

// regexDetector reports every match of re in the window at once.
type regexDetector struct {
	re    *regexp.Regexp
	score float64
	trim  string
	value func(match string) interface{}
}

// Detect implements entity_detect.Detector.
func (d regexDetector) Detect(_ context.Context, req entity_detect.Request) (entity_detect.Result, error) {
	indexes := d.re.FindAllStringIndex(req.Text, -1)
	if len(indexes) == 0 {
		return entity_detect.None(), nil
	}
	cands := make([]entity_detect.Candidate, 0, len(indexes))
	for _, idx := range indexes {
		start, end := idx[0], idx[1]
		if d.trim != "" {
			end = start + len(strings.TrimRight(req.Text[start:end], d.trim))
		}
		if end <= start {
			continue
		}
		match := req.Text[start:end]
		cands = append(cands, entity_detect.SpanHint(start, end).WithScore(d.score).WithValue(d.value(match)))
	}
	return entity_detect.Many(cands...), nil
}

// NewEmail detects e-mail addresses; the value is the lower-cased address.
func NewEmail() entity_detect.Detector {
	return regexDetector{re: emailRegexp, score: 0.99, value: func(m string) interface{} {
		return strings.ToLower(m)
	}}
}

// NewPhone detects phone numbers of at least eight digits; the value keeps
// the digits and a leading "+".
func NewPhone() entity_detect.Detector {
	return regexDetector{re: phoneRegexp, score: 0.95, value: func(m string) interface{} {
		var b strings.Builder
		for i, r := range m {
			if (r == '+' && i == 0) || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
		return b.String()
	}}
}

// NewNumber detects integers and decimals.  Integers get an int value,
// decimals (with "." or ",") a float64.
func NewNumber() entity_detect.Detector {
	return regexDetector{re: numberRegexp, score: 1, value: ParseNumber}
}

// NewURL detects http(s) and www. links.  Trailing punctuation is not part
// of the match; the value is the normalised URL.
func NewURL() entity_detect.Detector {
	return regexDetector{re: urlRegexp, score: 0.9, trim: `.,;:!?)]}'`, value: func(m string) interface{} {
		raw := m
		if !strings.Contains(strings.ToLower(raw), "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return m
		}
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		return u.String()
	}}
}

// ParseNumber converts a numeric match to int or float64.  It returns the
// input unchanged when it is not a number.
func ParseNumber(s string) interface{} {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil {
		return f
	}
	return s
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

var builtins = map[string]func() entity_detect.Detector{
	Email:  NewEmail,
	Phone:  NewPhone,
	Number: NewNumber,
	URL:    NewURL,
}

// Lookup returns a fresh built-in detector by case-insensitive name.
func Lookup(name string) (entity_detect.Detector, bool) {
	factory, ok := builtins[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// Names returns the built-in detector names, sorted.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RegisterAll registers every built-in detector under its upper-cased name.
func RegisterAll(e *entity_detect.Engine, anonymize bool) error {
	for _, name := range Names() {
		d, _ := Lookup(name)
		if err := e.Register(strings.TrimPrefix(entity.Tag(name), "@"), d, entity_detect.Options{Anonymize: anonymize}); err != nil {
			return err
		}
	}
	return nil
}

//Personal.AI order the ending
