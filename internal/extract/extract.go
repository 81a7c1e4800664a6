package extract

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/haskel/cplxfox/internal/schema"
)

var (
	// ErrEmptyParameters is returned when the raw parameter string has nothing to tokenize.
	ErrEmptyParameters = errors.New("empty parameter string")
	// ErrReservedCharacter is returned for a parameter name or value that would
	// change the tokens of its serialized form.
	ErrReservedCharacter = errors.New("parameter contains a reserved character")
)

// reserved are the characters that delimit tokens or split name from value.
const reserved = "#&="

// Delimiter separates name=value tokens in a serialized parameter string.
const Delimiter = "#"

// Value is a typed parameter value.
type Value struct {
	Kind schema.FieldKind
	Int  int64
	Text string
}

// String returns the value as it appeared in the parameter string.
func (v Value) String() string {
	if v.Kind == schema.KindInteger {
		return strconv.FormatInt(v.Int, 10)
	}
	return v.Text
}

// Fields maps field name to its extracted value. Absent fields are omitted.
type Fields map[string]Value

// Has reports whether every named field is present.
func (f Fields) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := f[n]; !ok {
			return false
		}
	}
	return true
}

// Missing returns the named fields that are absent, in the given order.
func (f Fields) Missing(names ...string) []string {
	var missing []string
	for _, n := range names {
		if _, ok := f[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

type fieldPattern struct {
	field schema.Field
	re    *regexp.Regexp
}

// Extractor recovers typed fields for one task schema.
// It holds only compiled patterns and is safe for concurrent use.
type Extractor struct {
	patterns []fieldPattern
}

// New compiles the patterns for a schema.
func New(s schema.TaskSchema) (*Extractor, error) {
	e := &Extractor{patterns: make([]fieldPattern, 0, len(s))}
	for _, f := range s {
		re, err := compile(f)
		if err != nil {
			return nil, err
		}
		e.patterns = append(e.patterns, fieldPattern{field: f, re: re})
	}
	return e, nil
}

// compile builds the pattern for one field. The name must start the string
// or follow a non-identifier character so "size" never matches "gridSize".
func compile(f schema.Field) (*regexp.Regexp, error) {
	var value string
	switch f.Kind {
	case schema.KindInteger:
		value = `(\d+)`
	case schema.KindCategorical:
		value = `([A-Z])`
	case schema.KindIdentifier:
		value = `([^#&]+)`
	default:
		return nil, fmt.Errorf("field %q: unsupported kind %q", f.Name, f.Kind)
	}
	return regexp.Compile(`(?:^|[^A-Za-z0-9_])` + regexp.QuoteMeta(f.Name) + `=` + value)
}

// Extract parses raw into typed fields. Fields whose token is absent are
// omitted from the result rather than defaulted.
func (e *Extractor) Extract(raw string) (Fields, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyParameters
	}

	fields := make(Fields, len(e.patterns))
	for _, p := range e.patterns {
		m := p.re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}

		switch p.field.Kind {
		case schema.KindInteger:
			n, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				// Out of range digits are treated like a missing token.
				continue
			}
			fields[p.field.Name] = Value{Kind: schema.KindInteger, Int: n}
		default:
			fields[p.field.Name] = Value{Kind: p.field.Kind, Text: m[1]}
		}
	}
	return fields, nil
}

// Extract is a convenience wrapper compiling the schema on each call.
func Extract(raw string, s schema.TaskSchema) (Fields, error) {
	e, err := New(s)
	if err != nil {
		return nil, err
	}
	return e.Extract(raw)
}

// Serialize renders params as the canonical raw string: keys sorted,
// name=value tokens joined by Delimiter.
func Serialize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(Delimiter)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// ValidateParams rejects names and values that Serialize cannot render
// unambiguously.
func ValidateParams(params map[string]string) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "" || strings.ContainsAny(k, reserved) {
			return fmt.Errorf("%w: name %q", ErrReservedCharacter, k)
		}
		if strings.ContainsAny(params[k], reserved) {
			return fmt.Errorf("%w: %s=%q", ErrReservedCharacter, k, params[k])
		}
	}
	return nil
}
