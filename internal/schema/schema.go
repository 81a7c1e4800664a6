package schema

import (
	"errors"
	"fmt"
	"strings"
)

// FieldKind describes how a parameter value is parsed and used.
type FieldKind string

const (
	// KindInteger is a numeric field, standardized before expansion.
	KindInteger FieldKind = "integer"
	// KindCategorical is a single uppercase letter, one-hot encoded.
	KindCategorical FieldKind = "categorical"
	// KindIdentifier is extracted but never becomes a feature (e.g. a map file name).
	KindIdentifier FieldKind = "identifier"
)

// IsValid checks if the field kind is known.
func (k FieldKind) IsValid() bool {
	switch k {
	case KindInteger, KindCategorical, KindIdentifier:
		return true
	}
	return false
}

// String returns string representation.
func (k FieldKind) String() string {
	return string(k)
}

// Field is a single named parameter of a task.
type Field struct {
	Name string    `json:"name" yaml:"name"`
	Kind FieldKind `json:"kind" yaml:"kind"`
}

// TaskSchema is the ordered list of fields recovered from a raw parameter string.
type TaskSchema []Field

// Numeric returns the integer fields in schema order.
func (s TaskSchema) Numeric() []string {
	return s.namesOf(KindInteger)
}

// Categorical returns the categorical fields in schema order.
func (s TaskSchema) Categorical() []string {
	return s.namesOf(KindCategorical)
}

// FeatureFields returns every field that contributes to the feature vector,
// numeric fields first, then categorical ones.
func (s TaskSchema) FeatureFields() []string {
	return append(s.Numeric(), s.Categorical()...)
}

func (s TaskSchema) namesOf(kind FieldKind) []string {
	var names []string
	for _, f := range s {
		if f.Kind == kind {
			names = append(names, f.Name)
		}
	}
	return names
}

// Validate checks that field names are unique and kinds are known.
func (s TaskSchema) Validate() error {
	if len(s) == 0 {
		return errors.New("schema has no fields")
	}

	var errs []error
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		if f.Name == "" {
			errs = append(errs, errors.New("field name cannot be empty"))
			continue
		}
		if strings.ContainsAny(f.Name, "*=#&") {
			errs = append(errs, fmt.Errorf("field name %q cannot contain any of *=#&", f.Name))
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true
		if !f.Kind.IsValid() {
			errs = append(errs, fmt.Errorf("field %q: invalid kind %q (valid: integer, categorical, identifier)", f.Name, f.Kind))
		}
	}
	return errors.Join(errs...)
}

// FeatureSpec controls how extracted fields become model features.
type FeatureSpec struct {
	// Degree of polynomial expansion: 1 (no interactions), 2 or 3.
	Degree int
	// LogTarget fits against log(1+y) instead of y.
	LogTarget bool
	// Standardize scales numeric fields to zero mean and unit variance.
	Standardize bool
	// Baselines pins the dropped category per categorical field.
	// Fields without an entry drop their first sorted observed value.
	Baselines map[string]string
}

const (
	MinDegree = 1
	MaxDegree = 3
)

// Validate checks the spec against its schema.
func (f FeatureSpec) Validate(s TaskSchema) error {
	var errs []error
	if f.Degree < MinDegree || f.Degree > MaxDegree {
		errs = append(errs, fmt.Errorf("degree must be between %d and %d, got %d", MinDegree, MaxDegree, f.Degree))
	}

	categorical := make(map[string]bool)
	for _, name := range s.Categorical() {
		categorical[name] = true
	}
	for field := range f.Baselines {
		if !categorical[field] {
			errs = append(errs, fmt.Errorf("baseline set for %q which is not a categorical field", field))
		}
	}

	if len(s.FeatureFields()) == 0 {
		errs = append(errs, errors.New("schema has no integer or categorical fields to build features from"))
	}
	return errors.Join(errs...)
}

// Task couples a schema with its feature spec.
type Task struct {
	Schema TaskSchema
	Spec   FeatureSpec
}

// Registry maps task identifiers to their configuration.
type Registry map[string]Task

// Lookup returns the task configuration.
func (r Registry) Lookup(task string) (Task, bool) {
	t, ok := r[task]
	return t, ok
}
