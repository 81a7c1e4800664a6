package features

import (
	"errors"
	"fmt"
	"sort"

	"github.com/haskel/cplxfox/internal/extract"
	"github.com/haskel/cplxfox/internal/schema"
)

var (
	// ErrEmptyBatch is returned when a pipeline is fitted on zero rows.
	ErrEmptyBatch = errors.New("no rows to fit")
	// ErrMissingField is returned when a row lacks a feature field.
	ErrMissingField = errors.New("missing feature field")
)

// IndicatorSeparator joins a categorical field and its value in a column name.
const IndicatorSeparator = "_"

// Categorical is the fitted one-hot encoding of one field.
type Categorical struct {
	Field    string
	Baseline string
	// Categories are the indicator values in column order (sorted, baseline removed).
	Categories []string
}

// Names returns the indicator column names, e.g. flagPlacementType_B.
func (c Categorical) Names() []string {
	names := make([]string, len(c.Categories))
	for i, v := range c.Categories {
		names[i] = c.Field + IndicatorSeparator + v
	}
	return names
}

// Pipeline is the fitted transform from extracted fields to a feature vector.
// It is immutable after Fit.
type Pipeline struct {
	numeric     []string
	scaler      *Scaler
	categorical []Categorical
	degree      int
	terms       []Term
	names       []string
}

// Fit learns scaler parameters and category orderings from rows.
// Every row must carry all feature fields of the schema.
func Fit(rows []extract.Fields, s schema.TaskSchema, spec schema.FeatureSpec) (*Pipeline, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := spec.Validate(s); err != nil {
		return nil, fmt.Errorf("invalid feature spec: %w", err)
	}

	required := s.FeatureFields()
	for i, row := range rows {
		if missing := row.Missing(required...); len(missing) > 0 {
			return nil, fmt.Errorf("row %d: %w: %v", i, ErrMissingField, missing)
		}
	}

	p := &Pipeline{
		numeric: s.Numeric(),
		degree:  spec.Degree,
	}

	if spec.Standardize && len(p.numeric) > 0 {
		cols := make([][]float64, len(p.numeric))
		for j, name := range p.numeric {
			cols[j] = make([]float64, len(rows))
			for i, row := range rows {
				cols[j][i] = float64(row[name].Int)
			}
		}
		p.scaler = FitScaler(cols)
	}

	for _, field := range s.Categorical() {
		p.categorical = append(p.categorical, fitCategorical(field, rows, spec.Baselines[field]))
	}

	base := p.baseNames()
	p.terms = Terms(len(base), p.degree)
	p.names = TermNames(base, p.terms)

	return p, nil
}

func fitCategorical(field string, rows []extract.Fields, baseline string) Categorical {
	seen := make(map[string]bool)
	for _, row := range rows {
		seen[row[field].Text] = true
	}

	observed := make([]string, 0, len(seen))
	for v := range seen {
		observed = append(observed, v)
	}
	sort.Strings(observed)

	if baseline == "" {
		baseline = observed[0]
	}

	c := Categorical{Field: field, Baseline: baseline}
	for _, v := range observed {
		if v != baseline {
			c.Categories = append(c.Categories, v)
		}
	}
	return c
}

func (p *Pipeline) baseNames() []string {
	names := append([]string(nil), p.numeric...)
	for _, c := range p.categorical {
		names = append(names, c.Names()...)
	}
	return names
}

// FeatureNames returns the expanded feature names in column order.
func (p *Pipeline) FeatureNames() []string {
	return append([]string(nil), p.names...)
}

// NumericFields returns the numeric fields in scaler order.
func (p *Pipeline) NumericFields() []string {
	return append([]string(nil), p.numeric...)
}

// Scaler returns the fitted scaler, or nil when numeric fields are not standardized.
func (p *Pipeline) Scaler() *Scaler {
	return p.scaler
}

// Categoricals returns the fitted categorical encodings in schema order.
func (p *Pipeline) Categoricals() []Categorical {
	out := make([]Categorical, len(p.categorical))
	for i, c := range p.categorical {
		c.Categories = append([]string(nil), c.Categories...)
		out[i] = c
	}
	return out
}

// Degree returns the polynomial expansion degree.
func (p *Pipeline) Degree() int {
	return p.degree
}

// Base builds the pre-expansion vector: scaled numeric fields, then indicators.
// A category outside the fitted set encodes as all zeros, like the baseline.
func (p *Pipeline) Base(row extract.Fields) ([]float64, error) {
	base := make([]float64, 0, len(p.numeric)+len(p.categorical))

	for j, name := range p.numeric {
		v, ok := row[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, name)
		}
		x := float64(v.Int)
		if p.scaler != nil {
			x = p.scaler.Apply(j, x)
		}
		base = append(base, x)
	}

	for _, c := range p.categorical {
		v, ok := row[c.Field]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, c.Field)
		}
		for _, cat := range c.Categories {
			if v.Text == cat {
				base = append(base, 1)
			} else {
				base = append(base, 0)
			}
		}
	}

	return base, nil
}

// Transform builds the expanded feature vector for one row.
func (p *Pipeline) Transform(row extract.Fields) ([]float64, error) {
	base, err := p.Base(row)
	if err != nil {
		return nil, err
	}
	return Expand(base, p.terms), nil
}

// Design transforms every row into the design matrix.
func (p *Pipeline) Design(rows []extract.Fields) ([][]float64, error) {
	X := make([][]float64, len(rows))
	for i, row := range rows {
		x, err := p.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		X[i] = x
	}
	return X, nil
}
