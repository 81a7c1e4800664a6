// Package evaluator replays fitted models from an artifact.
//
// An Evaluator only reads the artifact document: stored scaler parameters and
// category orderings are applied as-is and the feature vector is rebuilt from
// feature_names, so predictions never depend on training code state.
package evaluator

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/haskel/cplxfox/internal/artifact"
	"github.com/haskel/cplxfox/internal/extract"
	"github.com/haskel/cplxfox/internal/features"
	"github.com/haskel/cplxfox/internal/schema"
)

var (
	// ErrUnknownTask is returned for a task id absent from the artifact.
	ErrUnknownTask = errors.New("unknown task")
	// ErrMissingField is returned when a parameter required by the model is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrNonFinite is returned when parameters drive the model outside float64 range.
	ErrNonFinite = errors.New("prediction is not finite")
)

type indicator struct {
	field      string
	categories []string
}

type compiled struct {
	model      *artifact.FittedModel
	extractor  *extract.Extractor
	numeric    []string
	scaler     *artifact.ScalerParams
	indicators []indicator
	baseSize   int
	terms      []features.Term
}

// Evaluator predicts complexity from raw parameter strings.
// It is immutable after New and safe for concurrent use.
type Evaluator struct {
	models map[string]*compiled
}

// New compiles every model of the artifact. Any feature name that does not
// resolve to stored numeric or categorical columns is rejected.
func New(a artifact.Artifact) (*Evaluator, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	e := &Evaluator{models: make(map[string]*compiled, len(a))}
	var errs []error
	for _, task := range a.Tasks() {
		c, err := compile(a[task])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", task, err))
			continue
		}
		e.models[task] = c
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", artifact.ErrMalformed, errors.Join(errs...))
	}
	return e, nil
}

func compile(m *artifact.FittedModel) (*compiled, error) {
	ex, err := extract.New(m.Schema)
	if err != nil {
		return nil, err
	}

	c := &compiled{
		model:     m,
		extractor: ex,
		numeric:   m.NumericFeatures,
		scaler:    m.ScalerParams,
	}

	slots := make(map[string]int)
	addSlot := func(name string) error {
		if _, dup := slots[name]; dup {
			return fmt.Errorf("base feature %q is defined twice", name)
		}
		slots[name] = len(slots)
		return nil
	}
	for _, name := range m.NumericFeatures {
		if err := addSlot(name); err != nil {
			return nil, err
		}
	}
	for _, cf := range m.CategoricalFeatures {
		c.indicators = append(c.indicators, indicator{field: cf.Field, categories: cf.Categories})
		for _, v := range cf.Categories {
			if err := addSlot(cf.Field + features.IndicatorSeparator + v); err != nil {
				return nil, err
			}
		}
	}
	c.baseSize = len(slots)

	c.terms = make([]features.Term, len(m.FeatureNames))
	for i, name := range m.FeatureNames {
		factors := strings.Split(name, features.ProductSeparator)
		if len(factors) > m.Degree {
			return nil, fmt.Errorf("feature %q has %d factors but degree is %d", name, len(factors), m.Degree)
		}
		term := make(features.Term, len(factors))
		for k, f := range factors {
			slot, ok := slots[f]
			if !ok {
				return nil, fmt.Errorf("feature %q: unknown base feature %q", name, f)
			}
			term[k] = slot
		}
		c.terms[i] = term
	}

	return c, nil
}

// Predict estimates the complexity of running task with the raw parameters.
func (e *Evaluator) Predict(task, raw string) (float64, error) {
	c, ok := e.models[task]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}

	fields, err := c.extractor.Extract(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", task, err)
	}

	base, err := c.base(fields)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", task, err)
	}

	m := c.model
	result := m.Intercept
	for i, t := range c.terms {
		result += m.Coefficients[i] * features.Product(base, t)
	}

	if m.IsLogTransformed {
		result = features.InverseLogTarget(result)
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, fmt.Errorf("%s: %w for %q", task, ErrNonFinite, raw)
	}
	return result, nil
}

// PredictParams serializes params and predicts.
func (e *Evaluator) PredictParams(task string, params map[string]string) (float64, error) {
	if err := extract.ValidateParams(params); err != nil {
		return 0, fmt.Errorf("%s: %w", task, err)
	}
	return e.Predict(task, extract.Serialize(params))
}

func (c *compiled) base(fields extract.Fields) ([]float64, error) {
	base := make([]float64, 0, c.baseSize)

	for j, name := range c.numeric {
		v, ok := fields[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, name)
		}
		x := float64(v.Int)
		if c.scaler != nil {
			x = (x - c.scaler.Mean[j]) / c.scaler.Scale[j]
		}
		base = append(base, x)
	}

	for _, ind := range c.indicators {
		v, ok := fields[ind.field]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, ind.field)
		}
		// Unseen categories encode like the baseline.
		for _, cat := range ind.categories {
			if v.Text == cat {
				base = append(base, 1)
			} else {
				base = append(base, 0)
			}
		}
	}

	return base, nil
}

// Tasks returns the task ids the evaluator can predict.
func (e *Evaluator) Tasks() []string {
	a := make(artifact.Artifact, len(e.models))
	for task, c := range e.models {
		a[task] = c.model
	}
	return a.Tasks()
}

// Model returns the stored model for task.
func (e *Evaluator) Model(task string) (*artifact.FittedModel, bool) {
	c, ok := e.models[task]
	if !ok {
		return nil, false
	}
	return c.model, true
}

// Schema returns the parameter schema of task.
func (e *Evaluator) Schema(task string) (schema.TaskSchema, bool) {
	c, ok := e.models[task]
	if !ok {
		return nil, false
	}
	return c.model.Schema, true
}
