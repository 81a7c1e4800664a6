package artifact

import (
	"fmt"
	"strings"

	"github.com/haskel/cplxfox/internal/features"
	"github.com/haskel/cplxfox/internal/regression"
	"github.com/haskel/cplxfox/internal/schema"
)

// Export flattens a fitted pipeline and regression into a portable model.
func Export(task schema.Task, p *features.Pipeline, m *regression.Model, metrics Metrics) *FittedModel {
	fm := &FittedModel{
		FormatVersion:    FormatVersion,
		Intercept:        m.Intercept,
		Coefficients:     append([]float64(nil), m.Coefficients...),
		FeatureNames:     p.FeatureNames(),
		IsLogTransformed: task.Spec.LogTarget,
		NumericFeatures:  p.NumericFields(),
		Degree:           p.Degree(),
		Schema:           append(schema.TaskSchema(nil), task.Schema...),
		TrainingMetrics:  metrics,
	}

	if fm.Coefficients == nil {
		fm.Coefficients = []float64{}
	}
	if fm.NumericFeatures == nil {
		fm.NumericFeatures = []string{}
	}

	if s := p.Scaler(); s != nil {
		fm.ScalerParams = &ScalerParams{
			Mean:  append([]float64(nil), s.Mean...),
			Scale: append([]float64(nil), s.Scale...),
		}
	}

	for _, c := range p.Categoricals() {
		cats := c.Categories
		if cats == nil {
			cats = []string{}
		}
		fm.CategoricalFeatures = append(fm.CategoricalFeatures, CategoricalFeature{
			Field:      c.Field,
			Baseline:   c.Baseline,
			Categories: cats,
		})
	}

	if fm.CategoricalFeatures == nil {
		fm.CategoricalFeatures = []CategoricalFeature{}
	}

	return fm
}

// MetricsFrom converts regression scores into artifact metrics.
func MetricsFrom(train, test regression.Score) Metrics {
	return Metrics{
		TrainR2:   train.R2,
		TestR2:    test.R2,
		TestMSE:   test.MSE,
		TestRMSE:  test.RMSE,
		TrainMSE:  train.MSE,
		TrainRMSE: train.RMSE,
		TrainRows: train.Rows,
		TestRows:  test.Rows,
	}
}

// Equation renders the closed form of the model.
func (m *FittedModel) Equation() string {
	var b strings.Builder

	lhs := "complexity"
	if m.IsLogTransformed {
		lhs = "log(1 + complexity)"
	}
	fmt.Fprintf(&b, "%s = %.6f", lhs, m.Intercept)
	for i, c := range m.Coefficients {
		fmt.Fprintf(&b, " + (%.6f)*%s", c, m.FeatureNames[i])
	}
	if m.IsLogTransformed {
		b.WriteString("\ncomplexity = exp(log(1 + complexity)) - 1")
	}
	return b.String()
}
