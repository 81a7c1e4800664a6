package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/haskel/cplxfox/internal/schema"
)

// FormatVersion is the artifact layout written by this package.
const FormatVersion = 1

// ErrMalformed is returned when an artifact document cannot be trusted.
var ErrMalformed = errors.New("malformed artifact")

// ScalerParams are the standardization parameters of the numeric fields,
// aligned with FittedModel.NumericFeatures.
type ScalerParams struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// CategoricalFeature is the fixed one-hot encoding of one field.
type CategoricalFeature struct {
	Field      string   `json:"field"`
	Baseline   string   `json:"baseline"`
	Categories []string `json:"categories"`
}

// Metrics are accuracy figures computed in the space the model was fitted in.
type Metrics struct {
	TrainR2   float64 `json:"train_r2"`
	TestR2    float64 `json:"test_r2"`
	TestMSE   float64 `json:"test_mse"`
	TestRMSE  float64 `json:"test_rmse"`
	TrainMSE  float64 `json:"train_mse"`
	TrainRMSE float64 `json:"train_rmse"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}

// FittedModel is the portable description of one task's model.
// FeatureNames order defines how a parameter record becomes a feature vector.
type FittedModel struct {
	FormatVersion       int                  `json:"format_version"`
	Intercept           float64              `json:"intercept"`
	Coefficients        []float64            `json:"coefficients"`
	FeatureNames        []string             `json:"feature_names"`
	IsLogTransformed    bool                 `json:"is_log_transformed"`
	ScalerParams        *ScalerParams        `json:"scaler_params"`
	NumericFeatures     []string             `json:"numeric_features"`
	CategoricalFeatures []CategoricalFeature `json:"categorical_features"`
	Degree              int                  `json:"degree"`
	Schema              schema.TaskSchema    `json:"schema"`
	TrainingMetrics     Metrics              `json:"training_metrics"`
}

// Artifact maps task identifiers to fitted models.
type Artifact map[string]*FittedModel

// Tasks returns the task identifiers in sorted order.
func (a Artifact) Tasks() []string {
	tasks := make([]string, 0, len(a))
	for task := range a {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)
	return tasks
}

// Validate checks every model and reports all problems at once.
func (a Artifact) Validate() error {
	var errs []error
	for _, task := range a.Tasks() {
		m := a[task]
		if m == nil {
			errs = append(errs, fmt.Errorf("%s: model is null", task))
			continue
		}
		if err := m.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", task, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrMalformed, errors.Join(errs...))
	}
	return nil
}

// Validate checks the internal consistency of a single model.
func (m *FittedModel) Validate() error {
	var errs []error

	if m.FormatVersion != FormatVersion {
		errs = append(errs, fmt.Errorf("unsupported format_version %d (supported: %d)", m.FormatVersion, FormatVersion))
	}
	if len(m.Coefficients) != len(m.FeatureNames) {
		errs = append(errs, fmt.Errorf("%d coefficients for %d feature names", len(m.Coefficients), len(m.FeatureNames)))
	}
	if !finite(m.Intercept) {
		errs = append(errs, errors.New("intercept is not finite"))
	}
	for i, c := range m.Coefficients {
		if !finite(c) {
			errs = append(errs, fmt.Errorf("coefficient %d is not finite", i))
		}
	}
	if m.Degree < schema.MinDegree || m.Degree > schema.MaxDegree {
		errs = append(errs, fmt.Errorf("degree must be between %d and %d, got %d", schema.MinDegree, schema.MaxDegree, m.Degree))
	}

	if err := m.Schema.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("schema: %w", err))
	}
	kinds := make(map[string]schema.FieldKind, len(m.Schema))
	for _, f := range m.Schema {
		kinds[f.Name] = f.Kind
	}
	for _, name := range m.NumericFeatures {
		if kinds[name] != schema.KindInteger {
			errs = append(errs, fmt.Errorf("numeric feature %q is not an integer field of the schema", name))
		}
	}
	for _, c := range m.CategoricalFeatures {
		if kinds[c.Field] != schema.KindCategorical {
			errs = append(errs, fmt.Errorf("categorical feature %q is not a categorical field of the schema", c.Field))
		}
	}

	if s := m.ScalerParams; s != nil {
		if len(s.Mean) != len(m.NumericFeatures) || len(s.Scale) != len(m.NumericFeatures) {
			errs = append(errs, fmt.Errorf("scaler has %d means and %d scales for %d numeric features",
				len(s.Mean), len(s.Scale), len(m.NumericFeatures)))
		}
		for i, v := range s.Scale {
			if v == 0 || !finite(v) {
				errs = append(errs, fmt.Errorf("scale %d must be finite and non-zero", i))
			}
		}
		for i, v := range s.Mean {
			if !finite(v) {
				errs = append(errs, fmt.Errorf("mean %d is not finite", i))
			}
		}
	}

	return errors.Join(errs...)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// requiredKeys must be present in every model object.
var requiredKeys = []string{
	"format_version",
	"intercept",
	"coefficients",
	"feature_names",
	"is_log_transformed",
	"scaler_params",
	"numeric_features",
	"categorical_features",
	"schema",
	"degree",
	"training_metrics",
}

// Encode writes the artifact as an indented JSON document.
// Floats use the shortest representation that parses back to the same value.
func Encode(w io.Writer, a Artifact) error {
	data, err := Marshal(a)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Marshal renders the canonical document. Map keys are sorted, so equal
// artifacts always produce identical bytes.
func Marshal(a Artifact) ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode reads and validates an artifact document.
func Decode(r io.Reader) (Artifact, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return Unmarshal(data)
}

// Unmarshal parses and validates an artifact document.
func Unmarshal(data []byte) (Artifact, error) {
	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var errs []error
	for task, fields := range raw {
		if fields == nil {
			continue
		}
		var missing []string
		for _, key := range requiredKeys {
			if _, ok := fields[key]; !ok {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			errs = append(errs, fmt.Errorf("%s: missing keys %s", task, strings.Join(missing, ", ")))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, errors.Join(errs...))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var a Artifact
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if a == nil {
		a = Artifact{}
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Fingerprint identifies the artifact contents.
func Fingerprint(a Artifact) (string, error) {
	data, err := Marshal(a)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}
