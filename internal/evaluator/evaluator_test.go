package evaluator

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haskel/cplxfox/internal/artifact"
	"github.com/haskel/cplxfox/internal/extract"
	"github.com/haskel/cplxfox/internal/observation"
	"github.com/haskel/cplxfox/internal/schema"
	"github.com/haskel/cplxfox/internal/trainer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registry() schema.Registry {
	return schema.Registry{
		"FifteenPuzzle": {
			Schema: schema.TaskSchema{
				{Name: "shuffles", Kind: schema.KindInteger},
				{Name: "size", Kind: schema.KindInteger},
			},
			Spec: schema.FeatureSpec{Degree: 3, LogTarget: true, Standardize: true},
		},
		"CaptureTheFlag": {
			Schema: schema.TaskSchema{
				{Name: "gridSize", Kind: schema.KindInteger},
				{Name: "numBlueAgents", Kind: schema.KindInteger},
				{Name: "numRedAgents", Kind: schema.KindInteger},
				{Name: "flagPlacementType", Kind: schema.KindCategorical},
			},
			Spec: schema.FeatureSpec{Degree: 2, LogTarget: true, Standardize: true},
		},
		"GameOfLife": {
			Schema: schema.TaskSchema{
				{Name: "iterations", Kind: schema.KindInteger},
				{Name: "mapFilename", Kind: schema.KindIdentifier},
			},
			Spec: schema.FeatureSpec{Degree: 1},
		},
	}
}

func records() []observation.Record {
	var out []observation.Record
	for shuffles := 70; shuffles < 76; shuffles++ {
		for size := 10; size < 15; size++ {
			out = append(out, observation.Record{
				Task:       "FifteenPuzzle",
				Parameters: fmt.Sprintf("shuffles=%d#size=%d", shuffles, size),
				Complexity: float64(shuffles*size*size) + 3*float64(shuffles),
			})
		}
	}
	flags := []string{"A", "B", "C"}
	for i := 0; i < 30; i++ {
		flag := flags[i%3]
		out = append(out, observation.Record{
			Task:       "CaptureTheFlag",
			Parameters: fmt.Sprintf("flagPlacementType=%s#gridSize=%d#numBlueAgents=%d#numRedAgents=%d", flag, 10+i, 5+(i*3)%11, 5+(i*7)%30),
			Complexity: float64((10+i)*(10+i)) * float64(1+i%3) * 1000,
		})
	}
	for it := 1000; it < 20000; it += 1000 {
		out = append(out, observation.Record{
			Task:       "GameOfLife",
			Parameters: fmt.Sprintf("iterations=%d#mapFilename=glider-10-10.json", it),
			Complexity: 67 + 893.85*float64(it),
		})
	}
	return out
}

func trainAndReload(t *testing.T) (*trainer.Report, *Evaluator) {
	t.Helper()

	report := trainer.New(registry(), trainer.DefaultOptions(), testLogger()).Train(records())
	require.Empty(t, report.Failures)

	store := artifact.NewStore(filepath.Join(t.TempDir(), "complexity_estimators.json"), testLogger())
	require.NoError(t, store.Save(report.Artifact()))

	loaded, err := store.Load()
	require.NoError(t, err)

	e, err := New(loaded)
	require.NoError(t, err)
	return report, e
}

func TestPredict_RoundTrip(t *testing.T) {
	report, e := trainAndReload(t)

	assert.Equal(t, []string{"CaptureTheFlag", "FifteenPuzzle", "GameOfLife"}, e.Tasks())

	for _, r := range records() {
		res := report.Results[r.Task]
		fields, err := extract.Extract(r.Parameters, registry()[r.Task].Schema)
		require.NoError(t, err)

		want, err := res.Predict(fields)
		require.NoError(t, err)

		got, err := e.Predict(r.Task, r.Parameters)
		require.NoError(t, err, r.Parameters)

		assert.InDelta(t, want, got, 1e-9*math.Max(1, math.Abs(want)), "%s %s", r.Task, r.Parameters)
	}
}

func TestPredict_LinearModel(t *testing.T) {
	_, e := trainAndReload(t)

	got, err := e.Predict("GameOfLife", "iterations=5000#mapFilename=glider-10-10.json")
	require.NoError(t, err)
	assert.InEpsilon(t, 67+893.85*5000, got, 1e-9)

	// identifier fields are not features, so they may be absent
	got2, err := e.Predict("GameOfLife", "iterations=5000")
	require.NoError(t, err)
	assert.Equal(t, got, got2)
}

func TestPredict_UnseenCategoryMatchesBaseline(t *testing.T) {
	_, e := trainAndReload(t)

	base, err := e.Predict("CaptureTheFlag", "flagPlacementType=A#gridSize=20#numBlueAgents=15#numRedAgents=16")
	require.NoError(t, err)
	unseen, err := e.Predict("CaptureTheFlag", "flagPlacementType=D#gridSize=20#numBlueAgents=15#numRedAgents=16")
	require.NoError(t, err)
	assert.Equal(t, base, unseen)

	m, ok := e.Model("CaptureTheFlag")
	require.True(t, ok)
	require.Len(t, m.CategoricalFeatures, 1)
	assert.Equal(t, "A", m.CategoricalFeatures[0].Baseline)
	assert.Contains(t, m.FeatureNames, "flagPlacementType_B")
	assert.Contains(t, m.FeatureNames, "flagPlacementType_C")
}

func TestPredict_Errors(t *testing.T) {
	_, e := trainAndReload(t)

	_, err := e.Predict("Sudoku", "size=3")
	assert.ErrorIs(t, err, ErrUnknownTask)

	_, err = e.Predict("FifteenPuzzle", "shuffles=70")
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "size")

	_, err = e.Predict("CaptureTheFlag", "gridSize=20#numBlueAgents=15#numRedAgents=16")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = e.Predict("FifteenPuzzle", "")
	assert.ErrorIs(t, err, extract.ErrEmptyParameters)
}

func TestPredictParams(t *testing.T) {
	_, e := trainAndReload(t)

	a, err := e.PredictParams("FifteenPuzzle", map[string]string{"size": "12", "shuffles": "72"})
	require.NoError(t, err)
	b, err := e.Predict("FifteenPuzzle", "size=12#shuffles=72")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = e.PredictParams("FifteenPuzzle", map[string]string{"size": "12#shuffles=1", "shuffles": "72"})
	assert.ErrorIs(t, err, extract.ErrReservedCharacter)
}

func TestPredict_Concurrent(t *testing.T) {
	_, e := trainAndReload(t)

	want, err := e.Predict("FifteenPuzzle", "shuffles=73#size=11")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, err := e.Predict("FifteenPuzzle", "shuffles=73#size=11")
				if err != nil || got != want {
					t.Errorf("concurrent predict: got %v, %v", got, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func handModel() *artifact.FittedModel {
	return &artifact.FittedModel{
		FormatVersion:    artifact.FormatVersion,
		Intercept:        1,
		Coefficients:     []float64{2, 3, 0.5},
		FeatureNames:     []string{"a", "k_B", "a*k_B"},
		IsLogTransformed: false,
		ScalerParams:     &artifact.ScalerParams{Mean: []float64{10}, Scale: []float64{2}},
		NumericFeatures:  []string{"a"},
		CategoricalFeatures: []artifact.CategoricalFeature{
			{Field: "k", Baseline: "A", Categories: []string{"B"}},
		},
		Degree: 2,
		Schema: schema.TaskSchema{
			{Name: "a", Kind: schema.KindInteger},
			{Name: "k", Kind: schema.KindCategorical},
		},
	}
}

func TestPredict_HandBuiltModel(t *testing.T) {
	e, err := New(artifact.Artifact{"T": handModel()})
	require.NoError(t, err)

	// a=14 scales to 2; k=B
	got, err := e.Predict("T", "a=14#k=B")
	require.NoError(t, err)
	assert.Equal(t, 1+2*2.0+3*1+0.5*2, got)

	got, err = e.Predict("T", "a=14#k=A")
	require.NoError(t, err)
	assert.Equal(t, 5.0, got)
}

func TestPredict_LogInverse(t *testing.T) {
	m := handModel()
	m.IsLogTransformed = true
	e, err := New(artifact.Artifact{"T": m})
	require.NoError(t, err)

	got, err := e.Predict("T", "a=10#k=A")
	require.NoError(t, err)
	assert.InDelta(t, math.E-1, got, 1e-12)
}

func TestNew_RejectsUnknownFeature(t *testing.T) {
	m := handModel()
	m.FeatureNames[2] = "a*k_Z"
	_, err := New(artifact.Artifact{"T": m})
	assert.ErrorIs(t, err, artifact.ErrMalformed)

	m = handModel()
	m.FeatureNames[2] = "a*a*k_B"
	_, err = New(artifact.Artifact{"T": m})
	assert.ErrorIs(t, err, artifact.ErrMalformed)
}

func TestNew_RejectsLengthMismatch(t *testing.T) {
	m := handModel()
	m.Coefficients = m.Coefficients[:2]
	_, err := New(artifact.Artifact{"T": m})
	assert.ErrorIs(t, err, artifact.ErrMalformed)
}

func TestPredict_NonFinite(t *testing.T) {
	m := handModel()
	m.IsLogTransformed = true
	e, err := New(artifact.Artifact{"T": m})
	require.NoError(t, err)

	// exp of roughly 1e10 overflows
	_, err = e.Predict("T", "a=9999999999#k=A")
	require.ErrorIs(t, err, ErrNonFinite)

	_, err = e.Predict("T", "a=9999999999#k=B")
	require.ErrorIs(t, err, ErrNonFinite)
}

func TestNew_RejectsDuplicateBaseFeature(t *testing.T) {
	m := handModel()
	m.Schema = schema.TaskSchema{
		{Name: "a", Kind: schema.KindInteger},
		{Name: "k_B", Kind: schema.KindInteger},
		{Name: "k", Kind: schema.KindCategorical},
	}
	m.NumericFeatures = []string{"a", "k_B"}
	m.ScalerParams = &artifact.ScalerParams{Mean: []float64{10, 0}, Scale: []float64{2, 1}}
	require.NoError(t, m.Validate())

	_, err := New(artifact.Artifact{"T": m})
	require.ErrorIs(t, err, artifact.ErrMalformed)
	assert.Contains(t, err.Error(), `"k_B" is defined twice`)
}
