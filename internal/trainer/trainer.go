package trainer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/haskel/cplxfox/internal/artifact"
	"github.com/haskel/cplxfox/internal/extract"
	"github.com/haskel/cplxfox/internal/features"
	"github.com/haskel/cplxfox/internal/observation"
	"github.com/haskel/cplxfox/internal/regression"
	"github.com/haskel/cplxfox/internal/schema"
)

// ErrUnknownTask is returned for records whose task has no configuration.
var ErrUnknownTask = errors.New("no schema configured for task")

// Options controls the train/test partition.
type Options struct {
	TestFraction float64
	Seed         uint64
}

// DefaultOptions returns an 80/20 split with a fixed seed.
func DefaultOptions() Options {
	return Options{
		TestFraction: regression.DefaultTestFraction,
		Seed:         regression.DefaultSeed,
	}
}

// Result is the outcome of fitting one task.
type Result struct {
	Task       string
	Model      *artifact.FittedModel
	Pipeline   *features.Pipeline
	Regression *regression.Model
	Rows       int
	Dropped    int
	Duration   time.Duration
}

// Report collects per-task outcomes of a training run.
// A failed task never prevents the others from being fitted.
type Report struct {
	Results  map[string]*Result
	Failures map[string]error
}

// Artifact returns the exportable models of all successful tasks.
func (r *Report) Artifact() artifact.Artifact {
	a := make(artifact.Artifact, len(r.Results))
	for task, res := range r.Results {
		a[task] = res.Model
	}
	return a
}

// FailedTasks returns the failed task ids in sorted order.
func (r *Report) FailedTasks() []string {
	tasks := make([]string, 0, len(r.Failures))
	for task := range r.Failures {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)
	return tasks
}

// Trainer fits one model per configured task.
type Trainer struct {
	tasks  schema.Registry
	opts   Options
	logger *slog.Logger
}

// New creates a Trainer.
func New(tasks schema.Registry, opts Options, logger *slog.Logger) *Trainer {
	return &Trainer{
		tasks:  tasks,
		opts:   opts,
		logger: logger,
	}
}

// Train fits every configured task and every task present in records.
// A configured task without records fails with features.ErrEmptyBatch.
func (t *Trainer) Train(records []observation.Record) *Report {
	report := &Report{
		Results:  make(map[string]*Result),
		Failures: make(map[string]error),
	}

	groups := observation.GroupByTask(records)
	for _, task := range t.tasksToTrain(records) {
		res, err := t.TrainTask(task, groups[task])
		if err != nil {
			t.logger.Error("task training failed", "task", task, "records", len(groups[task]), "error", err)
			report.Failures[task] = err
			continue
		}
		report.Results[task] = res
	}

	t.logger.Info("training finished",
		"tasks", len(report.Results),
		"failed", len(report.Failures),
	)
	return report
}

// tasksToTrain returns the sorted union of configured and observed tasks.
func (t *Trainer) tasksToTrain(records []observation.Record) []string {
	seen := make(map[string]bool, len(t.tasks))
	var tasks []string
	for task := range t.tasks {
		seen[task] = true
		tasks = append(tasks, task)
	}
	for _, task := range observation.Tasks(records) {
		if !seen[task] {
			seen[task] = true
			tasks = append(tasks, task)
		}
	}
	sort.Strings(tasks)
	return tasks
}

// TrainTask fits the model of a single task. Records missing any feature
// field, or whose target is unusable, are dropped before fitting.
func (t *Trainer) TrainTask(task string, records []observation.Record) (*Result, error) {
	start := time.Now()

	cfg, ok := t.tasks.Lookup(task)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}

	ex, err := extract.New(cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	required := cfg.Schema.FeatureFields()
	rows := make([]extract.Fields, 0, len(records))
	targets := make([]float64, 0, len(records))
	dropped := 0

	for _, r := range records {
		fields, err := ex.Extract(r.Parameters)
		if err != nil || !fields.Has(required...) {
			dropped++
			continue
		}

		y, ok := target(r.Complexity, cfg.Spec.LogTarget)
		if !ok {
			dropped++
			continue
		}

		rows = append(rows, fields)
		targets = append(targets, y)
	}

	if dropped > 0 {
		t.logger.Warn("dropped unusable records", "task", task, "dropped", dropped, "kept", len(rows))
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w after dropping %d of %d records", features.ErrEmptyBatch, dropped, len(records))
	}

	p, err := features.Fit(rows, cfg.Schema, cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build features: %w", err)
	}

	X, err := p.Design(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to build design matrix: %w", err)
	}

	trainIdx, testIdx := regression.Split(len(rows), t.opts.TestFraction, t.opts.Seed)
	Xtrain, ytrain := regression.Rows(X, trainIdx), regression.Values(targets, trainIdx)

	m, err := regression.Fit(Xtrain, ytrain)
	if err != nil {
		return nil, fmt.Errorf("failed to fit model: %w", err)
	}

	trainScore := regression.Evaluate(m, Xtrain, ytrain)
	testScore := trainScore
	if len(testIdx) > 0 {
		testScore = regression.Evaluate(m, regression.Rows(X, testIdx), regression.Values(targets, testIdx))
	} else {
		t.logger.Warn("too few rows for a held-out subset, test metrics use training rows", "task", task, "rows", len(rows))
		testScore.Rows = 0
	}

	fm := artifact.Export(cfg, p, m, artifact.MetricsFrom(trainScore, testScore))

	res := &Result{
		Task:       task,
		Model:      fm,
		Pipeline:   p,
		Regression: m,
		Rows:       len(rows),
		Dropped:    dropped,
		Duration:   time.Since(start),
	}

	t.logger.Info("task trained",
		"task", task,
		"rows", res.Rows,
		"dropped", res.Dropped,
		"features", len(fm.FeatureNames),
		"degree", fm.Degree,
		"log_target", fm.IsLogTransformed,
		"train_r2", fm.TrainingMetrics.TrainR2,
		"test_r2", fm.TrainingMetrics.TestR2,
		"test_rmse", fm.TrainingMetrics.TestRMSE,
		"duration", res.Duration,
	)

	return res, nil
}

// target maps a measured complexity into fitting space.
func target(y float64, logTarget bool) (float64, bool) {
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, false
	}
	if logTarget {
		if y < 0 {
			return 0, false
		}
		return features.LogTarget(y), true
	}
	return y, true
}

// Predict returns the training-time prediction for fields, in complexity space.
func (r *Result) Predict(fields extract.Fields) (float64, error) {
	x, err := r.Pipeline.Transform(fields)
	if err != nil {
		return 0, err
	}
	v := r.Regression.Predict(x)
	if r.Model.IsLogTransformed {
		v = features.InverseLogTarget(v)
	}
	return v, nil
}
