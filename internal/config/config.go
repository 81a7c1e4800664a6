package config

import (
	"sort"
	"time"

	"github.com/haskel/cplxfox/internal/schema"
)

type Config struct {
	Logging  LoggingConfig         `yaml:"logging"`
	Training TrainingConfig        `yaml:"training"`
	Artifact ArtifactConfig        `yaml:"artifact"`
	Server   ServerConfig          `yaml:"server"`
	Auth     AuthConfig            `yaml:"auth"`
	Tasks    map[string]TaskConfig `yaml:"tasks"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TrainingConfig controls where observations come from and how they are split.
type TrainingConfig struct {
	// Input is a .csv or .jsonl file, optionally .gz or .zst compressed.
	Input        string  `yaml:"input"`
	TestFraction float64 `yaml:"test_fraction"`
	Seed         uint64  `yaml:"seed"`
}

type ArtifactConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Host             string          `yaml:"host"`
	Port             int             `yaml:"port"`
	PIDFile          string          `yaml:"pid_file"`
	MaxBodyBytes     int64           `yaml:"max_body_bytes"`
	StatusIntervalMS int             `yaml:"status_interval_ms"`
	RateLimit        RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	PerClient         bool    `yaml:"per_client"`
}

type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// AdminToken guards POST /v1/reload with Bearer authentication.
	AdminToken string `yaml:"admin_token"`
}

// TaskConfig describes how one task's parameter strings become features.
// Tasks in a config file are merged with the built-in ones by name;
// a task given in the file replaces the built-in definition entirely.
type TaskConfig struct {
	Fields      []schema.Field    `yaml:"fields"`
	Degree      int               `yaml:"degree"`
	LogTarget   bool              `yaml:"log_target"`
	Standardize bool              `yaml:"standardize"`
	Baselines   map[string]string `yaml:"baselines,omitempty"`
}

// Task converts the entry into the schema package representation.
func (t TaskConfig) Task() schema.Task {
	return schema.Task{
		Schema: append(schema.TaskSchema(nil), t.Fields...),
		Spec: schema.FeatureSpec{
			Degree:      t.Degree,
			LogTarget:   t.LogTarget,
			Standardize: t.Standardize,
			Baselines:   t.Baselines,
		},
	}
}

func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Server.StatusIntervalMS) * time.Millisecond
}

// Registry returns the configured tasks keyed by task id.
func (c *Config) Registry() schema.Registry {
	r := make(schema.Registry, len(c.Tasks))
	for name, t := range c.Tasks {
		r[name] = t.Task()
	}
	return r
}

// TaskNames returns the configured task ids in sorted order.
func (c *Config) TaskNames() []string {
	names := make([]string, 0, len(c.Tasks))
	for name := range c.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
