package config

import "github.com/haskel/cplxfox/internal/schema"

func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Training: TrainingConfig{
			Input:        "results.csv",
			TestFraction: 0.2,
			Seed:         42,
		},
		Artifact: ArtifactConfig{
			Path: "complexity_estimators.json",
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			PIDFile:          "/var/run/cplxfox.pid",
			MaxBodyBytes:     1 << 20,
			StatusIntervalMS: 5000,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 100,
				Burst:             200,
				PerClient:         false,
			},
		},
		Auth: AuthConfig{
			Enabled:  false,
			User:     "",
			Password: "",
		},
		Tasks: DefaultTasks(),
	}
}

// DefaultTasks returns the built-in simulator tasks.
func DefaultTasks() map[string]TaskConfig {
	return map[string]TaskConfig{
		"FifteenPuzzle": {
			Fields: []schema.Field{
				{Name: "shuffles", Kind: schema.KindInteger},
				{Name: "size", Kind: schema.KindInteger},
			},
			Degree:      3,
			LogTarget:   true,
			Standardize: true,
		},
		"CaptureTheFlag": {
			Fields: []schema.Field{
				{Name: "gridSize", Kind: schema.KindInteger},
				{Name: "numBlueAgents", Kind: schema.KindInteger},
				{Name: "numRedAgents", Kind: schema.KindInteger},
				{Name: "flagPlacementType", Kind: schema.KindCategorical},
			},
			Degree:      2,
			LogTarget:   true,
			Standardize: true,
		},
		"GameOfLife": {
			Fields: []schema.Field{
				{Name: "iterations", Kind: schema.KindInteger},
				{Name: "mapFilename", Kind: schema.KindIdentifier},
			},
			Degree: 1,
		},
	}
}
