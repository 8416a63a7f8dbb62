// Package config reads the planner's settings from CHORE_PLANNER_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBPath    string `env:"CHORE_PLANNER_DB_PATH"    envDefault:"chore_planner.db"`
	Port      string `env:"CHORE_PLANNER_PORT"       envDefault:"8080"`
	LogLevel  string `env:"CHORE_PLANNER_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"CHORE_PLANNER_LOG_FORMAT" envDefault:"text"`

	// WeeksToPlan is the planning horizon starting at the current week.
	WeeksToPlan int `env:"CHORE_PLANNER_WEEKS_TO_PLAN" envDefault:"5"`
	// Gamma in [0, 1] controls how strongly scores skew the selection;
	// 1 is uniform.
	Gamma float64 `env:"CHORE_PLANNER_GAMMA" envDefault:"0.8"`
	// Seed 0 picks a random seed per process.
	Seed uint64 `env:"CHORE_PLANNER_SEED" envDefault:"0"`

	// Debug makes every week advance move exactly one week forward.
	Debug              bool `env:"CHORE_PLANNER_DEBUG"                 envDefault:"false"`
	FallbackToLastWeek bool `env:"CHORE_PLANNER_FALLBACK_TO_LAST_WEEK" envDefault:"false"`

	// AdminTokenHash is a bcrypt hash; mutating routes are open when empty.
	AdminTokenHash string        `env:"CHORE_PLANNER_ADMIN_TOKEN_HASH"`
	SeedFile       string        `env:"CHORE_PLANNER_SEED_FILE"`
	TickInterval   time.Duration `env:"CHORE_PLANNER_TICK_INTERVAL" envDefault:"1h"`

	// Snapshots of the database go to S3-compatible storage after every new
	// week; they are off unless bucket, keys and passphrase are all set.
	S3Endpoint         string `env:"CHORE_PLANNER_S3_ENDPOINT"`
	S3Bucket           string `env:"CHORE_PLANNER_S3_BUCKET"`
	S3Region           string `env:"CHORE_PLANNER_S3_REGION" envDefault:"us-east-1"`
	S3AccessKey        string `env:"CHORE_PLANNER_S3_ACCESS_KEY"`
	S3SecretKey        string `env:"CHORE_PLANNER_S3_SECRET_KEY"`
	SnapshotPrefix     string `env:"CHORE_PLANNER_SNAPSHOT_PREFIX" envDefault:"chore-planner/"`
	SnapshotPassphrase string `env:"CHORE_PLANNER_SNAPSHOT_PASSPHRASE"`
	SnapshotKeep       int    `env:"CHORE_PLANNER_SNAPSHOT_KEEP" envDefault:"8"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.WeeksToPlan < 0 {
		errs = append(errs, fmt.Errorf("CHORE_PLANNER_WEEKS_TO_PLAN must not be negative, got %d", c.WeeksToPlan))
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		errs = append(errs, fmt.Errorf("CHORE_PLANNER_GAMMA must be in [0, 1], got %v", c.Gamma))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("CHORE_PLANNER_TICK_INTERVAL must be positive, got %s", c.TickInterval))
	}
	if c.SnapshotKeep < 1 {
		errs = append(errs, fmt.Errorf("CHORE_PLANNER_SNAPSHOT_KEEP must be positive, got %d", c.SnapshotKeep))
	}
	if c.S3Bucket != "" && c.SnapshotPassphrase == "" {
		errs = append(errs, errors.New("CHORE_PLANNER_SNAPSHOT_PASSPHRASE is required when CHORE_PLANNER_S3_BUCKET is set"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("CHORE_PLANNER_DB_PATH must not be empty"))
	}
	return errors.Join(errs...)
}
