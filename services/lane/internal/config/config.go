// Package config loads the lane service's runtime settings from the
// environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ServicePort string `env:"SERVICE_PORT" envDefault:"8084"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// WebhookSecret authenticates inbound runner callbacks; empty disables
	// the webhook intake entirely.
	WebhookSecret string `env:"LANE_WEBHOOK_SECRET"`

	// RootCommitInterval is the number of log entries between Merkle
	// checkpoint events.
	RootCommitInterval uint64 `env:"LANE_ROOT_COMMIT_INTERVAL" envDefault:"64"`

	// RepoPath, when set, backs patch manifests and merge refs with a local
	// git repository instead of caller-provided values.
	RepoPath string `env:"LANE_REPO_PATH"`

	// RunnerURL and RunnerToken point at a remote gate-runner service for
	// synchronous gate execution.
	RunnerURL   string `env:"LANE_RUNNER_URL"`
	RunnerToken string `env:"LANE_RUNNER_TOKEN"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
