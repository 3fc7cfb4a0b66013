// Copyright Contributors to the KubeTask project

// Package config holds the agent's runtime configuration, populated
// from CLI flags and environment variables the way
// cmd/kubeopencode/server.go populates server.Options from cobra flags.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// EnvPrefetchSeconds is the environment variable consulted for the
// default prefetch window when no --prefetch-seconds flag is given,
// mirroring PREFECT_AGENT_PREFETCH_SECONDS.
const EnvPrefetchSeconds = "FLOWAGENT_PREFETCH_SECONDS"

// DefaultPrefetchSeconds is used when neither the flag nor the
// environment variable is set.
const DefaultPrefetchSeconds = 10

// DefaultPollIntervalSeconds is the cadence at which the external
// ticker invokes the agent loop when --poll-interval-seconds is unset.
const DefaultPollIntervalSeconds = 15

// Config is the resolved set of options the agent needs to start.
type Config struct {
	// WorkQueues are the named queues this agent polls.
	WorkQueues []string
	// PrefetchSeconds is the window, relative to now, runs are
	// prefetched within. Zero means "use the default".
	PrefetchSeconds int
	// PollIntervalSeconds is the cadence of the external ticker.
	PollIntervalSeconds int
	// ServerURL is the base URL of the orchestration server's API.
	ServerURL string
	// Namespace is the default Kubernetes namespace for jobs that
	// don't specify one.
	Namespace string
	// ImagePullPolicy is the default image pull policy for jobs that
	// don't specify one.
	ImagePullPolicy string
}

// ResolvedPrefetchSeconds returns the configured prefetch window,
// falling back to the environment variable and then the default.
func (c Config) ResolvedPrefetchSeconds() int {
	if c.PrefetchSeconds > 0 {
		return c.PrefetchSeconds
	}
	if raw, ok := os.LookupEnv(EnvPrefetchSeconds); ok {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return DefaultPrefetchSeconds
}

// Validate checks the configuration for programmer errors that should
// stop startup outright rather than surface later as a runtime
// failure.
func (c Config) Validate() error {
	if len(c.WorkQueues) == 0 {
		return fmt.Errorf("config: at least one work queue is required")
	}
	if c.ServerURL == "" {
		return fmt.Errorf("config: server URL is required")
	}
	return nil
}
