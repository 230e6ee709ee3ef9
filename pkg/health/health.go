package health

import (
	"context"
	"time"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeExec    CheckType = "exec"
	CheckTypeGuarded CheckType = "guarded"
	CheckTypeHTTP    CheckType = "http"
	CheckTypeTCP     CheckType = "tcp"
)

// Result represents the outcome of a health check.
//
// Ran is false when the substantive check never executed, either because
// its command could not be started or because a runtime guard stopped it.
// A check that ran and failed has Ran set and Healthy cleared.
type Result struct {
	Healthy bool
	Ran     bool

	// RuntimeNotConfigured is set when a runtime guard found the cluster
	// runtime stopped. ExitCode is 1 in that case.
	RuntimeNotConfigured bool

	ExitCode  int
	Output    string
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}

// Config contains settings shared by probe runs
type Config struct {
	// Timeout bounds a single probe, guard included
	Timeout time.Duration

	// Concurrency is the number of probes run at once
	Concurrency int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:     60 * time.Second,
		Concurrency: 4,
	}
}

func failed(start time.Time, ran bool, message string) Result {
	return Result{
		Healthy:   false,
		Ran:       ran,
		ExitCode:  -1,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}
