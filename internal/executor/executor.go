// Package executor defines the sandbox that runs snippet code.
package executor

import (
	"context"
	"time"
)

// TimeoutExitCode is reported when a run is killed for exceeding its time
// budget, matching the exit status of the unix timeout command.
const TimeoutExitCode = 124

// Request is one snippet run.
type Request struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Result is the captured output of a run. Stdout and Stderr are truncated
// to the executor's output cap; Truncated says whether that happened.
type Result struct {
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	ExitCode  int           `json:"exitCode"`
	Duration  time.Duration `json:"duration"`
	Truncated bool          `json:"truncated,omitempty"`
}

// Executor runs code in an isolated environment.
type Executor interface {
	// Supports reports whether the executor can run language.
	Supports(language string) bool
	Execute(ctx context.Context, req Request) (*Result, error)
}
