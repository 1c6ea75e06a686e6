package master

import (
	"context"

	"yqhp/loadtest/pkg/types"
)

// WorkerCommander sends control commands to workers and reads their state.
// It is implemented by client.WorkerClient.
type WorkerCommander interface {
	// Start posts the test configuration to the worker's control address.
	Start(ctx context.Context, controlURL string, cfg types.TestConfig) error

	// Stop asks the worker to abandon its job.
	Stop(ctx context.Context, controlURL string) error

	// Reset asks the worker to abandon its job and drop buffered metrics.
	Reset(ctx context.Context, controlURL string) error

	// Status returns the raw body of the worker's status address.
	Status(ctx context.Context, statusURL string) (string, error)
}

// CommandResult is the outcome of one command sent to one worker.
type CommandResult struct {
	WorkerID string `json:"workerId"`
	Err      error  `json:"-"`
}

// OK reports whether the command was delivered.
func (r CommandResult) OK() bool {
	return r.Err == nil
}
