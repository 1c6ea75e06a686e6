package master

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"yqhp/loadtest/pkg/logger"
	"yqhp/loadtest/pkg/types"
)

// JobController fans lifecycle commands out to every registered worker.
// Delivery is best effort: a failing worker is logged and skipped, the other
// workers still receive the command and nothing is retried or rolled back.
type JobController struct {
	registry   *Registry
	commander  WorkerCommander
	aggregator *Aggregator
	logger     *zap.Logger
}

// NewJobController creates a controller over the given registry.
func NewJobController(registry *Registry, commander WorkerCommander, aggregator *Aggregator, l *zap.Logger) *JobController {
	return &JobController{
		registry:   registry,
		commander:  commander,
		aggregator: aggregator,
		logger:     logger.OrDefault(l).Named("controller"),
	}
}

// Start sends the test configuration to every worker.
func (c *JobController) Start(ctx context.Context, cfg types.TestConfig) []CommandResult {
	c.logger.Info("starting test",
		zap.String("target", cfg.TargetURL),
		zap.Int("users", cfg.NumUsers),
		zap.Int("rampUp", cfg.RampUpSeconds),
		zap.Int("duration", cfg.DurationSeconds))
	return c.broadcast(ctx, "start", func(ctx context.Context, w types.WorkerInfo) error {
		return c.commander.Start(ctx, w.ControlURL, cfg)
	})
}

// Stop asks every worker to stop its job.
func (c *JobController) Stop(ctx context.Context) []CommandResult {
	c.logger.Info("stopping test")
	return c.broadcast(ctx, "stop", func(ctx context.Context, w types.WorkerInfo) error {
		return c.commander.Stop(ctx, w.ControlURL)
	})
}

// Reset clears the aggregated statistics, then asks every worker to reset.
// The statistics are cleared even if no worker can be reached.
func (c *JobController) Reset(ctx context.Context) []CommandResult {
	c.aggregator.Reset()
	c.logger.Info("statistics reset")
	return c.broadcast(ctx, "reset", func(ctx context.Context, w types.WorkerInfo) error {
		return c.commander.Reset(ctx, w.ControlURL)
	})
}

// Progress returns a snapshot of the aggregated statistics.
func (c *JobController) Progress() types.Progress {
	return c.aggregator.Snapshot()
}

// broadcast runs send against every worker concurrently. Results keep the
// registry order.
func (c *JobController) broadcast(ctx context.Context, command string, send func(context.Context, types.WorkerInfo) error) []CommandResult {
	workers := c.registry.List()
	results := make([]CommandResult, len(workers))

	var wg sync.WaitGroup
	for i, w := range workers {
		wg.Add(1)
		go func(i int, w types.WorkerInfo) {
			defer wg.Done()
			err := send(ctx, w)
			if err != nil {
				c.logger.Warn("worker command failed",
					zap.String("command", command),
					zap.String("worker", w.ID),
					zap.String("url", w.ControlURL),
					zap.Error(err))
			}
			results[i] = CommandResult{WorkerID: w.ID, Err: err}
		}(i, w)
	}
	wg.Wait()

	return results
}
