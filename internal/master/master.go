package master

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"yqhp/loadtest/api/rest/client"
	"yqhp/loadtest/pkg/logger"
)

var (
	// ErrAlreadyStarted is returned by Start on a running master.
	ErrAlreadyStarted = errors.New("master already started")
	// ErrNotStarted is returned by Stop on a master that is not running.
	ErrNotStarted = errors.New("master not started")
)

// Config holds the configuration for a master node.
type Config struct {
	// HealthInterval is the period of worker status polling.
	HealthInterval time.Duration

	// AggregateInterval is the period of metrics aggregation.
	AggregateInterval time.Duration

	// RequestTimeout bounds every call to a worker.
	RequestTimeout time.Duration
}

// DefaultConfig returns a default master configuration.
func DefaultConfig() *Config {
	return &Config{
		HealthInterval:    time.Second,
		AggregateInterval: time.Second,
		RequestTimeout:    5 * time.Second,
	}
}

// Master owns the registry, health monitor, aggregator and job controller and
// runs the two background loops.
type Master struct {
	config *Config
	logger *zap.Logger

	registry   *Registry
	aggregator *Aggregator
	health     *HealthMonitor
	controller *JobController

	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// New creates a master. A nil commander means workers are reached over HTTP.
func New(config *Config, commander WorkerCommander, l *zap.Logger) *Master {
	if config == nil {
		config = DefaultConfig()
	}
	if commander == nil {
		commander = client.NewWorkerClient(config.RequestTimeout)
	}
	l = logger.OrDefault(l).Named("master")

	registry := NewRegistry()
	aggregator := NewAggregator(config.AggregateInterval, l)

	return &Master{
		config:     config,
		logger:     l,
		registry:   registry,
		aggregator: aggregator,
		health:     NewHealthMonitor(registry, commander, config.HealthInterval, l),
		controller: NewJobController(registry, commander, aggregator, l),
	}
}

// Start launches the health monitor and the aggregation loop. The loops run
// until Stop is called or ctx is cancelled.
func (m *Master) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started.Load() {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.health.Run(runCtx)
	}()
	go func() {
		defer m.wg.Done()
		m.aggregator.Run(runCtx)
	}()

	m.started.Store(true)
	m.logger.Info("master started",
		zap.Duration("healthInterval", m.config.HealthInterval),
		zap.Duration("aggregateInterval", m.config.AggregateInterval))
	return nil
}

// Stop cancels the background loops and waits for them, or for ctx.
func (m *Master) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started.Load() {
		return ErrNotStarted
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.started.Store(false)
	m.logger.Info("master stopped")
	return nil
}

// IsRunning reports whether the background loops are active.
func (m *Master) IsRunning() bool {
	return m.started.Load()
}

// Registry returns the worker registry.
func (m *Master) Registry() *Registry {
	return m.registry
}

// Aggregator returns the metrics aggregator.
func (m *Master) Aggregator() *Aggregator {
	return m.aggregator
}

// Controller returns the job controller.
func (m *Master) Controller() *JobController {
	return m.controller
}

// HealthMonitor returns the worker health monitor.
func (m *Master) HealthMonitor() *HealthMonitor {
	return m.health
}
