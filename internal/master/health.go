package master

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"yqhp/loadtest/api/rest/client"
	"yqhp/loadtest/pkg/logger"
	"yqhp/loadtest/pkg/types"
)

// HealthMonitor periodically asks every registered worker for its state and
// stores the answer in the registry.
type HealthMonitor struct {
	registry  *Registry
	commander WorkerCommander
	interval  time.Duration
	logger    *zap.Logger
}

// NewHealthMonitor creates a monitor polling every interval.
func NewHealthMonitor(registry *Registry, commander WorkerCommander, interval time.Duration, l *zap.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &HealthMonitor{
		registry:  registry,
		commander: commander,
		interval:  interval,
		logger:    logger.OrDefault(l).Named("health"),
	}
}

// Run polls until ctx is cancelled.
func (m *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

// CheckAll polls every worker once, concurrently, and waits for all answers.
func (m *HealthMonitor) CheckAll(ctx context.Context) {
	workers := m.registry.List()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w types.WorkerInfo) {
			defer wg.Done()
			m.check(ctx, w)
		}(w)
	}
	wg.Wait()
}

func (m *HealthMonitor) check(ctx context.Context, w types.WorkerInfo) {
	body, err := m.commander.Status(ctx, w.StatusURL)
	if ctx.Err() != nil {
		return
	}
	status := classifyStatus(body, err)
	if err != nil && status != w.Status {
		m.logger.Warn("worker status query failed",
			zap.String("worker", w.ID),
			zap.String("url", w.StatusURL),
			zap.String("status", status),
			zap.Error(err))
	}
	m.registry.UpdateStatus(w.ID, w.RegisteredAt, status)
}

// classifyStatus maps the outcome of a status query onto the stored status:
// an unreachable worker is offline, any other failure is error, and a
// successful answer is kept as reported.
func classifyStatus(body string, err error) string {
	switch {
	case err == nil:
		return strings.Trim(strings.TrimSpace(body), `"`)
	case client.IsTransportError(err):
		return types.StatusOffline
	default:
		return types.StatusError
	}
}
