// Package metrics provides the buffering primitives of the metrics pipeline.
package metrics

import (
	"sync"

	"yqhp/loadtest/pkg/types"
)

// Queue is an unbounded thread-safe buffer of metrics. Any number of
// goroutines may push while a single consumer periodically drains it.
type Queue struct {
	mu      sync.Mutex
	metrics []types.Metric
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends one metric.
func (q *Queue) Push(m types.Metric) {
	q.mu.Lock()
	q.metrics = append(q.metrics, m)
	q.mu.Unlock()
}

// PushBatch appends all metrics of a batch.
func (q *Queue) PushBatch(batch []types.Metric) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	q.metrics = append(q.metrics, batch...)
	q.mu.Unlock()
}

// Drain removes and returns everything buffered so far. It never blocks on
// producers for longer than a slice swap and returns nil when empty.
func (q *Queue) Drain() []types.Metric {
	q.mu.Lock()
	drained := q.metrics
	q.metrics = nil
	q.mu.Unlock()
	return drained
}

// Clear discards everything buffered.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.metrics = nil
	q.mu.Unlock()
}

// Len returns the number of buffered metrics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.metrics)
}
