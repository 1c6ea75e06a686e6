package master

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"

	"yqhp/loadtest/pkg/logger"
	"yqhp/loadtest/pkg/metrics"
	"yqhp/loadtest/pkg/types"
)

// Partition names the bucket a metric is aggregated into.
type Partition string

const (
	// PartitionPublic holds requests against public pages.
	PartitionPublic Partition = "public"
	// PartitionBackoffice holds every other request.
	PartitionBackoffice Partition = "backoffice"
)

// Classify returns the partition of a request path: any path containing
// "public" is public, everything else is backoffice.
func Classify(path string) Partition {
	if strings.Contains(path, string(PartitionPublic)) {
		return PartitionPublic
	}
	return PartitionBackoffice
}

// Histogram bounds, in milliseconds.
const (
	latencyLowest  = 1
	latencyHighest = int64(10 * time.Minute / time.Millisecond)
	latencySigFigs = 3
)

type partitionStats struct {
	stats   types.StatsPart
	latency *hdrhistogram.Histogram
}

func newPartitionStats() partitionStats {
	return partitionStats{latency: hdrhistogram.New(latencyLowest, latencyHighest, latencySigFigs)}
}

// update folds one batch into the running stats. The average is blended with
// the previous value as (old + batch) / 2 and truncated to whole milliseconds;
// a batch without positive response times leaves the average untouched.
func (p *partitionStats) update(batch []types.Metric) {
	if len(batch) == 0 {
		return
	}
	p.stats.RequestsSent += int64(len(batch))

	var sum, timed int64
	for _, m := range batch {
		if m.Failed() {
			p.stats.RequestsFailed++
		}
		if m.ResponseTime > 0 {
			sum += m.ResponseTime
			timed++
			_ = p.latency.RecordValue(min(m.ResponseTime, latencyHighest))
		}
	}
	if timed == 0 {
		return
	}

	next := float64(sum) / float64(timed)
	if p.stats.AverageResponseTime != nil {
		next = (float64(*p.stats.AverageResponseTime) + next) / 2
	}
	avg := int64(next)
	p.stats.AverageResponseTime = &avg
}

func (p *partitionStats) reset() {
	p.stats = types.StatsPart{}
	p.latency.Reset()
}

func (p *partitionStats) summary() types.LatencySummary {
	h := p.latency
	if h.TotalCount() == 0 {
		return types.LatencySummary{}
	}
	return types.LatencySummary{
		Count: h.TotalCount(),
		Min:   h.Min(),
		Max:   h.Max(),
		Mean:  h.Mean(),
		P50:   h.ValueAtQuantile(50),
		P90:   h.ValueAtQuantile(90),
		P95:   h.ValueAtQuantile(95),
		P99:   h.ValueAtQuantile(99),
	}
}

// Aggregator buffers metrics pushed by workers and periodically folds them
// into the public and backoffice statistics. Both partitions share one lock
// so snapshots and resets see them consistently.
type Aggregator struct {
	inbound  *metrics.Queue
	interval time.Duration
	logger   *zap.Logger

	mu         sync.Mutex
	public     partitionStats
	backoffice partitionStats
}

// NewAggregator creates an aggregator that flushes every interval.
func NewAggregator(interval time.Duration, l *zap.Logger) *Aggregator {
	if interval <= 0 {
		interval = time.Second
	}
	return &Aggregator{
		inbound:    metrics.NewQueue(),
		interval:   interval,
		logger:     logger.OrDefault(l).Named("aggregator"),
		public:     newPartitionStats(),
		backoffice: newPartitionStats(),
	}
}

// Ingest enqueues a batch received from a worker. It never blocks on aggregation.
func (a *Aggregator) Ingest(batch []types.Metric) {
	a.inbound.PushBatch(batch)
}

// Pending returns the number of metrics waiting for the next flush.
func (a *Aggregator) Pending() int {
	return a.inbound.Len()
}

// Run flushes on every tick until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Flush()
		}
	}
}

// Flush drains the inbound buffer and applies it. It returns the number of
// metrics processed.
func (a *Aggregator) Flush() int {
	received := a.inbound.Drain()
	if len(received) == 0 {
		return 0
	}

	var public, backoffice []types.Metric
	for _, m := range received {
		if Classify(m.RequestPath) == PartitionPublic {
			public = append(public, m)
		} else {
			backoffice = append(backoffice, m)
		}
	}

	a.mu.Lock()
	a.public.update(public)
	a.backoffice.update(backoffice)
	a.mu.Unlock()

	a.logger.Debug("metrics aggregated",
		zap.Int("public", len(public)),
		zap.Int("backoffice", len(backoffice)))
	return len(received)
}

// Snapshot returns a copy of both partitions taken under the lock.
func (a *Aggregator) Snapshot() types.Progress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return types.Progress{
		Public:     a.public.stats.Clone(),
		Backoffice: a.backoffice.stats.Clone(),
	}
}

// Latency returns histogram percentiles for both partitions.
func (a *Aggregator) Latency() types.LatencyReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return types.LatencyReport{
		Public:     a.public.summary(),
		Backoffice: a.backoffice.summary(),
	}
}

// Reset empties both partitions. Metrics already waiting in the inbound
// buffer are kept and applied by the next flush.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.public.reset()
	a.backoffice.reset()
	a.mu.Unlock()
}
