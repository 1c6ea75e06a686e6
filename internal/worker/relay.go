package worker

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"yqhp/loadtest/pkg/logger"
	"yqhp/loadtest/pkg/metrics"
	"yqhp/loadtest/pkg/types"
)

// MetricsPusher 把一批指标发送给主节点，由 client.MasterClient 实现。
type MetricsPusher interface {
	PushMetrics(ctx context.Context, batch []types.Metric) error
}

// Relay 周期性地取空本地指标队列并推送给主节点。
// 推送失败时整批丢弃，不重试也不放回队列。
type Relay struct {
	queue    *metrics.Queue
	pusher   MetricsPusher
	interval time.Duration
	logger   *zap.Logger

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewRelay 创建指标中继。
func NewRelay(queue *metrics.Queue, pusher MetricsPusher, interval time.Duration, l *zap.Logger) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{
		queue:    queue,
		pusher:   pusher,
		interval: interval,
		logger:   logger.OrDefault(l).Named("relay"),
	}
}

// Run 每个周期推送一次，直到 ctx 取消。取消时不做最后一次推送。
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Flush 取空队列并推送，返回本次取出的指标数。
func (r *Relay) Flush(ctx context.Context) int {
	batch := r.queue.Drain()
	if len(batch) == 0 {
		return 0
	}

	if err := r.pusher.PushMetrics(ctx, batch); err != nil {
		r.dropped.Add(int64(len(batch)))
		r.logger.Warn("推送指标失败，丢弃本批", zap.Int("count", len(batch)), zap.Error(err))
		return len(batch)
	}
	r.sent.Add(int64(len(batch)))
	return len(batch)
}

// Sent 返回成功推送的指标总数。
func (r *Relay) Sent() int64 {
	return r.sent.Load()
}

// Dropped 返回因推送失败被丢弃的指标总数。
func (r *Relay) Dropped() int64 {
	return r.dropped.Load()
}
