package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"yqhp/loadtest/pkg/metrics"
	"yqhp/loadtest/pkg/types"
)

func metric(path string) types.Metric {
	return types.Metric{RequestPath: path, ResponseTime: 10, ErrorCode: types.NoError}
}

func TestRelay_FlushEmptySendsNothing(t *testing.T) {
	m := &fakeMaster{}
	r := NewRelay(metrics.NewQueue(), m, time.Second, zap.NewNop())

	assert.Equal(t, 0, r.Flush(context.Background()))
	assert.Empty(t, m.batches)
}

func TestRelay_FlushSendsBatch(t *testing.T) {
	q := metrics.NewQueue()
	m := &fakeMaster{}
	r := NewRelay(q, m, time.Second, zap.NewNop())

	q.Push(metric("/api/user/a"))
	q.Push(metric("/api/public/a"))

	assert.Equal(t, 2, r.Flush(context.Background()))
	assert.Len(t, m.batches, 1)
	assert.Equal(t, int64(2), r.Sent())
	assert.Equal(t, 0, q.Len())
}

func TestRelay_FailedPushDropsBatch(t *testing.T) {
	q := metrics.NewQueue()
	m := &fakeMaster{pushErr: errPush}
	r := NewRelay(q, m, time.Second, zap.NewNop())

	q.Push(metric("/api/user/a"))
	assert.Equal(t, 1, r.Flush(context.Background()))
	assert.Equal(t, int64(1), r.Dropped())
	assert.Equal(t, 0, q.Len(), "dropped batch is not requeued")

	m.pushErr = nil
	assert.Equal(t, 0, r.Flush(context.Background()))
	assert.Equal(t, 0, m.pushed())
}

func TestRelay_RunPushesPeriodically(t *testing.T) {
	q := metrics.NewQueue()
	m := &fakeMaster{}
	r := NewRelay(q, m, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	q.Push(metric("/api/user/a"))
	assert.Eventually(t, func() bool { return m.pushed() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
