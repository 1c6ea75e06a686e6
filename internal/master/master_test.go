package master

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"yqhp/loadtest/pkg/types"
)

func newTestMaster(cmd WorkerCommander) *Master {
	return New(&Config{
		HealthInterval:    10 * time.Millisecond,
		AggregateInterval: 10 * time.Millisecond,
		RequestTimeout:    time.Second,
	}, cmd, zap.NewNop())
}

func TestNew_Defaults(t *testing.T) {
	m := New(nil, nil, zap.NewNop())
	assert.NotNil(t, m.Registry())
	assert.NotNil(t, m.Aggregator())
	assert.NotNil(t, m.Controller())
	assert.NotNil(t, m.HealthMonitor())
	assert.False(t, m.IsRunning())
}

func TestMaster_StartStop(t *testing.T) {
	m := newTestMaster(newFakeCommander())
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	assert.True(t, m.IsRunning())
	assert.ErrorIs(t, m.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, m.Stop(ctx))
	assert.False(t, m.IsRunning())
	assert.ErrorIs(t, m.Stop(ctx), ErrNotStarted)

	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Stop(ctx))
}

func TestMaster_BackgroundLoops(t *testing.T) {
	cmd := newFakeCommander()
	m := newTestMaster(cmd)

	w, err := m.Registry().Register(types.WorkerRegistration{Base: "http://w1:1"})
	require.NoError(t, err)
	cmd.statuses[w.StatusURL] = "running"

	require.NoError(t, m.Start(context.Background()))
	defer func() { _ = m.Stop(context.Background()) }()

	m.Aggregator().Ingest([]types.Metric{okMetric("/api/public/x", 25)})

	assert.Eventually(t, func() bool {
		return m.Controller().Progress().Public.RequestsSent == 1
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		got, _ := m.Registry().Get(w.ID)
		return got.Status == "running"
	}, time.Second, 5*time.Millisecond)
}

func TestMaster_LoopsFollowStartContext(t *testing.T) {
	cmd := newFakeCommander()
	m := newTestMaster(cmd)
	_, err := m.Registry().Register(types.WorkerRegistration{Base: "http://w1:1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx))
	assert.Eventually(t, func() bool { return len(cmd.Calls()) > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(30 * time.Millisecond)
	polled := len(cmd.Calls())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, polled, len(cmd.Calls()), "no polling after the start context is cancelled")

	m.Aggregator().Ingest([]types.Metric{okMetric("/api/public/x", 25)})
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, m.Aggregator().Pending(), "aggregation loop stopped with the context")

	require.NoError(t, m.Stop(context.Background()))
}
