package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"yqhp/loadtest/pkg/types"
)

func TestQueue_DrainEmpty(t *testing.T) {
	q := NewQueue()
	assert.Nil(t, q.Drain())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PushDrain(t *testing.T) {
	q := NewQueue()
	q.Push(types.Metric{RequestPath: "/a", ResponseTime: 10, ErrorCode: types.NoError})
	q.PushBatch([]types.Metric{{RequestPath: "/b"}, {RequestPath: "/c"}})
	q.PushBatch(nil)

	assert.Equal(t, 3, q.Len())
	drained := q.Drain()
	assert.Len(t, drained, 3)
	assert.Equal(t, "/a", drained[0].RequestPath)
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Drain())
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue()
	q.Push(types.Metric{RequestPath: "/a"})
	q.Clear()
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	var drained []types.Metric

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(types.Metric{RequestPath: "/x"})
			}
		}()
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-done:
				return
			default:
				drained = append(drained, q.Drain()...)
			}
		}
	}()

	wg.Wait()
	close(done)
	<-finished
	assert.Equal(t, 1000, len(drained)+q.Len())
}
