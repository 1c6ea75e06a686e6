package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"yqhp/loadtest/pkg/logger"
)

// VUFunc 运行一个虚拟用户，直到 ctx 被取消。
type VUFunc func(ctx context.Context, id int)

// VUPool 有界执行池，每个槽位承载一个虚拟用户 goroutine。
// 池满或已关闭时新的虚拟用户会被丢弃。
type VUPool struct {
	capacity int
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *zap.Logger

	mu      sync.Mutex
	active  int
	started int
	dropped int
	closed  bool
}

// NewVUPool 创建容量为 capacity 的执行池，parent 取消时所有虚拟用户随之取消。
func NewVUPool(parent context.Context, capacity int, l *zap.Logger) *VUPool {
	if capacity < 1 {
		capacity = 1
	}
	ctx, cancel := context.WithCancel(parent)
	return &VUPool{
		capacity: capacity,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.OrDefault(l),
	}
}

// Spawn 在空闲槽位上启动一个虚拟用户。没有空闲槽位或池已关闭时返回 false。
func (p *VUPool) Spawn(id int, fn VUFunc) bool {
	p.mu.Lock()
	if p.closed || p.active >= p.capacity || p.ctx.Err() != nil {
		p.dropped++
		p.mu.Unlock()
		return false
	}
	p.active++
	p.started++
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("虚拟用户异常退出", zap.Int("vu", id), zap.Any("panic", r))
			}
			p.mu.Lock()
			p.active--
			p.mu.Unlock()
			p.wg.Done()
		}()
		fn(p.ctx, id)
	}()
	return true
}

// Shutdown 关闭执行池并取消所有虚拟用户，不等待其退出。
func (p *VUPool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
}

// Wait 等待所有虚拟用户退出。
func (p *VUPool) Wait() {
	p.wg.Wait()
}

// WaitTimeout 最多等待 timeout，返回是否全部退出。
func (p *VUPool) WaitTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Capacity 返回槽位数。
func (p *VUPool) Capacity() int {
	return p.capacity
}

// Active 返回正在运行的虚拟用户数。
func (p *VUPool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Started 返回累计启动的虚拟用户数。
func (p *VUPool) Started() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Dropped 返回因池满或已关闭而被丢弃的启动请求数。
func (p *VUPool) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}
