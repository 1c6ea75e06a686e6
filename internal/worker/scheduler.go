package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"yqhp/loadtest/pkg/logger"
	"yqhp/loadtest/pkg/types"
)

// Options 调度器的时间参数。
type Options struct {
	// RampInitialDelay 任务开始到第一次爬坡的延迟。
	RampInitialDelay time.Duration

	// RampInterval 爬坡周期。
	RampInterval time.Duration

	// TimeUnit 配置中“秒”对应的时长，测试时可缩短。
	TimeUnit time.Duration

	// TeardownTimeout 新任务替换旧任务时等待旧虚拟用户退出的最长时间。
	TeardownTimeout time.Duration
}

// DefaultOptions 返回默认时间参数。
func DefaultOptions() *Options {
	return &Options{
		RampInitialDelay: 500 * time.Millisecond,
		RampInterval:     time.Second,
		TimeUnit:         time.Second,
		TeardownTimeout:  5 * time.Second,
	}
}

// TransitionFunc 在状态变化时被调用。
type TransitionFunc func(from, to types.WorkerState)

// job 一次任务的全部资源，ctx 取消即回收爬坡、截止、推送与执行池。
type job struct {
	cfg      types.TestConfig
	rampRate int
	window   time.Duration
	deadline time.Duration
	start    time.Time
	spawn    VUFunc

	ctx    context.Context
	cancel context.CancelFunc
	pool   *VUPool
	wg     sync.WaitGroup
	nextID atomic.Int64
}

// Scheduler 工作节点的任务状态机：ready → ramping_up → running → completed，
// stop/reset 从任意状态回到 ready。
type Scheduler struct {
	workload Workload
	relay    *Relay
	opts     *Options
	logger   *zap.Logger
	now      func() time.Time

	// mu 串行化 start/stop/reset 命令
	mu      sync.Mutex
	current *job

	// stateMu 保护状态与当前任务指针，任务 goroutine 只获取它
	stateMu      sync.Mutex
	state        types.WorkerState
	active       *job
	onTransition TransitionFunc
}

// NewScheduler 创建调度器。relay 为 nil 时不推送指标。
func NewScheduler(workload Workload, relay *Relay, opts *Options, l *zap.Logger) *Scheduler {
	if opts == nil {
		opts = DefaultOptions()
	}
	defaults := DefaultOptions()
	if opts.RampInterval <= 0 {
		opts.RampInterval = defaults.RampInterval
	}
	if opts.TimeUnit <= 0 {
		opts.TimeUnit = defaults.TimeUnit
	}
	if opts.RampInitialDelay < 0 {
		opts.RampInitialDelay = 0
	}
	if opts.TeardownTimeout <= 0 {
		opts.TeardownTimeout = defaults.TeardownTimeout
	}
	return &Scheduler{
		workload: workload,
		relay:    relay,
		opts:     opts,
		logger:   logger.OrDefault(l).Named("scheduler"),
		now:      time.Now,
		state:    types.WorkerStateReady,
	}
}

// OnTransition 注册状态变化回调，需在 Start 之前调用。
func (s *Scheduler) OnTransition(fn TransitionFunc) {
	s.stateMu.Lock()
	s.onTransition = fn
	s.stateMu.Unlock()
}

// State 返回当前状态。
func (s *Scheduler) State() types.WorkerState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Start 启动新任务。已有任务时先完整回收旧任务再启动。
// 配置会被修正到可用范围；被测地址不可用时进入 error 状态并返回错误。
func (s *Scheduler) Start(cfg types.TestConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.logger.Info("替换正在运行的任务")
		s.teardownLocked(true)
	}

	cfg = cfg.Normalize()
	spawn, err := s.workload.Prepare(cfg)
	if err != nil {
		s.setState(nil, types.WorkerStateError)
		s.logger.Error("任务启动失败", zap.String("target", cfg.TargetURL), zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		cfg:      cfg,
		rampRate: cfg.RampRate(),
		window:   cfg.RampUpWindow(s.opts.TimeUnit),
		deadline: cfg.Deadline(s.opts.TimeUnit),
		start:    s.now(),
		spawn:    spawn,
		ctx:      ctx,
		cancel:   cancel,
	}
	j.pool = NewVUPool(ctx, cfg.PoolSize(), s.logger)

	s.current = j
	s.setState(j, types.WorkerStateRampingUp)

	j.wg.Add(2)
	go s.runRamp(j)
	go s.runDeadline(j)
	if s.relay != nil {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			s.relay.Run(ctx)
		}()
	}

	s.logger.Info("任务开始",
		zap.String("target", cfg.TargetURL),
		zap.Int("users", cfg.NumUsers),
		zap.Int("rampRate", j.rampRate),
		zap.Duration("rampUp", j.window),
		zap.Duration("deadline", j.deadline))
	return nil
}

// Stop 取消当前任务并回到 ready。没有任务时不做任何事。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.teardownLocked(false)
		s.logger.Info("任务已停止")
	}
	s.setState(nil, types.WorkerStateReady)
}

// teardownLocked 取消当前任务。wait 为 true 时等待其全部 goroutine 退出，
// 虚拟用户最多等待 TeardownTimeout。
func (s *Scheduler) teardownLocked(wait bool) {
	j := s.current
	s.current = nil

	s.stateMu.Lock()
	s.active = nil
	s.stateMu.Unlock()

	j.pool.Shutdown()
	j.cancel()
	if !wait {
		return
	}
	j.wg.Wait()
	if !j.pool.WaitTimeout(s.opts.TeardownTimeout) {
		s.logger.Warn("旧任务的虚拟用户仍有请求未返回", zap.Int("active", j.pool.Active()))
	}
}

// runRamp 在初始延迟后按周期爬坡，直到爬坡窗口结束。
func (s *Scheduler) runRamp(j *job) {
	defer j.wg.Done()

	timer := time.NewTimer(s.opts.RampInitialDelay)
	defer timer.Stop()
	select {
	case <-j.ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(s.opts.RampInterval)
	defer ticker.Stop()
	for {
		if s.rampTick(j, s.now()) {
			return
		}
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// rampTick 执行一次爬坡。窗口已结束时转为 running 并返回 true，
// 否则启动 rampRate 个虚拟用户，超出执行池容量的部分被丢弃。
func (s *Scheduler) rampTick(j *job, now time.Time) bool {
	if now.Sub(j.start) >= j.window {
		if s.transition(j, types.WorkerStateRampingUp, types.WorkerStateRunning) {
			s.logger.Info("爬坡结束", zap.Int("vus", j.pool.Active()))
		}
		return true
	}

	for i := 0; i < j.rampRate; i++ {
		if j.ctx.Err() != nil {
			return true
		}
		id := int(j.nextID.Add(1))
		if !j.pool.Spawn(id, j.spawn) {
			s.logger.Debug("执行池已满，丢弃虚拟用户", zap.Int("vu", id))
		}
	}
	return false
}

// runDeadline 在截止时间取消整个任务。
func (s *Scheduler) runDeadline(j *job) {
	defer j.wg.Done()

	timer := time.NewTimer(j.deadline)
	defer timer.Stop()
	select {
	case <-j.ctx.Done():
	case <-timer.C:
		s.complete(j)
	}
}

// complete 立即取消全部虚拟用户与指标推送，ramping_up 或 running 转为 completed。
func (s *Scheduler) complete(j *job) {
	j.pool.Shutdown()
	j.cancel()

	if s.transition(j, types.WorkerStateRunning, types.WorkerStateCompleted) ||
		s.transition(j, types.WorkerStateRampingUp, types.WorkerStateCompleted) {
		s.logger.Info("任务完成", zap.Int("vus", j.pool.Started()))
	}
}

// transition 仅当 j 仍是当前任务且状态为 from 时转为 to。
func (s *Scheduler) transition(j *job, from, to types.WorkerState) bool {
	s.stateMu.Lock()
	if s.active != j || s.state != from {
		s.stateMu.Unlock()
		return false
	}
	s.state = to
	fn := s.onTransition
	s.stateMu.Unlock()

	if fn != nil {
		fn(from, to)
	}
	return true
}

// setState 无条件设置状态并把 j 记为当前任务。
func (s *Scheduler) setState(j *job, to types.WorkerState) {
	s.stateMu.Lock()
	from := s.state
	s.state = to
	s.active = j
	fn := s.onTransition
	s.stateMu.Unlock()

	if fn != nil && from != to {
		fn(from, to)
	}
}

// Wait 等待当前任务的计时与推送 goroutine 退出，即任务完成或被停止。
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	j := s.current
	s.mu.Unlock()
	if j == nil {
		return nil
	}
	return waitJob(ctx, j)
}

// Shutdown 停止当前任务并等待其 goroutine 与虚拟用户退出。
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	j := s.current
	if j != nil {
		s.teardownLocked(false)
	}
	s.setState(nil, types.WorkerStateReady)
	s.mu.Unlock()

	if j == nil {
		return nil
	}
	if err := waitJob(ctx, j); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if !j.pool.WaitTimeout(time.Until(deadline)) {
			return context.DeadlineExceeded
		}
		return nil
	}
	j.pool.Wait()
	return nil
}

func waitJob(ctx context.Context, j *job) error {
	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// JobStats 当前任务的执行池统计。
type JobStats struct {
	Active  int `json:"active"`
	Started int `json:"started"`
	Dropped int `json:"dropped"`
}

// ErrNoJob 表示当前没有任务。
var ErrNoJob = errors.New("no job")

// Stats 返回当前任务的执行池统计。
func (s *Scheduler) Stats() (JobStats, error) {
	s.mu.Lock()
	j := s.current
	s.mu.Unlock()
	if j == nil {
		return JobStats{}, ErrNoJob
	}
	return JobStats{Active: j.pool.Active(), Started: j.pool.Started(), Dropped: j.pool.Dropped()}, nil
}
