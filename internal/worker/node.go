package worker

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"yqhp/loadtest/api/rest/client"
	"yqhp/loadtest/internal/target"
	"yqhp/loadtest/pkg/logger"
	"yqhp/loadtest/pkg/metrics"
	"yqhp/loadtest/pkg/types"
)

// MasterAPI 工作节点调用主节点的接口，由 client.MasterClient 实现。
type MasterAPI interface {
	MetricsPusher
	Register(ctx context.Context, reg types.WorkerRegistration) error
}

// NodeConfig 工作节点配置。
type NodeConfig struct {
	// AdvertiseURL 注册给主节点的本机基础地址。
	AdvertiseURL string

	// MasterURL 主节点基础地址。
	MasterURL string

	// RequestTimeout 调用主节点的超时时间。
	RequestTimeout time.Duration

	// FlushInterval 指标推送周期。
	FlushInterval time.Duration

	// Scheduler 调度器时间参数。
	Scheduler *Options

	// Target 被测应用客户端配置。
	Target *target.Config
}

// DefaultNodeConfig 返回默认节点配置。
func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		AdvertiseURL:   "http://localhost:8081",
		MasterURL:      "http://localhost:8080",
		RequestTimeout: client.DefaultRequestTimeout,
		FlushInterval:  time.Second,
		Scheduler:      DefaultOptions(),
		Target:         target.DefaultConfig(),
	}
}

// Node 工作节点，持有本地指标队列、调度器与指标中继。
type Node struct {
	config    *NodeConfig
	queue     *metrics.Queue
	master    MasterAPI
	scheduler *Scheduler
	logger    *zap.Logger
}

// NewNode 创建工作节点。master 为 nil 时使用 HTTP 客户端，workload 为 nil 时对被测应用执行虚拟用户脚本。
func NewNode(config *NodeConfig, master MasterAPI, workload Workload, l *zap.Logger) *Node {
	if config == nil {
		config = DefaultNodeConfig()
	}
	l = logger.OrDefault(l).Named("worker")
	if master == nil {
		master = client.NewMasterClient(config.MasterURL, config.RequestTimeout)
	}

	queue := metrics.NewQueue()
	if workload == nil {
		workload = NewTargetWorkload(config.Target, queue, l)
	}
	relay := NewRelay(queue, master, config.FlushInterval, l)

	return &Node{
		config:    config,
		queue:     queue,
		master:    master,
		scheduler: NewScheduler(workload, relay, config.Scheduler, l),
		logger:    l,
	}
}

// Register 向主节点注册本节点。失败只记录日志，节点继续提供服务。
func (n *Node) Register(ctx context.Context) error {
	reg := types.WorkerRegistration{
		Base:    strings.TrimRight(n.config.AdvertiseURL, "/"),
		Control: types.WorkerControlPath,
		Status:  types.WorkerStatusPath,
	}
	if err := n.master.Register(ctx, reg); err != nil {
		n.logger.Error("注册到主节点失败", zap.String("master", n.config.MasterURL), zap.Error(err))
		return err
	}
	n.logger.Info("已注册到主节点", zap.String("master", n.config.MasterURL), zap.String("base", reg.Base))
	return nil
}

// Start 启动任务，正在运行的任务会被替换。
func (n *Node) Start(cfg types.TestConfig) error {
	return n.scheduler.Start(cfg)
}

// Stop 停止当前任务，回到 ready。
func (n *Node) Stop() {
	n.scheduler.Stop()
}

// Reset 停止当前任务并清空本地指标队列。
func (n *Node) Reset() {
	n.scheduler.Stop()
	n.queue.Clear()
}

// Status 返回当前任务状态。
func (n *Node) Status() types.WorkerState {
	return n.scheduler.State()
}

// Stats 返回当前任务的执行池统计。
func (n *Node) Stats() (JobStats, error) {
	return n.scheduler.Stats()
}

// Queue 返回本地指标队列。
func (n *Node) Queue() *metrics.Queue {
	return n.queue
}

// Shutdown 停止任务并等待全部 goroutine 退出。
func (n *Node) Shutdown(ctx context.Context) error {
	return n.scheduler.Shutdown(ctx)
}
