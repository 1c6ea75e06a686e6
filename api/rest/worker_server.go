package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"yqhp/loadtest/api/rest/client"
	"yqhp/loadtest/internal/worker"
	"yqhp/loadtest/pkg/types"
)

// WorkerNode 工作节点 API 所需的操作，由 worker.Node 实现。
type WorkerNode interface {
	Start(cfg types.TestConfig) error
	Stop()
	Reset()
	Status() types.WorkerState
	Stats() (worker.JobStats, error)
}

// WorkerStatsPath 当前任务执行池统计的路径。
const WorkerStatsPath = "/api/stats"

// WorkerServer 工作节点的状态与控制接口。
type WorkerServer struct {
	server
	node WorkerNode
}

// NewWorkerServer 创建工作节点 API 服务。
func NewWorkerServer(node WorkerNode, config *Config, l *zap.Logger) *WorkerServer {
	s := &WorkerServer{
		server: newServer("Load Test Worker", config, l),
		node:   node,
	}
	s.setupRoutes()
	return s
}

func (s *WorkerServer) setupRoutes() {
	s.app.Get(types.WorkerStatusPath, s.getStatus)
	s.app.Get(WorkerStatsPath, s.getStats)

	cmd := s.app.Group(types.WorkerControlPath)
	cmd.Post("/"+client.CommandStart, s.start)
	cmd.Post("/"+client.CommandStop, s.stop)
	cmd.Post("/"+client.CommandReset, s.reset)
}

// getStatus 以纯文本返回当前状态。
func (s *WorkerServer) getStatus(c *fiber.Ctx) error {
	return c.SendString(string(s.node.Status()))
}

// getStats 返回当前任务的虚拟用户统计，没有任务时返回 404。
func (s *WorkerServer) getStats(c *fiber.Ctx) error {
	stats, err := s.node.Stats()
	if errors.Is(err, worker.ErrNoJob) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (s *WorkerServer) start(c *fiber.Ctx) error {
	var cfg types.TestConfig
	if err := c.BodyParser(&cfg); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid test configuration: "+err.Error())
	}
	if err := s.node.Start(cfg); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendString("ok")
}

func (s *WorkerServer) stop(c *fiber.Ctx) error {
	s.node.Stop()
	return c.SendString("ok")
}

func (s *WorkerServer) reset(c *fiber.Ctx) error {
	s.node.Reset()
	return c.SendString("ok")
}
