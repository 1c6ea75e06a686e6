package rest

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"yqhp/loadtest/internal/master"
	"yqhp/loadtest/pkg/types"
)

// MasterServer exposes the master's control, registration and progress API.
type MasterServer struct {
	server
	master *master.Master
}

// NewMasterServer creates the master API server.
func NewMasterServer(m *master.Master, config *Config, l *zap.Logger) *MasterServer {
	s := &MasterServer{
		server: newServer("Load Test Master", config, l),
		master: m,
	}
	s.setupRoutes()
	return s
}

func (s *MasterServer) setupRoutes() {
	s.app.Get("/health", s.healthCheck)

	api := s.app.Group("/api")

	// Test control
	api.Post("/start", s.startTest)
	api.Post("/stop", s.stopTest)
	api.Post("/reset", s.resetTest)
	api.Get("/progress", s.getProgress)
	api.Get("/progress/latency", s.getLatency)

	// Workers
	api.Get("/workers", s.listWorkers)
	api.Get("/workers/status", s.workerStatuses)
	api.Post("/workers", s.registerWorker)
	api.Post("/workers/metrics", s.receiveMetrics)
}

func (s *MasterServer) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Workers:   s.master.Registry().Count(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *MasterServer) startTest(c *fiber.Ctx) error {
	var cfg types.TestConfig
	if err := c.BodyParser(&cfg); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid test configuration: "+err.Error())
	}
	results := s.master.Controller().Start(c.UserContext(), cfg)
	return c.JSON(newCommandResponse("start", results))
}

func (s *MasterServer) stopTest(c *fiber.Ctx) error {
	results := s.master.Controller().Stop(c.UserContext())
	return c.JSON(newCommandResponse("stop", results))
}

func (s *MasterServer) resetTest(c *fiber.Ctx) error {
	results := s.master.Controller().Reset(c.UserContext())
	return c.JSON(newCommandResponse("reset", results))
}

func (s *MasterServer) getProgress(c *fiber.Ctx) error {
	return c.JSON(s.master.Controller().Progress())
}

func (s *MasterServer) getLatency(c *fiber.Ctx) error {
	return c.JSON(s.master.Aggregator().Latency())
}

func (s *MasterServer) listWorkers(c *fiber.Ctx) error {
	return c.JSON(s.master.Registry().List())
}

// workerStatuses returns the raw status strings in registration order.
func (s *MasterServer) workerStatuses(c *fiber.Ctx) error {
	workers := s.master.Registry().List()
	statuses := make([]string, 0, len(workers))
	for _, w := range workers {
		statuses = append(statuses, w.Status)
	}
	return c.JSON(statuses)
}

func (s *MasterServer) registerWorker(c *fiber.Ctx) error {
	var reg types.WorkerRegistration
	if err := c.BodyParser(&reg); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid registration: "+err.Error())
	}
	info, err := s.master.Registry().Register(reg)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.logger.Info("worker registered",
		zap.String("id", info.ID),
		zap.String("base", info.BaseURL))
	return c.JSON(info)
}

func (s *MasterServer) receiveMetrics(c *fiber.Ctx) error {
	var batch []types.Metric
	if err := c.BodyParser(&batch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid metrics batch: "+err.Error())
	}
	s.master.Aggregator().Ingest(batch)
	return c.SendStatus(fiber.StatusOK)
}
