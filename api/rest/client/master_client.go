package client

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"yqhp/loadtest/pkg/types"
)

// Master API paths.
const (
	RegisterPath = "/api/workers"
	MetricsPath  = "/api/workers/metrics"
)

// MasterClient is used by a worker to register itself and ship metrics.
type MasterClient struct {
	baseURL string
	client  *fiber.Client
	timeout time.Duration
}

// NewMasterClient creates a client for the master at baseURL.
func NewMasterClient(baseURL string, timeout time.Duration) *MasterClient {
	return &MasterClient{
		baseURL: baseURL,
		client:  newFiberClient(),
		timeout: timeout,
	}
}

// Register announces the worker to the master.
func (c *MasterClient) Register(ctx context.Context, reg types.WorkerRegistration) error {
	url := joinURL(c.baseURL, RegisterPath)
	_, err := send(ctx, c.client.Post(url).JSON(reg), url, c.timeout)
	return err
}

// PushMetrics posts one batch of metrics. An empty batch is not sent.
func (c *MasterClient) PushMetrics(ctx context.Context, batch []types.Metric) error {
	if len(batch) == 0 {
		return nil
	}
	url := joinURL(c.baseURL, MetricsPath)
	_, err := send(ctx, c.client.Post(url).JSON(batch), url, c.timeout)
	return err
}
