package client

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"yqhp/loadtest/pkg/types"
)

// Commands accepted under a worker's control URL.
const (
	CommandStart = "start"
	CommandStop  = "stop"
	CommandReset = "reset"
)

// WorkerClient is used by the master to command workers and poll their state.
type WorkerClient struct {
	client  *fiber.Client
	timeout time.Duration
}

// NewWorkerClient creates a client whose calls time out after timeout.
func NewWorkerClient(timeout time.Duration) *WorkerClient {
	return &WorkerClient{
		client:  newFiberClient(),
		timeout: timeout,
	}
}

// Start posts the test configuration to {controlURL}/start.
func (c *WorkerClient) Start(ctx context.Context, controlURL string, cfg types.TestConfig) error {
	url := joinURL(controlURL, CommandStart)
	agent := c.client.Post(url).JSON(cfg)
	_, err := send(ctx, agent, url, c.timeout)
	return err
}

// Stop posts an empty command to {controlURL}/stop.
func (c *WorkerClient) Stop(ctx context.Context, controlURL string) error {
	return c.command(ctx, controlURL, CommandStop)
}

// Reset posts an empty command to {controlURL}/reset.
func (c *WorkerClient) Reset(ctx context.Context, controlURL string) error {
	return c.command(ctx, controlURL, CommandReset)
}

func (c *WorkerClient) command(ctx context.Context, controlURL, cmd string) error {
	url := joinURL(controlURL, cmd)
	_, err := send(ctx, c.client.Post(url), url, c.timeout)
	return err
}

// Status fetches the plain-text state from statusURL. The body is returned
// untouched.
func (c *WorkerClient) Status(ctx context.Context, statusURL string) (string, error) {
	body, err := send(ctx, c.client.Get(statusURL), statusURL, c.timeout)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
