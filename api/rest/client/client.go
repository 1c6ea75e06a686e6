// Package client implements the outbound HTTP calls between master and workers
// using the Fiber agent.
package client

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
)

// DefaultRequestTimeout bounds every call when no timeout is configured.
const DefaultRequestTimeout = 5 * time.Second

// newFiberClient returns a Fiber client that encodes bodies with sonic.
func newFiberClient() *fiber.Client {
	return &fiber.Client{
		UserAgent:   "loadtest",
		JSONEncoder: sonic.Marshal,
		JSONDecoder: sonic.Unmarshal,
	}
}

// effectiveTimeout shortens timeout to the context deadline when that comes first.
func effectiveTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			return left
		}
	}
	return timeout
}

// send executes the agent and maps the outcome onto TransportError or
// StatusError. Only 200 counts as success.
func send(ctx context.Context, agent *fiber.Agent, url string, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(agent)
		return nil, &TransportError{URL: url, Err: err}
	}
	agent.Timeout(effectiveTimeout(ctx, timeout))

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, &TransportError{URL: url, Err: errors.Join(errs...)}
	}
	if code != fiber.StatusOK {
		return body, &StatusError{URL: url, Code: code, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// joinURL appends a path to a base URL without doubling the separator.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
