package rest

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"yqhp/loadtest/internal/master"
	"yqhp/loadtest/pkg/types"
)

var errUnreachable = errors.New("connection refused")

// mockCommander implements master.WorkerCommander for testing.
type mockCommander struct {
	mu      sync.Mutex
	configs []types.TestConfig
	calls   []string
	fail    map[string]error
}

func newMockCommander() *mockCommander {
	return &mockCommander{fail: make(map[string]error)}
}

func (m *mockCommander) record(call, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call+" "+url)
	return m.fail[url]
}

func (m *mockCommander) Start(_ context.Context, controlURL string, cfg types.TestConfig) error {
	m.mu.Lock()
	m.configs = append(m.configs, cfg)
	m.mu.Unlock()
	return m.record("start", controlURL)
}

func (m *mockCommander) Stop(_ context.Context, controlURL string) error {
	return m.record("stop", controlURL)
}

func (m *mockCommander) Reset(_ context.Context, controlURL string) error {
	return m.record("reset", controlURL)
}

func (m *mockCommander) Status(_ context.Context, statusURL string) (string, error) {
	return "ready", m.record("status", statusURL)
}

func newTestMasterServer(t *testing.T) (*MasterServer, *master.Master, *mockCommander) {
	t.Helper()
	cmd := newMockCommander()
	m := master.New(master.DefaultConfig(), cmd, zap.NewNop())
	return NewMasterServer(m, nil, zap.NewNop()), m, cmd
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, sonic.UnmarshalString(body, &v))
	return v
}

func TestMasterServer_HealthCheck(t *testing.T) {
	s, _, _ := newTestMasterServer(t)

	code, body := doRequest(t, s.App(), "GET", "/health", "")
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "healthy", decode[HealthResponse](t, body).Status)
}

func TestMasterServer_RegisterAndList(t *testing.T) {
	s, m, _ := newTestMasterServer(t)

	code, body := doRequest(t, s.App(), "POST", "/api/workers",
		`{"base":"http://w1:8081","control":"/api/cmd","status":"/api/status"}`)
	require.Equal(t, fiber.StatusOK, code)
	info := decode[types.WorkerInfo](t, body)
	assert.Equal(t, master.WorkerID("http://w1:8081"), info.ID)
	assert.Equal(t, "http://w1:8081/api/cmd", info.ControlURL)
	assert.Equal(t, "ready", info.Status)
	assert.Equal(t, 1, m.Registry().Count())

	code, body = doRequest(t, s.App(), "GET", "/api/workers", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, decode[[]types.WorkerInfo](t, body), 1)

	code, body = doRequest(t, s.App(), "GET", "/api/workers/status", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, []string{"ready"}, decode[[]string](t, body))
}

func TestMasterServer_RegisterRejectsBadBody(t *testing.T) {
	s, _, _ := newTestMasterServer(t)

	code, _ := doRequest(t, s.App(), "POST", "/api/workers", `{"base":`)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body := doRequest(t, s.App(), "POST", "/api/workers", `{"base":""}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "error_400", decode[ErrorResponse](t, body).Error)
}

func TestMasterServer_StartBroadcasts(t *testing.T) {
	s, m, cmd := newTestMasterServer(t)
	ok, _ := m.Registry().Register(types.WorkerRegistration{Base: "http://ok:1"})
	down, _ := m.Registry().Register(types.WorkerRegistration{Base: "http://down:1"})
	cmd.fail[down.ControlURL] = errUnreachable

	code, body := doRequest(t, s.App(), "POST", "/api/start",
		`{"targetUrl":"http://target:3000","durationSeconds":60,"numUsers":10,"rampUpSeconds":5}`)
	require.Equal(t, fiber.StatusOK, code, "partial failure still answers 200")

	resp := decode[CommandResponse](t, body)
	assert.Equal(t, "start", resp.Command)
	assert.Equal(t, 1, resp.Delivered)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Workers, 2)
	assert.Equal(t, ok.ID, resp.Workers[0].WorkerID)
	assert.True(t, resp.Workers[0].OK)
	assert.False(t, resp.Workers[1].OK)
	assert.Contains(t, resp.Workers[1].Error, "connection refused")

	require.Len(t, cmd.configs, 2)
	assert.Equal(t, types.TestConfig{
		TargetURL: "http://target:3000", DurationSeconds: 60, NumUsers: 10, RampUpSeconds: 5,
	}, cmd.configs[0])
}

func TestMasterServer_StartRejectsBadBody(t *testing.T) {
	s, _, cmd := newTestMasterServer(t)

	code, _ := doRequest(t, s.App(), "POST", "/api/start", `not json`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Empty(t, cmd.calls)
}

func TestMasterServer_StopAndResetWithoutWorkers(t *testing.T) {
	s, _, _ := newTestMasterServer(t)

	for _, path := range []string{"/api/stop", "/api/reset", "/api/stop"} {
		code, body := doRequest(t, s.App(), "POST", path, "")
		assert.Equal(t, fiber.StatusOK, code)
		assert.Empty(t, decode[CommandResponse](t, body).Workers)
	}
}

func TestMasterServer_MetricsAndProgress(t *testing.T) {
	s, m, _ := newTestMasterServer(t)

	code, _ := doRequest(t, s.App(), "POST", "/api/workers/metrics",
		`[{"requestPath":"/api/public/a","responseTime":100,"errorCode":-1},`+
			`{"requestPath":"/api/user/a","responseTime":40,"errorCode":500}]`)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, 2, m.Aggregator().Pending())
	m.Aggregator().Flush()

	code, body := doRequest(t, s.App(), "GET", "/api/progress", "")
	require.Equal(t, fiber.StatusOK, code)
	progress := decode[types.Progress](t, body)
	assert.Equal(t, int64(1), progress.Public.RequestsSent)
	require.NotNil(t, progress.Public.AverageResponseTime)
	assert.Equal(t, int64(100), *progress.Public.AverageResponseTime)
	assert.Equal(t, int64(1), progress.Backoffice.RequestsFailed)

	code, body = doRequest(t, s.App(), "GET", "/api/progress/latency", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, int64(1), decode[types.LatencyReport](t, body).Public.Count)

	code, _ = doRequest(t, s.App(), "POST", "/api/reset", "")
	require.Equal(t, fiber.StatusOK, code)
	_, body = doRequest(t, s.App(), "GET", "/api/progress", "")
	assert.Nil(t, decode[types.Progress](t, body).Public.AverageResponseTime)
}

func TestMasterServer_EmptyProgress(t *testing.T) {
	s, _, _ := newTestMasterServer(t)

	code, body := doRequest(t, s.App(), "GET", "/api/progress", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.JSONEq(t, `{
		"public": {"averageResponseTime": null, "requestsSent": 0, "requestsFailed": 0},
		"backoffice": {"averageResponseTime": null, "requestsSent": 0, "requestsFailed": 0}
	}`, body)
}

func TestMasterServer_MetricsRejectsBadBody(t *testing.T) {
	s, m, _ := newTestMasterServer(t)

	code, _ := doRequest(t, s.App(), "POST", "/api/workers/metrics", `{"requestPath":1}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, 0, m.Aggregator().Pending())
}
