package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"yqhp/loadtest/internal/target"
	"yqhp/loadtest/pkg/metrics"
	"yqhp/loadtest/pkg/types"
)

func TestVirtualUser_NewUserIteration(t *testing.T) {
	api := newFakeTarget()
	vu := NewVirtualUser(1, api, 16, zap.NewNop())

	require.NoError(t, vu.Iterate(context.Background()))

	assert.Equal(t, 1, api.count("exists"))
	assert.Equal(t, 1, api.count("register"))
	assert.Equal(t, 1, api.count("profile"))
	assert.Equal(t, 1, api.count("picture"))
	assert.Equal(t, 1, api.count("clear"))
	assert.GreaterOrEqual(t, api.count("link"), minLinks)
	assert.Less(t, api.count("link"), maxLinks)
	assert.GreaterOrEqual(t, api.count("view"), minPublicFetch)
	assert.Less(t, api.count("view"), maxPublicFetch)
	require.Equal(t, 1, api.count("click"))
	assert.GreaterOrEqual(t, api.clicked[0], 0)
	assert.Less(t, api.clicked[0], api.links)
}

func TestVirtualUser_ExistingUserSkipsRegister(t *testing.T) {
	api := newFakeTarget()
	api.exists = true
	vu := NewVirtualUser(1, api, 16, zap.NewNop())

	require.NoError(t, vu.Iterate(context.Background()))
	assert.Equal(t, 0, api.count("register"))
	assert.Equal(t, 1, api.count("profile"))
}

func TestVirtualUser_NoLinksNoClick(t *testing.T) {
	api := newFakeTarget()
	api.links = 0
	vu := NewVirtualUser(1, api, 16, zap.NewNop())

	require.NoError(t, vu.Iterate(context.Background()))
	assert.Equal(t, 0, api.count("click"))
}

func TestVirtualUser_StatusErrorDoesNotAbort(t *testing.T) {
	api := newFakeTarget()
	api.failOn["profile"] = &target.StatusError{Path: "/api/user/x", Code: 500}
	api.failOn["exists"] = &target.StatusError{Path: "/api/user/x/exists", Code: 503}
	vu := NewVirtualUser(1, api, 16, zap.NewNop())

	require.NoError(t, vu.Iterate(context.Background()))
	assert.Equal(t, 1, api.count("register"), "failed probe is treated as absent")
	assert.Equal(t, 1, api.count("picture"))
}

func TestVirtualUser_NoResponseAbortsIteration(t *testing.T) {
	api := newFakeTarget()
	api.failOn["picture"] = fmt.Errorf("%w: connection refused", target.ErrNoResponse)
	vu := NewVirtualUser(1, api, 16, zap.NewNop())

	err := vu.Iterate(context.Background())
	require.ErrorIs(t, err, target.ErrNoResponse)
	assert.Equal(t, 0, api.count("clear"))
	assert.Equal(t, 0, api.count("view"))
}

func TestVirtualUser_StopsBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := newFakeTarget()
	api.onCall = func(name string) {
		if name == "profile" {
			cancel()
		}
	}
	vu := NewVirtualUser(1, api, 16, zap.NewNop())

	require.NoError(t, vu.Iterate(ctx))
	assert.Equal(t, 1, api.count("profile"))
	assert.Equal(t, 0, api.count("picture"))
	assert.Equal(t, 0, api.count("view"))
}

func TestVirtualUser_RunLoopsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := newFakeTarget()
	api.exists = true
	vu := NewVirtualUser(1, api, 16, zap.NewNop())

	done := make(chan struct{})
	go func() {
		vu.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return api.count("exists") >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("virtual user did not stop")
	}
}

func TestVirtualUser_RunPausesAfterNoResponse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := newFakeTarget()
	api.failOn["exists"] = target.ErrNoResponse
	vu := NewVirtualUser(1, api, 16, zap.NewNop())
	vu.pause = time.Hour

	go vu.Run(ctx)

	assert.Eventually(t, func() bool { return api.count("exists") == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, api.count("exists"))
}

func TestVirtualUser_UniqueEmails(t *testing.T) {
	a := NewVirtualUser(1, newFakeTarget(), 16, nil)
	b := NewVirtualUser(2, newFakeTarget(), 16, nil)
	assert.NotEqual(t, a.Email(), b.Email())
}

func TestTargetWorkload_Prepare(t *testing.T) {
	w := NewTargetWorkload(nil, metrics.NewQueue(), zap.NewNop())

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"http", "http://localhost:3000", false},
		{"https with path", "https://target.example/app", false},
		{"empty", "", true},
		{"no scheme", "localhost:3000", true},
		{"ftp", "ftp://target.example", true},
		{"no host", "http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := w.Prepare(types.TestConfig{TargetURL: tt.url})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTarget)
				assert.Nil(t, fn)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, fn)
		})
	}
}
