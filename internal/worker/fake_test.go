package worker

import (
	"context"
	"errors"
	"sync"

	"yqhp/loadtest/internal/target"
	"yqhp/loadtest/pkg/types"
)

var errPush = errors.New("master unreachable")

// fakeTarget 记录调用次数的 TargetAPI。
type fakeTarget struct {
	mu      sync.Mutex
	calls   map[string]int
	exists  bool
	links   int
	failOn  map[string]error
	clicked []int
	onCall  func(name string)
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		calls:  make(map[string]int),
		failOn: make(map[string]error),
		links:  3,
	}
}

func (f *fakeTarget) call(name string) error {
	f.mu.Lock()
	f.calls[name]++
	err := f.failOn[name]
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(name)
	}
	return err
}

func (f *fakeTarget) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeTarget) UserExists(_ context.Context, _ string) (bool, error) {
	if err := f.call("exists"); err != nil {
		return false, err
	}
	return f.exists, nil
}

func (f *fakeTarget) Register(_ context.Context, _ string) error {
	return f.call("register")
}

func (f *fakeTarget) UpdateProfile(_ context.Context, _ string, _ target.Profile) error {
	return f.call("profile")
}

func (f *fakeTarget) UploadPicture(_ context.Context, _ string, _ []byte) error {
	return f.call("picture")
}

func (f *fakeTarget) ClearLinks(_ context.Context, _ string) error {
	return f.call("clear")
}

func (f *fakeTarget) AddLink(_ context.Context, _ string, _ target.Link) error {
	return f.call("link")
}

func (f *fakeTarget) FetchPublicView(_ context.Context, email string) (*target.PublicView, error) {
	if err := f.call("view"); err != nil {
		return nil, err
	}
	view := &target.PublicView{Email: email}
	for i := 0; i < f.links; i++ {
		view.Links = append(view.Links, target.Link{Title: "t", URL: "http://example.com"})
	}
	return view, nil
}

func (f *fakeTarget) ClickLink(_ context.Context, _ string, index int) error {
	f.mu.Lock()
	f.clicked = append(f.clicked, index)
	f.mu.Unlock()
	return f.call("click")
}

// fakeMaster 记录推送的指标与注册请求。
type fakeMaster struct {
	mu      sync.Mutex
	batches [][]types.Metric
	regs    []types.WorkerRegistration
	pushErr error
	regErr  error
}

func (f *fakeMaster) PushMetrics(_ context.Context, batch []types.Metric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeMaster) Register(_ context.Context, reg types.WorkerRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs = append(f.regs, reg)
	return f.regErr
}

func (f *fakeMaster) pushed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

// blockingWorkload 的虚拟用户阻塞到取消为止。
func blockingWorkload() Workload {
	return WorkloadFunc(func(types.TestConfig) (VUFunc, error) {
		return func(ctx context.Context, _ int) {
			<-ctx.Done()
		}, nil
	})
}
