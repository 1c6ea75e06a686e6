package master

import (
	"context"
	"errors"
	"sync"

	"yqhp/loadtest/api/rest/client"
	"yqhp/loadtest/pkg/types"
)

// fakeCommander records commands and answers from canned tables keyed by URL.
type fakeCommander struct {
	mu       sync.Mutex
	calls    []string
	configs  []types.TestConfig
	failures map[string]error  // control or status URL -> error
	statuses map[string]string // status URL -> body
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{
		failures: make(map[string]error),
		statuses: make(map[string]string),
	}
}

func (f *fakeCommander) fail(url string, err error) {
	f.mu.Lock()
	f.failures[url] = err
	f.mu.Unlock()
}

func (f *fakeCommander) record(call, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call+" "+url)
	return f.failures[url]
}

func (f *fakeCommander) Start(_ context.Context, controlURL string, cfg types.TestConfig) error {
	f.mu.Lock()
	f.configs = append(f.configs, cfg)
	f.mu.Unlock()
	return f.record("start", controlURL)
}

func (f *fakeCommander) Stop(_ context.Context, controlURL string) error {
	return f.record("stop", controlURL)
}

func (f *fakeCommander) Reset(_ context.Context, controlURL string) error {
	return f.record("reset", controlURL)
}

func (f *fakeCommander) Status(_ context.Context, statusURL string) (string, error) {
	if err := f.record("status", statusURL); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[statusURL], nil
}

func (f *fakeCommander) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var (
	errUnreachable = &client.TransportError{URL: "x", Err: errors.New("connection refused")}
	errBadStatus   = &client.StatusError{URL: "x", Code: 500, Body: "boom"}
)
