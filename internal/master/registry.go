package master

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/duke-git/lancet/v2/cryptor"

	"yqhp/loadtest/pkg/types"
)

// ErrInvalidRegistration is returned when a registration carries no base address.
var ErrInvalidRegistration = errors.New("registration requires a base address")

// WorkerID derives the stable identifier of a worker from its base address.
func WorkerID(base string) string {
	return cryptor.Md5String(base)
}

// Registry stores every worker that ever registered. Entries are never
// removed; registering the same base address again replaces the entry.
type Registry struct {
	workers map[string]*types.WorkerInfo
	mu      sync.RWMutex
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		workers: make(map[string]*types.WorkerInfo),
		now:     time.Now,
	}
}

// Register records a worker with status ready and returns a copy of the entry.
// Missing control or status paths fall back to the standard worker routes.
func (r *Registry) Register(reg types.WorkerRegistration) (types.WorkerInfo, error) {
	base := strings.TrimSpace(reg.Base)
	if base == "" {
		return types.WorkerInfo{}, ErrInvalidRegistration
	}
	control := reg.Control
	if control == "" {
		control = types.WorkerControlPath
	}
	status := reg.Status
	if status == "" {
		status = types.WorkerStatusPath
	}

	root := strings.TrimRight(base, "/")
	info := &types.WorkerInfo{
		ID:           WorkerID(root),
		BaseURL:      root,
		ControlURL:   root + control,
		StatusURL:    root + status,
		Status:       string(types.WorkerStateReady),
		RegisteredAt: r.now(),
	}

	r.mu.Lock()
	r.workers[info.ID] = info
	r.mu.Unlock()

	return *info, nil
}

// Get returns a copy of one worker's entry.
func (r *Registry) Get(id string) (types.WorkerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[id]
	if !ok {
		return types.WorkerInfo{}, false
	}
	return *w, true
}

// List returns copies of all entries ordered by registration time.
func (r *Registry) List() []types.WorkerInfo {
	r.mu.RLock()
	list := make([]types.WorkerInfo, 0, len(r.workers))
	for _, w := range r.workers {
		list = append(list, *w)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].RegisteredAt.Equal(list[j].RegisteredAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].RegisteredAt.Before(list[j].RegisteredAt)
	})
	return list
}

// Statuses maps every worker id to its last known status.
func (r *Registry) Statuses() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make(map[string]string, len(r.workers))
	for id, w := range r.workers {
		statuses[id] = w.Status
	}
	return statuses
}

// UpdateStatus stores the status observed by a health check of the
// registration made at registeredAt. Unknown ids and entries re-registered
// since the check began are left alone and reported as false.
func (r *Registry) UpdateStatus(id string, registeredAt time.Time, status string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[id]
	if !ok || !w.RegisteredAt.Equal(registeredAt) {
		return false
	}
	w.Status = status
	w.LastChecked = r.now()
	return true
}

// Count returns the number of registered workers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}
