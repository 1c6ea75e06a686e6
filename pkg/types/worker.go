package types

import "time"

// WorkerState is the job lifecycle state reported by a worker.
type WorkerState string

const (
	// WorkerStateReady indicates the worker is idle and accepts a start command.
	WorkerStateReady WorkerState = "ready"
	// WorkerStateRampingUp indicates virtual users are still being added.
	WorkerStateRampingUp WorkerState = "ramping_up"
	// WorkerStateRunning indicates the full population is running.
	WorkerStateRunning WorkerState = "running"
	// WorkerStateCompleted indicates the job reached its deadline.
	WorkerStateCompleted WorkerState = "completed"
	// WorkerStateError indicates an unrecoverable local failure.
	WorkerStateError WorkerState = "error"
)

// Statuses the master assigns on its own when a status query fails.
const (
	StatusOffline = "offline"
	StatusError   = string(WorkerStateError)
)

// Relative paths a worker advertises when registering.
const (
	WorkerControlPath = "/api/cmd"
	WorkerStatusPath  = "/api/status"
)

// WorkerInfo is the master's record of a registered worker.
type WorkerInfo struct {
	ID           string    `json:"id"`
	BaseURL      string    `json:"baseUrl"`
	ControlURL   string    `json:"controlUrl"`
	StatusURL    string    `json:"statusUrl"`
	Status       string    `json:"status"`
	RegisteredAt time.Time `json:"registeredAt"`
	LastChecked  time.Time `json:"lastChecked,omitempty"`
}

// WorkerRegistration is the body a worker posts to the master on boot.
type WorkerRegistration struct {
	Base    string `json:"base"`
	Control string `json:"control"`
	Status  string `json:"status"`
}
