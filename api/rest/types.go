package rest

import (
	"yqhp/loadtest/internal/master"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Workers   int    `json:"workers"`
	Timestamp string `json:"timestamp"`
}

// WorkerResult is the outcome of one broadcast command for one worker.
type WorkerResult struct {
	WorkerID string `json:"workerId"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// CommandResponse summarises a broadcast. It is returned with status 200
// even when some workers could not be reached.
type CommandResponse struct {
	Command   string         `json:"command"`
	Delivered int            `json:"delivered"`
	Failed    int            `json:"failed"`
	Workers   []WorkerResult `json:"workers"`
}

func newCommandResponse(command string, results []master.CommandResult) CommandResponse {
	resp := CommandResponse{
		Command: command,
		Workers: make([]WorkerResult, 0, len(results)),
	}
	for _, r := range results {
		wr := WorkerResult{WorkerID: r.WorkerID, OK: r.OK()}
		if r.Err != nil {
			wr.Error = r.Err.Error()
			resp.Failed++
		} else {
			resp.Delivered++
		}
		resp.Workers = append(resp.Workers, wr)
	}
	return resp
}
