package model

import (
	"encoding/json"
	"time"
)

// RunStatus represents the state of a workflow run.
type RunStatus string

const (
	RunStatusRunning           RunStatus = "running"
	RunStatusSucceeded         RunStatus = "succeeded"
	RunStatusSucceededFallback RunStatus = "succeeded_fallback"
	RunStatusFailed            RunStatus = "failed"
)

// Terminal reports whether the run has finished.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusSucceededFallback || s == RunStatusFailed
}

// RunEventType tags ordered events recorded during a run.
type RunEventType string

const (
	EventToolResult      RunEventType = "tool.result"
	EventToolError       RunEventType = "tool.error"
	EventToolFallback    RunEventType = "tool.fallback"
	EventMetricCompleted RunEventType = "metric.completed"
	EventMetricFailed    RunEventType = "metric.failed"
	EventMetricDuration  RunEventType = "metric.duration_ms"
)

// RunEvent is one ordered entry in a run's audit trail.
type RunEvent struct {
	Seq     int             `json:"seq"`
	Type    RunEventType    `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// WorkflowRun is the durable record of one wrapped pipeline action.
// Invariant: at most one non-terminal run exists per project at a time.
type WorkflowRun struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	ProjectID  string          `json:"project_id"`
	Status     RunStatus       `json:"status"`
	Input      json.RawMessage `json:"input,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Events     []RunEvent      `json:"events,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
