package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the outcome of a report run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// ReportRun is the history entry for one report computation.
type ReportRun struct {
	ID           uuid.UUID     `json:"id"`
	Kind         ReportKind    `json:"kind"`
	Trigger      Trigger       `json:"trigger"`
	Status       RunStatus     `json:"status"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration"`
	StartedAt    time.Time     `json:"started_at"`
}

// NewReportRun creates a run entry that starts now.
func NewReportRun(id uuid.UUID, kind ReportKind, trigger Trigger, startedAt time.Time) *ReportRun {
	return &ReportRun{
		ID:        id,
		Kind:      kind,
		Trigger:   trigger,
		Status:    RunStatusSucceeded,
		StartedAt: startedAt,
	}
}

// MarkFailed marks the run as failed.
func (r *ReportRun) MarkFailed(kind, errMsg string) {
	r.Status = RunStatusFailed
	r.ErrorKind = kind
	r.ErrorMessage = errMsg
}
