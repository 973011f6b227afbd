package model

import "time"

// Execution is the persisted record of one code run.
//
// It is an audit/history row, not the live result: stdout/stderr are not
// stored (they can be megabytes), only the outcome metadata a history view
// needs. ExitCode is a pointer because a run that never produced a process
// (unsupported language, spawn failure) or was killed on timeout has no
// exit code at all — that is different from exiting 0.
type Execution struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId,omitempty"`
	Language    string    `json:"language"`
	Succeeded   bool      `json:"succeeded"`
	FailureKind string    `json:"failureKind"`
	ExitCode    *int      `json:"exitCode,omitempty"`
	DurationMS  int64     `json:"durationMs"`
	CreatedAt   time.Time `json:"createdAt"`
}
