package run

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OperationError is one failed operation captured in the report.
type OperationError struct {
	Op     string `json:"op"`
	NodeID string `json:"node_id"`
	Reason string `json:"reason"`
}

// Report aggregates the outcome of a single reconciliation run. It is safe
// for concurrent use by the executor's workers.
type Report struct {
	mu sync.Mutex

	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Created    int              `json:"created"`
	Updated    int              `json:"updated"`
	Archived   int              `json:"archived"`
	Skipped    int              `json:"skipped"`
	Errors     []OperationError `json:"errors,omitempty"`
	Aborted    bool             `json:"aborted"`
}

// NewReport starts a report for a fresh run.
func NewReport() *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// RecordCreated counts one successful create.
func (r *Report) RecordCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Created++
}

// RecordUpdated counts one successful update.
func (r *Report) RecordUpdated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Updated++
}

// RecordArchived counts one successful archive.
func (r *Report) RecordArchived() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Archived++
}

// RecordSkipped counts an operation dropped because its subtree failed.
func (r *Report) RecordSkipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped++
}

// RecordError captures a per-operation failure without aborting the run.
func (r *Report) RecordError(op, nodeID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, OperationError{Op: op, NodeID: nodeID, Reason: err.Error()})
}

// Abort marks the run as aborted before any write was issued.
func (r *Report) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Aborted = true
}

// Finish stamps the end of the run.
func (r *Report) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
}

// Failed reports whether any operation failed or the run aborted early.
func (r *Report) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Aborted || len(r.Errors) > 0
}

// ExitCode maps the run outcome to a process exit status.
func (r *Report) ExitCode() int {
	if r.Failed() {
		return 1
	}
	return 0
}

// Summary renders the user-facing one-block outcome.
func (r *Report) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := fmt.Sprintf("run %s: created %d, updated %d, archived %d, skipped %d, failed %d",
		r.RunID, r.Created, r.Updated, r.Archived, r.Skipped, len(r.Errors))
	if r.Aborted {
		s += " (aborted)"
	}
	return s
}
