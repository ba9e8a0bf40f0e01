package application

import (
	"context"
	"errors"

	"treesync/pkg/domain/reconcile"
	"treesync/pkg/domain/tree"
)

// ErrSourceFetch indicates a source instance could not be fetched
// completely. A partial forest is never reconciled.
var ErrSourceFetch = errors.New("source fetch failed")

// Source fetches the full flat hierarchy of one external issue-tracking
// instance. Implementations paginate internally and must fail rather than
// return a partial batch.
type Source interface {
	// Name returns the instance prefix used during id derivation.
	Name() string
	// Fetch returns every work item of the instance, open and closed.
	Fetch(ctx context.Context) ([]tree.SourceRecord, error)
}

// TargetClient is the flat task tracker the forest reconciles into.
// Implementations classify failures through reconcile.APIError so the
// executor can tell transient from terminal.
type TargetClient interface {
	// ListTasks returns every synced task, paged exhaustively.
	ListTasks(ctx context.Context) ([]reconcile.BaselineRecord, error)
	// CreateTask creates a task and returns its target key.
	CreateTask(ctx context.Context, name, parentTargetKey, nodeID string) (string, error)
	// UpdateTask rewrites the given fields on an existing task.
	UpdateTask(ctx context.Context, targetKey string, fields map[string]string) error
	// ArchiveTask archives a task; archiving an archived task succeeds.
	ArchiveTask(ctx context.Context, targetKey string) error
}
