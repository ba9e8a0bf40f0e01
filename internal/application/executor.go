package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
	"golang.org/x/sync/errgroup"

	"treesync/pkg/domain/reconcile"
	"treesync/pkg/domain/run"
	"treesync/pkg/domain/tree"
)

// ExecutorConfig tunes how the operation plan is applied.
type ExecutorConfig struct {
	// Concurrency bounds the workers inside one depth group.
	Concurrency int
	// MaxAttempts bounds retries of transient failures per operation.
	MaxAttempts int
	// InitialDelay seeds the exponential backoff.
	InitialDelay time.Duration
	// CallTimeout applies per target API call.
	CallTimeout time.Duration
	// RootTargetKey is the target-side parent for depth-0 creates, e.g. the
	// configured container task all synced trees hang under.
	RootTargetKey string
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 500 * time.Millisecond
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	return c
}

// Executor applies an ordered operation plan against the target system.
//
// Operations of the same depth group run concurrently under the configured
// limit; groups never overlap, so a child create is only scheduled once
// its parent's create has returned a target key. A failed create poisons
// its own subtree but leaves unrelated branches running; failures are
// collected into the report, not escalated.
type Executor struct {
	target TargetClient
	cfg    ExecutorConfig
	logger *slog.Logger

	mu       sync.Mutex
	keys     map[string]string
	poisoned map[string]bool
}

// NewExecutor creates an executor over the given target client.
func NewExecutor(target TargetClient, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		target: target,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Apply runs the plan. The baseline seeds the node-id to target-key map so
// updates can resolve parents that already exist in the target. Per
// operation failures are recorded in the report; Apply itself only errors
// when the context is cancelled.
func (e *Executor) Apply(ctx context.Context, ops []reconcile.Operation, baseline *reconcile.Baseline, report *run.Report) error {
	e.mu.Lock()
	e.keys = make(map[string]string, baseline.Len())
	e.poisoned = make(map[string]bool)
	for _, rec := range baseline.Records() {
		e.keys[rec.NodeID] = rec.TargetKey
	}
	e.mu.Unlock()

	creates, updates, archives := splitPlan(ops)

	for _, group := range depthGroups(creates, false) {
		if err := e.applyGroup(ctx, group, report); err != nil {
			return err
		}
	}
	if err := e.applyGroup(ctx, updates, report); err != nil {
		return err
	}
	for _, group := range depthGroups(archives, true) {
		if err := e.applyGroup(ctx, group, report); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) applyGroup(ctx context.Context, ops []reconcile.Operation, report *run.Report) error {
	if len(ops) == 0 {
		return nil
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.cfg.Concurrency)
	for _, op := range ops {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			e.applyOne(egCtx, op, report)
			return nil
		})
	}
	return eg.Wait()
}

func (e *Executor) applyOne(ctx context.Context, op reconcile.Operation, report *run.Report) {
	switch op.Kind {
	case reconcile.OpCreate:
		e.applyCreate(ctx, op, report)
	case reconcile.OpUpdate:
		e.applyUpdate(ctx, op, report)
	case reconcile.OpArchive:
		e.applyArchive(ctx, op, report)
	}
}

func (e *Executor) applyCreate(ctx context.Context, op reconcile.Operation, report *run.Report) {
	parentKey, ok := e.resolveParent(op.ParentNodeID)
	if !ok {
		// The parent's create failed or was skipped; nothing below it can be
		// created this run.
		e.poison(op.NodeID)
		report.RecordSkipped()
		e.logger.Warn("skipping create, parent unavailable", "node", op.NodeID, "parent", op.ParentNodeID)
		return
	}

	key, err := e.callString(ctx, func(ctx context.Context) (string, error) {
		return e.target.CreateTask(ctx, op.Name, parentKey, op.NodeID)
	})
	if err != nil {
		e.poison(op.NodeID)
		report.RecordError(string(op.Kind), op.NodeID, err)
		e.logger.Error("create failed", "node", op.NodeID, "error", err)
		return
	}

	e.mu.Lock()
	e.keys[op.NodeID] = key
	e.mu.Unlock()
	report.RecordCreated()
	e.logger.Info("created task", "node", op.NodeID, "target_key", key)
}

func (e *Executor) applyUpdate(ctx context.Context, op reconcile.Operation, report *run.Report) {
	fields := make(map[string]string, len(op.Fields))
	for k, v := range op.Fields {
		fields[k] = v
	}

	if parentNodeID, ok := fields[reconcile.FieldParent]; ok {
		parentKey, resolved := e.resolveParent(parentNodeID)
		if !resolved {
			report.RecordError(string(op.Kind), op.NodeID,
				fmt.Errorf("new parent %s has no target key", parentNodeID))
			return
		}
		fields[reconcile.FieldParent] = parentKey
	}

	err := e.call(ctx, func(ctx context.Context) error {
		return e.target.UpdateTask(ctx, op.TargetKey, fields)
	})
	if err != nil {
		report.RecordError(string(op.Kind), op.NodeID, err)
		e.logger.Error("update failed", "node", op.NodeID, "error", err)
		return
	}
	report.RecordUpdated()
	e.logger.Info("updated task", "node", op.NodeID, "fields", len(fields))
}

func (e *Executor) applyArchive(ctx context.Context, op reconcile.Operation, report *run.Report) {
	err := e.call(ctx, func(ctx context.Context) error {
		return e.target.ArchiveTask(ctx, op.TargetKey)
	})
	if err != nil {
		report.RecordError(string(op.Kind), op.NodeID, err)
		e.logger.Error("archive failed", "node", op.NodeID, "error", err)
		return
	}
	report.RecordArchived()
	e.logger.Info("archived task", "node", op.NodeID)
}

// resolveParent maps a parent node id to its target key. The root sentinel
// resolves to the configured root container.
func (e *Executor) resolveParent(parentNodeID string) (string, bool) {
	if parentNodeID == "" || parentNodeID == tree.RootParentID {
		return e.cfg.RootTargetKey, true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.poisoned[parentNodeID] {
		return "", false
	}
	key, ok := e.keys[parentNodeID]
	return key, ok
}

func (e *Executor) poison(nodeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.poisoned[nodeID] = true
}

// callString invokes a key-returning target call under the per-call
// timeout, retrying transient failures with exponential backoff. The first
// attempt decides whether retrying is worthwhile; terminal failures are
// returned as-is.
func (e *Executor) callString(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	t := timeout.New[string](timeout.Config{DefaultTimeout: e.cfg.CallTimeout})
	bounded := func(ctx context.Context) (string, error) {
		return t.Execute(ctx, e.cfg.CallTimeout, fn)
	}

	result, err := bounded(ctx)
	if err == nil || !retryable(err) {
		return result, err
	}

	r := retry.New[string](retry.Config{
		MaxAttempts:   e.cfg.MaxAttempts,
		InitialDelay:  e.cfg.InitialDelay,
		BackoffPolicy: retry.BackoffExponential,
	})
	return r.Do(ctx, bounded)
}

func (e *Executor) call(ctx context.Context, fn func(context.Context) error) error {
	_, err := e.callString(ctx, func(ctx context.Context) (string, error) {
		return "", fn(ctx)
	})
	return err
}

func retryable(err error) bool {
	return reconcile.IsTransient(err) || errors.Is(err, context.DeadlineExceeded)
}

func splitPlan(ops []reconcile.Operation) (creates, updates, archives []reconcile.Operation) {
	for _, op := range ops {
		switch op.Kind {
		case reconcile.OpCreate:
			creates = append(creates, op)
		case reconcile.OpUpdate:
			updates = append(updates, op)
		case reconcile.OpArchive:
			archives = append(archives, op)
		}
	}
	return creates, updates, archives
}

// depthGroups buckets operations by depth, ordered ascending for creates
// and descending for archives.
func depthGroups(ops []reconcile.Operation, descending bool) [][]reconcile.Operation {
	buckets := make(map[int][]reconcile.Operation)
	depths := make([]int, 0)
	for _, op := range ops {
		if _, ok := buckets[op.Depth]; !ok {
			depths = append(depths, op.Depth)
		}
		buckets[op.Depth] = append(buckets[op.Depth], op)
	}
	sort.Ints(depths)
	if descending {
		for i, j := 0, len(depths)-1; i < j; i, j = i+1, j-1 {
			depths[i], depths[j] = depths[j], depths[i]
		}
	}

	groups := make([][]reconcile.Operation, 0, len(depths))
	for _, d := range depths {
		groups = append(groups, buckets[d])
	}
	return groups
}
