package application

import (
	"context"
	"fmt"
	"log/slog"

	"treesync/pkg/domain/reconcile"
	"treesync/pkg/domain/run"
	"treesync/pkg/domain/tree"
)

// SyncService orchestrates one reconciliation run: fetch (or reuse an
// interchange document), build the forest, load the baseline, plan, and
// apply. Structural, fetch, and baseline failures abort the run before any
// write reaches the target.
type SyncService struct {
	fetcher  *FetchService
	target   TargetClient
	executor *Executor
	logger   *slog.Logger
}

// NewSyncService wires the run orchestration.
func NewSyncService(fetcher *FetchService, target TargetClient, executor *Executor, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{fetcher: fetcher, target: target, executor: executor, logger: logger}
}

// Run performs a full fetch-and-reconcile cycle against the sources.
func (s *SyncService) Run(ctx context.Context, dryRun bool) (*run.Report, []reconcile.Operation, error) {
	report := run.NewReport()
	lifecycle, err := run.NewLifecycle(report.RunID)
	if err != nil {
		return report, nil, err
	}

	if err := lifecycle.Transition(run.EventFetch); err != nil {
		return report, nil, err
	}
	records, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		return s.abort(report, lifecycle, err)
	}

	forest, err := tree.Build(records)
	if err != nil {
		return s.abort(report, lifecycle, err)
	}

	return s.reconcileForest(ctx, forest, report, lifecycle, dryRun)
}

// RunFromForest reconciles a pre-built forest, typically rebuilt from the
// interchange document written by a previous fetch.
func (s *SyncService) RunFromForest(ctx context.Context, forest *tree.Forest, dryRun bool) (*run.Report, []reconcile.Operation, error) {
	report := run.NewReport()
	lifecycle, err := run.NewLifecycle(report.RunID)
	if err != nil {
		return report, nil, err
	}
	return s.reconcileForest(ctx, forest, report, lifecycle, dryRun)
}

func (s *SyncService) reconcileForest(ctx context.Context, forest *tree.Forest, report *run.Report, lifecycle *run.Lifecycle, dryRun bool) (*run.Report, []reconcile.Operation, error) {
	if err := lifecycle.Transition(run.EventPlan); err != nil {
		return report, nil, err
	}

	baseline, err := s.loadBaseline(ctx)
	if err != nil {
		// A partial baseline must never drive partial writes.
		return s.abort(report, lifecycle, err)
	}

	ops := reconcile.Reconcile(forest, baseline)
	s.logger.Info("plan computed", "run", report.RunID, "nodes", forest.Len(), "baseline", baseline.Len(), "operations", len(ops))

	if dryRun || len(ops) == 0 {
		_ = lifecycle.Transition(run.EventComplete)
		report.Finish()
		return report, ops, nil
	}

	if err := lifecycle.Transition(run.EventApply); err != nil {
		return report, ops, err
	}
	if err := s.executor.Apply(ctx, ops, baseline, report); err != nil {
		return s.abort(report, lifecycle, err)
	}

	if report.Failed() {
		_ = lifecycle.Transition(run.EventFail)
	} else {
		_ = lifecycle.Transition(run.EventComplete)
	}
	report.Finish()
	return report, ops, nil
}

func (s *SyncService) loadBaseline(ctx context.Context) (*reconcile.Baseline, error) {
	records, err := s.target.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reconcile.ErrBaselineIncomplete, err)
	}
	return reconcile.NewBaseline(records)
}

func (s *SyncService) abort(report *run.Report, lifecycle *run.Lifecycle, err error) (*run.Report, []reconcile.Operation, error) {
	_ = lifecycle.Transition(run.EventFail)
	report.Abort()
	report.Finish()
	return report, nil, err
}
