package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"treesync/pkg/domain/reconcile"
	"treesync/pkg/domain/run"
	"treesync/pkg/domain/tree"
)

type fakeTask struct {
	key       string
	name      string
	parentKey string
	nodeID    string
	archived  bool
}

// fakeTarget is an in-memory TargetClient. Failures are injected per node
// id for creates and per target key for updates/archives.
type fakeTarget struct {
	mu      sync.Mutex
	tasks   map[string]*fakeTask
	nextKey int

	listErr        error
	createErr      map[string]error
	transientLeft  map[string]int
	createAttempts map[string]int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		tasks:          make(map[string]*fakeTask),
		createErr:      make(map[string]error),
		transientLeft:  make(map[string]int),
		createAttempts: make(map[string]int),
	}
}

func (f *fakeTarget) ListTasks(ctx context.Context) ([]reconcile.BaselineRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	records := make([]reconcile.BaselineRecord, 0, len(f.tasks))
	for _, task := range f.tasks {
		records = append(records, reconcile.BaselineRecord{
			NodeID:          task.nodeID,
			Name:            task.name,
			TargetKey:       task.key,
			ParentTargetKey: task.parentKey,
			Active:          !task.archived,
		})
	}
	return records, nil
}

func (f *fakeTarget) CreateTask(ctx context.Context, name, parentTargetKey, nodeID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createAttempts[nodeID]++
	if err, ok := f.createErr[nodeID]; ok {
		return "", err
	}
	if left, ok := f.transientLeft[nodeID]; ok && left > 0 {
		f.transientLeft[nodeID] = left - 1
		return "", &reconcile.APIError{Op: "create", NodeID: nodeID, Transient: true, Err: errors.New("rate limited")}
	}
	f.nextKey++
	key := "k" + strconv.Itoa(f.nextKey)
	f.tasks[key] = &fakeTask{key: key, name: name, parentKey: parentTargetKey, nodeID: nodeID}
	return key, nil
}

func (f *fakeTarget) UpdateTask(ctx context.Context, targetKey string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[targetKey]
	if !ok {
		return &reconcile.APIError{Op: "update", Err: fmt.Errorf("unknown task %s", targetKey)}
	}
	if name, ok := fields[reconcile.FieldName]; ok {
		task.name = name
	}
	if parent, ok := fields[reconcile.FieldParent]; ok {
		task.parentKey = parent
	}
	if _, ok := fields[reconcile.FieldActive]; ok {
		task.archived = false
	}
	return nil
}

func (f *fakeTarget) ArchiveTask(ctx context.Context, targetKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[targetKey]
	if !ok {
		return &reconcile.APIError{Op: "archive", Err: fmt.Errorf("unknown task %s", targetKey)}
	}
	task.archived = true
	return nil
}

func (f *fakeTarget) byNodeID(nodeID string) *fakeTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, task := range f.tasks {
		if task.nodeID == nodeID {
			return task
		}
	}
	return nil
}

func testExecutor(target TargetClient) *Executor {
	return NewExecutor(target, ExecutorConfig{
		Concurrency:   2,
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		CallTimeout:   time.Second,
		RootTargetKey: "root-key",
	}, nil)
}

func threeLevelPlan(t *testing.T) ([]reconcile.Operation, *reconcile.Baseline) {
	t.Helper()
	forest, err := tree.BuildFromFlat([]tree.FlatRecord{
		{Name: "Org", TaskID: "org_1", ParentID: "0"},
		{Name: "Proj", TaskID: "org_1/proj", ParentID: "org_1"},
		{Name: "Task", TaskID: "org_1/proj/T1", ParentID: "org_1/proj"},
	})
	if err != nil {
		t.Fatalf("BuildFromFlat() error: %v", err)
	}
	baseline, err := reconcile.NewBaseline(nil)
	if err != nil {
		t.Fatalf("NewBaseline() error: %v", err)
	}
	return reconcile.Reconcile(forest, baseline), baseline
}

func TestExecutor_CreatesResolveParentKeys(t *testing.T) {
	target := newFakeTarget()
	exec := testExecutor(target)
	ops, baseline := threeLevelPlan(t)
	report := run.NewReport()

	if err := exec.Apply(context.Background(), ops, baseline, report); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if report.Created != 3 || report.Failed() {
		t.Fatalf("report = %s", report.Summary())
	}

	org := target.byNodeID("org_1")
	proj := target.byNodeID("org_1/proj")
	task := target.byNodeID("org_1/proj/T1")
	if org == nil || proj == nil || task == nil {
		t.Fatal("not all tasks created")
	}
	if org.parentKey != "root-key" {
		t.Errorf("org parent = %q, want root-key", org.parentKey)
	}
	if proj.parentKey != org.key {
		t.Errorf("proj parent = %q, want %q", proj.parentKey, org.key)
	}
	if task.parentKey != proj.key {
		t.Errorf("task parent = %q, want %q", task.parentKey, proj.key)
	}
}

// One failed create aborts its whole subtree but leaves unrelated branches
// alone.
func TestExecutor_SubtreeIsolation(t *testing.T) {
	forest, err := tree.BuildFromFlat([]tree.FlatRecord{
		{Name: "Org", TaskID: "org_1", ParentID: "0"},
		{Name: "Bad", TaskID: "org_1/bad", ParentID: "org_1"},
		{Name: "Bad child", TaskID: "org_1/bad/c", ParentID: "org_1/bad"},
		{Name: "Bad grandchild", TaskID: "org_1/bad/c/g", ParentID: "org_1/bad/c"},
		{Name: "Good", TaskID: "org_1/good", ParentID: "org_1"},
		{Name: "Good child", TaskID: "org_1/good/c", ParentID: "org_1/good"},
	})
	if err != nil {
		t.Fatalf("BuildFromFlat() error: %v", err)
	}
	baseline, _ := reconcile.NewBaseline(nil)
	ops := reconcile.Reconcile(forest, baseline)

	target := newFakeTarget()
	target.createErr["org_1/bad"] = &reconcile.APIError{Op: "create", NodeID: "org_1/bad", Err: errors.New("validation failed")}
	exec := testExecutor(target)
	report := run.NewReport()

	if err := exec.Apply(context.Background(), ops, baseline, report); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if report.Created != 3 {
		t.Errorf("created = %d, want 3 (org, good, good child)", report.Created)
	}
	if report.Skipped != 2 {
		t.Errorf("skipped = %d, want 2 (bad subtree)", report.Skipped)
	}
	if len(report.Errors) != 1 {
		t.Errorf("errors = %d, want 1", len(report.Errors))
	}
	if target.byNodeID("org_1/good/c") == nil {
		t.Error("unrelated branch should still be created")
	}
	if target.byNodeID("org_1/bad/c") != nil {
		t.Error("child of failed create must not be created")
	}
}

func TestExecutor_RetriesTransientFailures(t *testing.T) {
	target := newFakeTarget()
	target.transientLeft["org_1"] = 2
	exec := testExecutor(target)
	ops, baseline := threeLevelPlan(t)
	report := run.NewReport()

	if err := exec.Apply(context.Background(), ops, baseline, report); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if report.Created != 3 || report.Failed() {
		t.Fatalf("report = %s", report.Summary())
	}
	if attempts := target.createAttempts["org_1"]; attempts != 3 {
		t.Errorf("create attempts = %d, want 3", attempts)
	}
}

func TestExecutor_TerminalFailuresNotRetried(t *testing.T) {
	target := newFakeTarget()
	target.createErr["org_1"] = &reconcile.APIError{Op: "create", NodeID: "org_1", Err: errors.New("validation failed")}
	exec := testExecutor(target)
	ops, baseline := threeLevelPlan(t)
	report := run.NewReport()

	if err := exec.Apply(context.Background(), ops, baseline, report); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if attempts := target.createAttempts["org_1"]; attempts != 1 {
		t.Errorf("create attempts = %d, want 1 (no retry on terminal failure)", attempts)
	}
	if report.Created != 0 || report.Skipped != 2 {
		t.Errorf("report = %s, want 0 created / 2 skipped", report.Summary())
	}
}

// A reparent update whose new parent was created in the same run resolves
// the freshly assigned target key.
func TestExecutor_UpdateResolvesNewParent(t *testing.T) {
	target := newFakeTarget()
	target.tasks["t1"] = &fakeTask{key: "t1", name: "Org", nodeID: "org_1", parentKey: "root-key"}
	target.tasks["t2"] = &fakeTask{key: "t2", name: "Task", nodeID: "org_1/T1", parentKey: "t1"}
	target.nextKey = 2

	forest, err := tree.BuildFromFlat([]tree.FlatRecord{
		{Name: "Org", TaskID: "org_1", ParentID: "0"},
		{Name: "Group", TaskID: "org_1/grp", ParentID: "org_1"},
		{Name: "Task", TaskID: "org_1/T1", ParentID: "org_1/grp"},
	})
	if err != nil {
		t.Fatalf("BuildFromFlat() error: %v", err)
	}
	records, _ := target.ListTasks(context.Background())
	baseline, err := reconcile.NewBaseline(records)
	if err != nil {
		t.Fatalf("NewBaseline() error: %v", err)
	}
	ops := reconcile.Reconcile(forest, baseline)

	exec := testExecutor(target)
	report := run.NewReport()
	if err := exec.Apply(context.Background(), ops, baseline, report); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if report.Created != 1 || report.Updated != 1 || report.Failed() {
		t.Fatalf("report = %s", report.Summary())
	}
	grp := target.byNodeID("org_1/grp")
	task := target.byNodeID("org_1/T1")
	if grp == nil || task == nil {
		t.Fatal("expected tasks missing")
	}
	if task.parentKey != grp.key {
		t.Errorf("task parent = %q, want %q", task.parentKey, grp.key)
	}
}

func TestExecutor_Archives(t *testing.T) {
	target := newFakeTarget()
	target.tasks["t1"] = &fakeTask{key: "t1", name: "Org", nodeID: "org_1", parentKey: "root-key"}
	target.tasks["t2"] = &fakeTask{key: "t2", name: "Gone", nodeID: "org_1/gone", parentKey: "t1"}
	target.nextKey = 2

	forest, err := tree.BuildFromFlat([]tree.FlatRecord{
		{Name: "Org", TaskID: "org_1", ParentID: "0"},
	})
	if err != nil {
		t.Fatalf("BuildFromFlat() error: %v", err)
	}
	records, _ := target.ListTasks(context.Background())
	baseline, err := reconcile.NewBaseline(records)
	if err != nil {
		t.Fatalf("NewBaseline() error: %v", err)
	}
	ops := reconcile.Reconcile(forest, baseline)

	exec := testExecutor(target)
	report := run.NewReport()
	if err := exec.Apply(context.Background(), ops, baseline, report); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if report.Archived != 1 || report.Failed() {
		t.Fatalf("report = %s", report.Summary())
	}
	if task := target.byNodeID("org_1/gone"); task == nil || !task.archived {
		t.Error("task should be archived in the target")
	}
}
