package run

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestReport_Counters(t *testing.T) {
	r := NewReport()
	if r.RunID == "" {
		t.Fatal("NewReport() should assign a run id")
	}

	r.RecordCreated()
	r.RecordCreated()
	r.RecordUpdated()
	r.RecordArchived()
	r.RecordSkipped()

	if r.Created != 2 || r.Updated != 1 || r.Archived != 1 || r.Skipped != 1 {
		t.Errorf("counters = %d/%d/%d/%d, want 2/1/1/1", r.Created, r.Updated, r.Archived, r.Skipped)
	}
	if r.Failed() {
		t.Error("Failed() = true with no errors")
	}
	if r.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", r.ExitCode())
	}
}

func TestReport_Errors(t *testing.T) {
	r := NewReport()
	r.RecordError("create", "org_1/T1", errors.New("validation failed"))

	if !r.Failed() {
		t.Error("Failed() = false after an operation error")
	}
	if r.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", r.ExitCode())
	}
	if !strings.Contains(r.Summary(), "failed 1") {
		t.Errorf("Summary() = %q, want failure count", r.Summary())
	}
}

func TestReport_Abort(t *testing.T) {
	r := NewReport()
	r.Abort()
	if !r.Failed() || r.ExitCode() != 1 {
		t.Error("aborted run must fail with non-zero exit")
	}
	if !strings.Contains(r.Summary(), "aborted") {
		t.Errorf("Summary() = %q, want aborted marker", r.Summary())
	}
}

func TestReport_ConcurrentRecording(t *testing.T) {
	r := NewReport()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RecordCreated()
			r.RecordSkipped()
		}()
	}
	wg.Wait()

	if r.Created != 50 || r.Skipped != 50 {
		t.Errorf("counters = %d/%d, want 50/50", r.Created, r.Skipped)
	}
}

func TestLifecycle(t *testing.T) {
	l, err := NewLifecycle("run-1")
	if err != nil {
		t.Fatalf("NewLifecycle() error: %v", err)
	}
	if l.Current() != StatePending {
		t.Fatalf("initial state = %s, want pending", l.Current())
	}

	steps := []struct {
		event string
		want  string
	}{
		{EventFetch, StateFetching},
		{EventPlan, StatePlanning},
		{EventApply, StateApplying},
		{EventComplete, StateCompleted},
	}
	for _, s := range steps {
		if err := l.Transition(s.event); err != nil {
			t.Fatalf("Transition(%s) error: %v", s.event, err)
		}
		if l.Current() != s.want {
			t.Fatalf("state after %s = %s, want %s", s.event, l.Current(), s.want)
		}
	}
	if !l.IsTerminal() {
		t.Error("IsTerminal() = false in completed state")
	}
}

func TestLifecycle_IllegalTransition(t *testing.T) {
	l, err := NewLifecycle("run-2")
	if err != nil {
		t.Fatalf("NewLifecycle() error: %v", err)
	}

	if err := l.Transition(EventComplete); err == nil {
		t.Error("Transition(complete) from pending should fail")
	}
	if l.Current() != StatePending {
		t.Errorf("state = %s, want pending after rejected event", l.Current())
	}
}

func TestLifecycle_FailPath(t *testing.T) {
	l, err := NewLifecycle("run-3")
	if err != nil {
		t.Fatalf("NewLifecycle() error: %v", err)
	}
	if err := l.Transition(EventFetch); err != nil {
		t.Fatalf("Transition(fetch) error: %v", err)
	}
	if err := l.Transition(EventFail); err != nil {
		t.Fatalf("Transition(fail) error: %v", err)
	}
	if l.Current() != StateFailed || !l.IsTerminal() {
		t.Errorf("state = %s, want terminal failed", l.Current())
	}
}
