package job

import (
	"errors"
	"testing"
	"time"
)

func TestNewJob(t *testing.T) {
	j := New("image_generation", map[string]any{"prompt": "a red bicycle"})

	if j.ID == "" {
		t.Error("expected job ID")
	}
	if j.Status != StatusPending {
		t.Errorf("expected pending, got %s", j.Status)
	}
	if j.Progress != 0.0 {
		t.Errorf("expected progress 0, got %f", j.Progress)
	}
	if j.CreatedAt.IsZero() {
		t.Error("expected created_at")
	}
}

func TestTracker_CreateAndGet(t *testing.T) {
	tr := NewTracker(10)
	j := New("image_generation", nil)

	tr.Create(j)
	got, err := tr.Get(j.ID)

	if err != nil {
		t.Fatalf("expected job to exist: %v", err)
	}
	if got.ID != j.ID {
		t.Errorf("expected %s, got %s", j.ID, got.ID)
	}
}

func TestTracker_GetNotFound(t *testing.T) {
	tr := NewTracker(10)

	_, err := tr.Get("nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTracker_TerminalStatesAreSticky(t *testing.T) {
	tr := NewTracker(10)
	j := New("image_generation", nil)
	tr.Create(j)

	tr.SetProcessing(j.ID, 50.0)
	tr.SetCompleted(j.ID, "https://example.com/out.png")

	if err := tr.SetProcessing(j.ID, 10.0); !errors.Is(err, ErrTerminalState) {
		t.Errorf("expected ErrTerminalState, got %v", err)
	}
	if err := tr.SetFailed(j.ID, "boom"); !errors.Is(err, ErrTerminalState) {
		t.Errorf("expected ErrTerminalState, got %v", err)
	}
	if err := tr.Cancel(j.ID); !errors.Is(err, ErrTerminalState) {
		t.Errorf("expected ErrTerminalState, got %v", err)
	}

	got, _ := tr.Get(j.ID)
	if got.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.Progress != 100.0 {
		t.Errorf("expected progress 100, got %f", got.Progress)
	}
}

func TestTracker_ProgressMonotonic(t *testing.T) {
	tr := NewTracker(10)
	j := New("image_generation", nil)
	tr.Create(j)

	tr.SetProcessing(j.ID, 50.0)
	tr.SetProcessing(j.ID, 25.0) // lower value must not regress

	got, _ := tr.Get(j.ID)
	if got.Progress != 50.0 {
		t.Errorf("expected progress 50, got %f", got.Progress)
	}

	tr.SetProcessing(j.ID, 75.0)
	got, _ = tr.Get(j.ID)
	if got.Progress != 75.0 {
		t.Errorf("expected progress 75, got %f", got.Progress)
	}
}

func TestTracker_FailedKeepsProgress(t *testing.T) {
	tr := NewTracker(10)
	j := New("upscaling", nil)
	tr.Create(j)

	tr.SetProcessing(j.ID, 60.0)
	tr.SetFailed(j.ID, "provider error")

	got, _ := tr.Get(j.ID)
	if got.Status != StatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.Progress != 60.0 {
		t.Errorf("expected progress 60, got %f", got.Progress)
	}
	if got.ErrorMessage != "provider error" {
		t.Errorf("expected error message, got %q", got.ErrorMessage)
	}
}

func TestTracker_Cancel(t *testing.T) {
	tr := NewTracker(10)
	j := New("image_generation", nil)
	tr.Create(j)
	tr.SetProcessing(j.ID, 30.0)

	if err := tr.Cancel(j.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, _ := tr.Get(j.ID)
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if got.Progress != 30.0 {
		t.Errorf("expected progress 30, got %f", got.Progress)
	}
}

func TestTracker_UpdatesTimestamp(t *testing.T) {
	tr := NewTracker(10)
	j := New("image_generation", nil)
	tr.Create(j)

	before, _ := tr.Get(j.ID)
	time.Sleep(5 * time.Millisecond)
	tr.SetProcessing(j.ID, 10.0)

	after, _ := tr.Get(j.ID)
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Error("expected updated_at to advance")
	}
}

func TestTracker_CapacityEvictsTerminalFirst(t *testing.T) {
	tr := NewTracker(2)

	done := New("a", nil)
	tr.Create(done)
	tr.SetProcessing(done.ID, 10)
	tr.SetCompleted(done.ID, "url")

	active := New("b", nil)
	tr.Create(active)
	tr.SetProcessing(active.ID, 10)

	tr.Create(New("c", nil))

	if _, err := tr.Get(done.ID); !errors.Is(err, ErrNotFound) {
		t.Error("expected oldest terminal job to be evicted")
	}
	if _, err := tr.Get(active.ID); err != nil {
		t.Errorf("active job must survive eviction: %v", err)
	}
}

func TestTracker_SweepExpired(t *testing.T) {
	tr := NewTracker(10)

	old := New("a", nil)
	tr.Create(old)
	tr.SetProcessing(old.ID, 10)
	tr.SetFailed(old.ID, "x")

	running := New("b", nil)
	tr.Create(running)
	tr.SetProcessing(running.ID, 10)

	time.Sleep(10 * time.Millisecond)

	removed := tr.SweepExpired(time.Millisecond)
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if _, err := tr.Get(running.ID); err != nil {
		t.Error("active job must not be swept")
	}
}

func TestTracker_ListNegativeBounds(t *testing.T) {
	tr := NewTracker(10)
	tr.Create(New("a", nil))
	tr.Create(New("b", nil))

	// Negative bounds clamp to zero instead of panicking.
	jobs, total := tr.List(-1, 0, "")
	if total != 2 || len(jobs) != 0 {
		t.Errorf("expected empty page with total 2, got %d/%d", len(jobs), total)
	}
	jobs, total = tr.List(10, -1, "")
	if total != 2 || len(jobs) != 2 {
		t.Errorf("expected full page with total 2, got %d/%d", len(jobs), total)
	}
}

func TestTracker_ListAndStats(t *testing.T) {
	tr := NewTracker(10)
	a := New("a", nil)
	b := New("b", nil)
	tr.Create(a)
	tr.Create(b)
	tr.SetProcessing(b.ID, 10)
	tr.SetCompleted(b.ID, "url")

	jobs, total := tr.List(10, 0, "")
	if total != 2 || len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d/%d", len(jobs), total)
	}

	completed, total := tr.List(10, 0, "completed")
	if total != 1 || completed[0].ID != b.ID {
		t.Errorf("expected only completed job, got %d", total)
	}

	stats := tr.Stats()
	if stats.Pending != 1 || stats.Completed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
