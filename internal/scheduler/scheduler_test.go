package scheduler

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"revsync/internal/exclude"
	"revsync/internal/pathmap"
)

type uploadRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *uploadRecorder) upload(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, p)
}

func (r *uploadRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func newTestScheduler(delay time.Duration, rec *uploadRecorder) *Scheduler {
	root := filepath.FromSlash("/work/project")
	return New(
		delay,
		true,
		pathmap.NewResolver(root, "/srv/app"),
		exclude.NewMatcher([]string{"*.log"}),
		rec.upload,
	)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// Rapid saves of the same path collapse into a single upload.
func TestDebounceCollapsesSaves(t *testing.T) {
	rec := &uploadRecorder{}
	s := newTestScheduler(30*time.Millisecond, rec)
	defer s.Close()

	p := filepath.FromSlash("/work/project/a.txt")
	for i := 0; i < 5; i++ {
		s.Notify(p)
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, time.Second, func() bool { return rec.count() == 1 })
	// give a stray second timer a chance to fire wrongly
	time.Sleep(60 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("expected exactly 1 upload, got %d", rec.count())
	}
}

// Timers for different paths are independent.
func TestPerPathTimersIndependent(t *testing.T) {
	rec := &uploadRecorder{}
	s := newTestScheduler(20*time.Millisecond, rec)
	defer s.Close()

	s.Notify(filepath.FromSlash("/work/project/a.txt"))
	s.Notify(filepath.FromSlash("/work/project/b.txt"))
	// rescheduling a must not disturb b
	s.Notify(filepath.FromSlash("/work/project/a.txt"))

	waitFor(t, time.Second, func() bool { return rec.count() == 2 })
}

func TestIneligiblePathsIgnored(t *testing.T) {
	rec := &uploadRecorder{}
	s := newTestScheduler(10*time.Millisecond, rec)
	defer s.Close()

	// excluded by pattern
	s.Notify(filepath.FromSlash("/work/project/debug.log"))
	// outside the sync root
	s.Notify(filepath.FromSlash("/elsewhere/a.txt"))

	if s.Pending() != 0 {
		t.Fatalf("ineligible paths scheduled timers: %d pending", s.Pending())
	}
	time.Sleep(30 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("ineligible paths uploaded: %v", rec.paths)
	}
}

func TestDisabledSchedulerIgnoresAll(t *testing.T) {
	rec := &uploadRecorder{}
	root := filepath.FromSlash("/work/project")
	s := New(10*time.Millisecond, false,
		pathmap.NewResolver(root, "/srv"), exclude.NewMatcher(nil), rec.upload)
	defer s.Close()

	s.Notify(filepath.Join(root, "a.txt"))
	if s.Pending() != 0 {
		t.Fatalf("disabled scheduler accepted a timer")
	}
}

// Close cancels every outstanding timer; nothing fires afterwards.
func TestCloseCancelsTimers(t *testing.T) {
	rec := &uploadRecorder{}
	s := newTestScheduler(20*time.Millisecond, rec)

	s.Notify(filepath.FromSlash("/work/project/a.txt"))
	s.Notify(filepath.FromSlash("/work/project/b.txt"))
	s.Close()

	if s.Pending() != 0 {
		t.Fatalf("timers survived Close: %d", s.Pending())
	}
	time.Sleep(50 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("upload fired after Close: %v", rec.paths)
	}

	// post-close notifications are no-ops
	s.Notify(filepath.FromSlash("/work/project/c.txt"))
	if s.Pending() != 0 {
		t.Fatalf("Notify after Close scheduled a timer")
	}
}
