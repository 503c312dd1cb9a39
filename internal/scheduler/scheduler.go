package scheduler

import (
	"sync"
	"time"

	"revsync/internal/events"
	"revsync/internal/exclude"
	"revsync/internal/pathmap"
)

// UploadFunc performs the single-file upload a fired timer requests.
type UploadFunc func(localPath string)

// Scheduler debounces save-triggered uploads per file path. Each path owns
// its own timer; a new save for the same path cancels and replaces the
// pending timer, and timers for different paths never affect each other.
type Scheduler struct {
	delay    time.Duration
	enabled  bool
	resolver pathmap.Resolver
	matcher  *exclude.Matcher
	upload   UploadFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// New builds a scheduler. enabled mirrors the auto-upload flag; a disabled
// scheduler ignores every notification.
func New(delay time.Duration, enabled bool, resolver pathmap.Resolver, matcher *exclude.Matcher, upload UploadFunc) *Scheduler {
	return &Scheduler{
		delay:    delay,
		enabled:  enabled,
		resolver: resolver,
		matcher:  matcher,
		upload:   upload,
		timers:   map[string]*time.Timer{},
	}
}

// Notify (re)schedules an upload for localPath after the debounce delay.
// Ineligible paths (auto-upload off, outside the sync root, excluded) are
// ignored. Safe to call from the watcher goroutine.
func (s *Scheduler) Notify(localPath string) {
	if !s.enabled {
		return
	}
	rel, err := s.resolver.Rel(localPath)
	if err != nil {
		return
	}
	if s.matcher.Match(rel) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[localPath]; ok {
		t.Stop()
	}
	s.timers[localPath] = time.AfterFunc(s.delay, func() {
		s.fire(localPath)
	})
	events.GlobalBus.Publish(events.EventUploadScheduled, localPath)
}

func (s *Scheduler) fire(localPath string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, localPath)
	s.mu.Unlock()

	s.upload(localPath)
	events.GlobalBus.Publish(events.EventUploadFired, localPath)
}

// Pending returns the number of outstanding timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close cancels all outstanding timers; no upload fires after Close
// returns and later notifications are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for p, t := range s.timers {
		t.Stop()
		delete(s.timers, p)
	}
}
