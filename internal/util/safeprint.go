package util

import (
	"fmt"
	"sync"
)

// SafePrinter serializes terminal output so progress lines, watcher events
// and prompt output from different goroutines never interleave.
type SafePrinter struct {
	mu        sync.Mutex
	suspended bool
}

// Default is the shared SafePrinter used across the application.
var Default = &SafePrinter{}

func (s *SafePrinter) Print(a ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Print(a...)
}

func (s *SafePrinter) Printf(format string, a ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Printf(format, a...)
}

func (s *SafePrinter) Println(a ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Println(a...)
}

// StatusLine clears the current terminal line and prints a single status
// line in its place. Used for per-file progress during bulk transfers.
func (s *SafePrinter) StatusLine(format string, a ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Print("\r\x1b[2K")
	fmt.Printf(format, a...)
}

// ClearLine clears the current terminal line.
func (s *SafePrinter) ClearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		return
	}
	fmt.Print("\r\x1b[2K")
}

// Suspend stops all output until Resume is called. Interactive prompts use
// this while they own the terminal.
func (s *SafePrinter) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = true
}

// Resume re-enables output after Suspend.
func (s *SafePrinter) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = false
}
