package watch

import (
	"os"
	"path/filepath"

	"github.com/rjeczalik/notify"

	"revsync/internal/events"
	"revsync/internal/util"
)

// Watcher observes the local sync root recursively and publishes
// EventFileSaved on the global bus for every written or created file. The
// scheduler subscribes and turns those into debounced uploads.
type Watcher struct {
	root string
	ch   chan notify.EventInfo
	done chan struct{}
}

// NewWatcher creates a watcher rooted at the absolute local sync root.
func NewWatcher(root string) *Watcher {
	return &Watcher{root: root}
}

// Start begins watching and dispatching events until Stop is called.
func (w *Watcher) Start() error {
	w.ch = make(chan notify.EventInfo, 100)
	w.done = make(chan struct{})

	pattern := filepath.Join(w.root, "...")
	if err := notify.Watch(pattern, w.ch, notify.Create, notify.Write, notify.Rename); err != nil {
		return err
	}

	events.GlobalBus.Publish(events.EventWatcherStarted)
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.ch:
			if !ok {
				return
			}
			info, err := os.Stat(ev.Path())
			if err != nil || info.IsDir() {
				continue
			}
			events.GlobalBus.Publish(events.EventFileSaved, ev.Path())
		case <-w.done:
			return
		}
	}
}

// Stop tears the watcher down and announces it on the bus.
func (w *Watcher) Stop() {
	defer func() {
		if r := recover(); r != nil {
			util.Default.Printf("⚠️  notify.Stop panic recovered: %v\n", r)
		}
	}()
	close(w.done)
	notify.Stop(w.ch)
	events.GlobalBus.Publish(events.EventWatcherStopped)
}
