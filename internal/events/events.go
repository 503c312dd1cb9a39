package events

import "github.com/asaskevich/EventBus"

// GlobalBus is the shared event bus for the entire application
var GlobalBus EventBus.Bus

func init() {
	GlobalBus = EventBus.New()
}

// Event types for application-wide coordination
const (
	// Shutdown events
	EventShutdownRequested = "app:shutdown:requested"
	EventShutdownComplete  = "app:shutdown:complete"

	// Watcher events: a file under the sync root was written or created.
	// Payload is the absolute local path.
	EventFileSaved      = "watcher:file:saved"
	EventWatcherStarted = "watcher:started"
	EventWatcherStopped = "watcher:stopped"

	// Scheduler events
	EventUploadScheduled = "scheduler:upload:scheduled"
	EventUploadFired     = "scheduler:upload:fired"
)
