package backup

import "snapvault/internal/model"

// Event is one item on the backup event stream: either a phase-transition
// status line or a progress snapshot, never both.
type Event struct {
	Status   string          `json:"status,omitempty"`
	Progress *model.Progress `json:"progress,omitempty"`
}

// Sink consumes events in emission order. Sinks must not block for long;
// the orchestrator calls them inline.
type Sink func(Event)

const (
	StatusInitializing = "Initializing"
	StatusStarting     = "Starting backup session"
	StatusContacts     = "Backing up contacts"
	StatusPhotos       = "Backing up photos"
	StatusVideos       = "Backing up videos"
	StatusCompleting   = "Completing backup"
	StatusCompleted    = "Backup completed"
	StatusFailed       = "Backup failed"
)
