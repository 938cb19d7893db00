package monitor

import "time"

// UpdateType names a change to the view.
type UpdateType string

const (
	// UpdateBatch carries the rows added by one batch.
	UpdateBatch UpdateType = "batch"
	// UpdateStatus reports a change of listening state or error label.
	UpdateStatus UpdateType = "status"
	// UpdateCleared reports that rows and counter were reset.
	UpdateCleared UpdateType = "cleared"
)

// Update is published after every change to the view.
type Update struct {
	Timestamp time.Time  `json:"timestamp"`
	Type      UpdateType `json:"type"`
	Rows      []Row      `json:"rows,omitempty"`
	Status    Status     `json:"status"`
}
