package core

import (
	"time"

	"github.com/JonMunkholm/leaddesk/internal/dispatch"
	"github.com/JonMunkholm/leaddesk/internal/table"
)

// Dataset is an immutable snapshot of the fetched leads.
type Dataset struct {
	Records   []table.Record
	Version   uint64    // bumped on every successful refresh; 0 before the first
	FetchedAt time.Time
	Err       error // last refresh failure; nil once a later refresh succeeds
}

// Loaded reports whether at least one refresh has succeeded.
func (d Dataset) Loaded() bool { return d.Version > 0 }

// BatchStatus is the externally visible state of a batch, live or finished.
type BatchStatus struct {
	ID           string            `json:"id"`
	TemplateName string            `json:"templateName"`
	Targets      int               `json:"targets"`
	Progress     dispatch.Progress `json:"progress"`
	Finished     bool              `json:"finished"`
	Failed       int               `json:"failed"`
	HasReport    bool              `json:"hasReport"`
	ExportError  string            `json:"exportError,omitempty"`
	StartedAt    time.Time         `json:"startedAt"`
	FinishedAt   *time.Time        `json:"finishedAt,omitempty"`
}
