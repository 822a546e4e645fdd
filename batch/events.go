package batch

import "time"

// EventKind classifies batch events
type EventKind string

const (
	EventStatus    EventKind = "status"
	EventProgress  EventKind = "progress"
	EventRowDone   EventKind = "row_done"
	EventRowFailed EventKind = "row_failed"
	EventError     EventKind = "error"
	EventComplete  EventKind = "complete"
)

// DefaultEventBuffer is the capacity of the events channel
const DefaultEventBuffer = 256

// Event is one entry of a run's event stream
type Event struct {
	Kind    EventKind `json:"kind"`
	RunID   string    `json:"run_id"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`

	// progress
	Current int `json:"current,omitempty"` // 1-based position in the selection
	Total   int `json:"total,omitempty"`

	// row_done, row_failed
	Row    *int             `json:"row,omitempty"`
	RowID  string           `json:"row_id,omitempty"`
	Step   RowStep          `json:"step,omitempty"`
	Report *GeneratedReport `json:"report,omitempty"`

	// row_failed, error
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	// complete
	Summary *Summary `json:"summary,omitempty"`
}

// Summary closes a run
type Summary struct {
	Reports   int  `json:"reports"`
	Failures  int  `json:"failures"`
	Selected  int  `json:"selected"`
	Cancelled bool `json:"cancelled"`
}
