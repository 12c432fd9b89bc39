// Package audit records configuration commits and reconcile runs to a
// JSON-lines trail, so an operator can answer "what changed and when" after
// the fact.
package audit

import (
	"fmt"
	"time"
)

// Operation names recorded in the trail.
const (
	OpCommit        = "commit"
	OpReconcile     = "reconcile"
	OpClearCounters = "clear-counters"
)

// Event is one auditable adapter action.
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Operation string        `json:"operation"`
	Paths     []string      `json:"paths,omitempty"`
	Interface string        `json:"interface,omitempty"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Filter defines criteria for querying the trail.
type Filter struct {
	Operation   string
	Interface   string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates an event for an operation, timestamped now.
func NewEvent(operation string) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		Operation: operation,
	}
}

// WithPaths records the leaf paths a commit touched.
func (e *Event) WithPaths(paths []string) *Event {
	e.Paths = paths
	return e
}

// WithInterface scopes the event to one interface.
func (e *Event) WithInterface(name string) *Event {
	e.Interface = name
	return e
}

// WithSuccess marks the event as successful.
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed.
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration.
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
