package datastore

// Operation is the kind of change a ChangeEvent describes.
type Operation string

const (
	OpCreated  Operation = "created"
	OpModified Operation = "modified"
	OpDeleted  Operation = "deleted"
)

// ChangeEvent is the unit of incremental configuration change. Events are
// produced once per commit, consumed within one transaction, and never
// persisted.
type ChangeEvent struct {
	Path     Path
	Op       Operation
	OldValue string
	NewValue string
}

// IsSet reports whether the event establishes a value (created or modified)
// as opposed to removing one.
func (e ChangeEvent) IsSet() bool {
	return e.Op == OpCreated || e.Op == OpModified
}

// ChangeCallback receives one commit's worth of change events. Returning an
// error rejects the commit: the store rolls the candidate back and no state
// observably changes.
type ChangeCallback func(events []ChangeEvent) error

// RPCHandler handles an operation subscribed via SubscribeRPC.
type RPCHandler func(params map[string]string) error

// Notification is an event emitted through SendNotification.
type Notification struct {
	Name    string
	Payload map[string]string
}
