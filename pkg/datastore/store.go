package datastore

// Store is the read-and-subscribe surface the adapter core consumes. The
// production engine lives outside this process; MemStore implements the
// same contract in-process for the daemon's embedded mode and for tests.
type Store interface {
	// RunningConfig returns a typed snapshot of the running configuration.
	// During a commit callback the snapshot reflects the post-change view.
	RunningConfig() (*Config, error)

	// Get returns the value of a single leaf and whether it is set.
	Get(path string) (string, bool)

	// FindNode exposes declared schema metadata for a path.
	FindNode(path string) (*SchemaNode, error)

	// SubscribeChanges registers the commit callback. One subscriber owns
	// the module; a non-nil error from the callback rejects the commit.
	SubscribeChanges(cb ChangeCallback)

	// SubscribeRPC registers a handler for a named operation.
	SubscribeRPC(name string, h RPCHandler)

	// SendNotification emits a named notification to stream subscribers.
	SendNotification(name string, payload map[string]string) error
}
