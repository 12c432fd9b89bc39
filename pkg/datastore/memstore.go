package datastore

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemStore is an in-process datastore engine implementing the Store
// contract: staged edits, atomic commit with change-event delivery, and a
// rollback when the subscriber rejects the batch.
//
// Commit semantics: Apply stages become visible to RunningConfig before the
// change callback runs, so validators see the post-change tree. If the
// callback returns an error the previous running view is restored and the
// error is returned to the committer; no state observably changes.
type MemStore struct {
	mu      sync.Mutex
	schema  *Schema
	running map[string]string
	staged  map[string]*string // nil value = delete

	commitMu sync.Mutex
	changeCB ChangeCallback

	rpcs    map[string]RPCHandler
	notifMu sync.Mutex
	notifCh []chan Notification
}

// NewMemStore creates an empty store governed by the given schema.
func NewMemStore(schema *Schema) *MemStore {
	return &MemStore{
		schema:  schema,
		running: make(map[string]string),
		staged:  make(map[string]*string),
		rpcs:    make(map[string]RPCHandler),
	}
}

// Set stages a leaf write. The path must be declared in the schema.
func (s *MemStore) Set(path, value string) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	node := s.schema.FindNode(p)
	if node == nil {
		return fmt.Errorf("set %s: path not declared in schema", path)
	}
	if len(node.Enums) > 0 && !node.HasEnum(value) {
		return fmt.Errorf("set %s: %q not in declared range %v", path, value, node.Enums)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v := value
	s.staged[p.String()] = &v
	return nil
}

// Delete stages removal of a leaf or of every leaf under a subtree path.
func (s *MemStore) Delete(path string) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	prefix := p.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := false
	for leaf := range s.running {
		if leaf == prefix || strings.HasPrefix(leaf, prefix+"/") || strings.HasPrefix(leaf, prefix+"[") {
			s.staged[leaf] = nil
			matched = true
		}
	}
	// Deleting something only staged so far just drops the stage.
	for leaf, v := range s.staged {
		if v == nil {
			continue
		}
		if leaf == prefix || strings.HasPrefix(leaf, prefix+"/") || strings.HasPrefix(leaf, prefix+"[") {
			if _, ok := s.running[leaf]; !ok {
				delete(s.staged, leaf)
			} else {
				s.staged[leaf] = nil
			}
			matched = true
		}
	}
	if !matched {
		return fmt.Errorf("delete %s: %w", path, ErrNoSuchLeaf)
	}
	return nil
}

// ErrNoSuchLeaf is returned when a delete matches nothing.
var ErrNoSuchLeaf = fmt.Errorf("no such leaf")

// Apply commits the staged edits: computes the change-event batch, makes
// the candidate visible, and delivers the batch to the subscriber. A
// subscriber error rolls the running view back and is returned unchanged.
// Stages are discarded on both outcomes.
func (s *MemStore) Apply() error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if len(s.staged) == 0 {
		s.mu.Unlock()
		return nil
	}

	prev := make(map[string]string, len(s.running))
	for k, v := range s.running {
		prev[k] = v
	}

	paths := make([]string, 0, len(s.staged))
	for p := range s.staged {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var events []ChangeEvent
	for _, raw := range paths {
		stagedVal := s.staged[raw]
		old, existed := s.running[raw]
		p := MustParsePath(raw)

		switch {
		case stagedVal == nil && existed:
			delete(s.running, raw)
			events = append(events, ChangeEvent{Path: p, Op: OpDeleted, OldValue: old})
		case stagedVal != nil && !existed:
			s.running[raw] = *stagedVal
			events = append(events, ChangeEvent{Path: p, Op: OpCreated, NewValue: *stagedVal})
		case stagedVal != nil && existed && *stagedVal != old:
			s.running[raw] = *stagedVal
			events = append(events, ChangeEvent{Path: p, Op: OpModified, OldValue: old, NewValue: *stagedVal})
		}
	}
	s.staged = make(map[string]*string)
	cb := s.changeCB
	s.mu.Unlock()

	if len(events) == 0 || cb == nil {
		return nil
	}

	if err := cb(events); err != nil {
		s.mu.Lock()
		s.running = prev
		s.mu.Unlock()
		return err
	}
	return nil
}

// DiscardStaged drops pending edits without committing.
func (s *MemStore) DiscardStaged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = make(map[string]*string)
}

// Get returns a running leaf value and whether it is set.
func (s *MemStore) Get(path string) (string, bool) {
	p, err := ParsePath(path)
	if err != nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.running[p.String()]
	return v, ok
}

// Leaves returns a copy of the running leaf map.
func (s *MemStore) Leaves() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.running))
	for k, v := range s.running {
		out[k] = v
	}
	return out
}

// RunningConfig returns a typed snapshot of the running configuration.
func (s *MemStore) RunningConfig() (*Config, error) {
	return BuildConfig(s.Leaves())
}

// FindNode exposes schema metadata for a path.
func (s *MemStore) FindNode(path string) (*SchemaNode, error) {
	n := s.schema.FindNodeString(path)
	if n == nil {
		return nil, fmt.Errorf("find node %s: not declared in schema", path)
	}
	return n, nil
}

// Schema returns the governing schema.
func (s *MemStore) Schema() *Schema {
	return s.schema
}

// SubscribeChanges registers the commit callback.
func (s *MemStore) SubscribeChanges(cb ChangeCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changeCB = cb
}

// SubscribeRPC registers a handler for a named operation.
func (s *MemStore) SubscribeRPC(name string, h RPCHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rpcs[name] = h
}

// CallRPC invokes a subscribed operation handler.
func (s *MemStore) CallRPC(name string, params map[string]string) error {
	s.mu.Lock()
	h := s.rpcs[name]
	s.mu.Unlock()
	if h == nil {
		return fmt.Errorf("rpc %s: %w", name, ErrNoSuchRPC)
	}
	return h(params)
}

// ErrNoSuchRPC is returned for operations nothing has subscribed to.
var ErrNoSuchRPC = fmt.Errorf("no handler subscribed")

// SendNotification delivers a notification to all stream subscribers.
// Slow subscribers are skipped rather than blocking the sender.
func (s *MemStore) SendNotification(name string, payload map[string]string) error {
	n := Notification{Name: name, Payload: payload}
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	for _, ch := range s.notifCh {
		select {
		case ch <- n:
		default:
		}
	}
	return nil
}

// SubscribeNotifications returns a buffered channel of emitted notifications.
func (s *MemStore) SubscribeNotifications(buf int) <-chan Notification {
	ch := make(chan Notification, buf)
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	s.notifCh = append(s.notifCh, ch)
	return ch
}
