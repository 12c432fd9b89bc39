// Package intf is the interface configuration core: it consumes change
// event batches from the datastore, drives them through per-leaf handlers
// as one atomic transaction, reconciles full interface state after
// forwarding-plane restarts, and derives externally visible link status.
package intf

import (
	"context"
	"strconv"
	"strings"

	"github.com/onyx-network/onyx/pkg/datastore"
	"github.com/onyx-network/onyx/pkg/driver"
	"github.com/onyx-network/onyx/pkg/util"
)

// Driver is the forwarding-plane surface the core consumes. driver.Driver
// implements it; unit tests substitute fakes.
type Driver interface {
	Ifnames() []string
	ActivePortMap() driver.PortMap
	UpdatePortMap(m driver.PortMap) (bool, error)
	Restart(ctx context.Context) error
	WaitReady(ctx context.Context) error

	RawOperStatus(name string) string
	PortEntry(name string) (map[string]string, error)
	SetPortField(name, field, value string) error
	GetPortField(name, field string) (string, error)
	DeletePortField(name, field string) error

	VendorPortCommand(ctx context.Context, name string, args ...string) error
	PortsInfo(ctx context.Context, names []string) (map[string]driver.PortInfo, error)
	DefaultInterfaceType(name string) string

	CacheCounters() error
	Counters(name string) (map[string]uint64, error)

	VLANMemberships(name string) ([]driver.VLANMembership, error)
	SetVLANMember(vid int, name, taggingMode string) error
	RemoveVLANMember(vid int, name string) error

	SubscribeLinkState(ctx context.Context) (<-chan string, error)
}

// Handler is the contract every change handler implements. Validate must be
// side-effect free. Apply performs the external effect or records a
// deferred intent on the transaction context. Revert compensates an
// already-performed Apply when a later handler in the same batch fails.
type Handler interface {
	Validate(tx *TxContext) error
	Apply(tx *TxContext) error
	Revert(tx *TxContext) error
}

// TxContext is scoped to exactly one commit batch and owned by the
// in-flight coordinator run. The configuration snapshot reflects the
// post-change tree and is built once, on first use.
type TxContext struct {
	srv *Server
	ctx context.Context
	cfg *datastore.Config

	resync    bool
	advSpeeds map[string]bool
}

func newTxContext(s *Server) *TxContext {
	return &TxContext{srv: s, ctx: s.baseCtx(), advSpeeds: make(map[string]bool)}
}

// Ctx is the lifetime context external calls made from handlers run under.
func (tx *TxContext) Ctx() context.Context {
	return tx.ctx
}

// Config returns the lazily-built post-change configuration snapshot.
func (tx *TxContext) Config() (*datastore.Config, error) {
	if tx.cfg == nil {
		cfg, err := tx.srv.store.RunningConfig()
		if err != nil {
			return nil, err
		}
		tx.cfg = cfg
	}
	return tx.cfg, nil
}

// RequestResync flags the batch as requiring a full reconcile pass. All
// other deferred actions for the batch are superseded.
func (tx *TxContext) RequestResync() {
	tx.resync = true
}

// DeferAdvertisedSpeeds records that the interface needs one coalesced
// advertised-speed push in the post phase.
func (tx *TxContext) DeferAdvertisedSpeeds(name string) {
	tx.advSpeeds[name] = true
}

// DropAdvertisedSpeeds withdraws a recorded push intent.
func (tx *TxContext) DropAdvertisedSpeeds(name string) {
	delete(tx.advSpeeds, name)
}

// ifHandler is the base of every per-interface handler: it carries the
// triggering event and the owning interface name extracted from the path.
type ifHandler struct {
	srv  *Server
	ev   datastore.ChangeEvent
	name string
}

// newIfHandler extracts and verifies the owning interface. An unrecognized
// name is a fail-fast construction error, not a validation failure.
func newIfHandler(s *Server, ev datastore.ChangeEvent) (ifHandler, error) {
	name := ev.Path.KeyFor("interface")
	if name == "" || !s.knownInterface(name) {
		return ifHandler{}, util.NewUnknownInterfaceError(name)
	}
	return ifHandler{srv: s, ev: ev, name: name}, nil
}

func (h *ifHandler) Revert(tx *TxContext) error { return nil }

// knownInterface reports whether a logical name maps onto a known physical
// port with a plausible channel index. Channels created by a breakout still
// pending reconcile count as known.
func (s *Server) knownInterface(name string) bool {
	port := util.PortOfInterface(name)
	if _, ok := s.defaults[port]; !ok {
		return false
	}
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return false
	}
	ch, err := strconv.Atoi(name[idx+1:])
	return err == nil && ch >= 1 && ch <= 4
}

// noopHandler satisfies the contract with zero effects. Structural leaves
// (list keys, config name echoes) bind to it.
type noopHandler struct{}

func (noopHandler) Validate(*TxContext) error { return nil }
func (noopHandler) Apply(*TxContext) error    { return nil }
func (noopHandler) Revert(*TxContext) error   { return nil }
