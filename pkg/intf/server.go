package intf

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/onyx-network/onyx/pkg/audit"
	"github.com/onyx-network/onyx/pkg/datastore"
	"github.com/onyx-network/onyx/pkg/driver"
	"github.com/onyx-network/onyx/pkg/util"
)

// Server is the transaction coordinator for the interfaces model: one
// instance owns the handler registry, the reconcile engine, the rebooting
// flag, and the cooperating-subsystem order.
type Server struct {
	store  datastore.Store
	drv    Driver
	schema *datastore.Schema
	tree   *HandlerTree

	// defaults is the platform's unchannelized port map, the baseline the
	// reconcile pass derives the desired map from.
	defaults driver.PortMap

	reconcile  *ReconcileEngine
	subsystems []Subsystem
	metrics    *Metrics

	// opMu serializes whole commit pipelines against whole reconcile runs.
	// The rebooting flag is the observable busy signal; the mutex is the
	// authority.
	opMu sync.Mutex

	mu        sync.Mutex
	ctx       context.Context
	rebooting bool
}

// Options configures a Server.
type Options struct {
	// PlatformDefaults maps each physical port to its unchannelized
	// profile. Required.
	PlatformDefaults driver.PortMap

	// ReadyTimeout bounds the wait for the forwarding plane after a
	// restart. Expiry fails the reconcile run, not the process.
	ReadyTimeout time.Duration

	// Metrics defaults to a private registry when nil.
	Metrics *Metrics
}

// NewServer builds the coordinator and verifies at setup time that every
// declared schema leaf resolves to a handler binding.
func NewServer(store datastore.Store, drv Driver, opts Options) (*Server, error) {
	if len(opts.PlatformDefaults) == 0 {
		return nil, fmt.Errorf("platform defaults required")
	}
	m := opts.Metrics
	if m == nil {
		m = NewMetrics(nil)
	}

	s := &Server{
		store:    store,
		drv:      drv,
		schema:   datastore.InterfacesSchema(),
		tree:     buildHandlerTree(),
		defaults: opts.PlatformDefaults.Clone(),
		metrics:  m,
		ctx:      context.Background(),
	}
	if err := s.tree.verifyCoverage(s.schema); err != nil {
		return nil, err
	}
	s.reconcile = newReconcileEngine(s, opts.ReadyTimeout)
	return s, nil
}

func (s *Server) baseCtx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// RegisterSubsystem appends a cooperating subsystem. Registration order is
// reconcile order.
func (s *Server) RegisterSubsystem(sub Subsystem) {
	s.subsystems = append(s.subsystems, sub)
}

// Start wires the server into the datastore and launches the reconcile
// loop. An initial reconcile is requested so startup converges state.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.store.SubscribeChanges(s.HandleChanges)
	s.store.SubscribeRPC("clear-counters", func(params map[string]string) error {
		err := s.ClearCounters()
		ev := audit.NewEvent(audit.OpClearCounters).WithInterface(params["if-name"])
		if err != nil {
			ev.WithError(err)
		} else {
			ev.WithSuccess()
		}
		if aerr := audit.Log(ev); aerr != nil {
			util.Warnf("audit record failed: %v", aerr)
		}
		return err
	})

	go s.reconcile.Run(ctx)
	s.reconcile.Request()
	return nil
}

// Rebooting reports whether a reconcile run holds the forwarding plane.
func (s *Server) Rebooting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebooting
}

func (s *Server) setRebooting(v bool) {
	s.mu.Lock()
	s.rebooting = v
	s.mu.Unlock()
}

// HandleChanges executes one commit's change events as an atomic
// transaction: pre-check, construct, validate, apply with compensating
// revert, post. A non-nil return rejects the datastore commit.
func (s *Server) HandleChanges(events []datastore.ChangeEvent) error {
	start := time.Now()
	err := s.handleChanges(events)

	ev := audit.NewEvent(audit.OpCommit).
		WithPaths(eventPaths(events)).
		WithDuration(time.Since(start))
	if err != nil {
		ev.WithError(err)
	} else {
		ev.WithSuccess()
	}
	if aerr := audit.Log(ev); aerr != nil {
		util.Warnf("audit record failed: %v", aerr)
	}
	return err
}

func eventPaths(events []datastore.ChangeEvent) []string {
	paths := make([]string, len(events))
	for i, ev := range events {
		paths[i] = ev.Path.String()
	}
	return paths
}

func (s *Server) handleChanges(events []datastore.ChangeEvent) error {
	s.metrics.CommitsTotal.Inc()

	if s.Rebooting() {
		s.metrics.CommitsRejectedBusy.Inc()
		return fmt.Errorf("commit rejected: %w", util.ErrRebooting)
	}
	// The flag check is only the fast path: a run that starts between the
	// check and the pipeline would otherwise interleave its replay with the
	// commit's driver writes. TryLock rather than Lock so a commit racing a
	// starting run is rejected, not queued behind it.
	if !s.opMu.TryLock() {
		s.metrics.CommitsRejectedBusy.Inc()
		return fmt.Errorf("commit rejected: %w", util.ErrRebooting)
	}
	defer s.opMu.Unlock()

	tx := newTxContext(s)
	handlers, err := s.buildHandlers(events)
	if err != nil {
		return err
	}

	// Every handler gets a say before any side effect; validation failures
	// across the batch are collected into one rejection.
	var vb util.ValidationBuilder
	for _, bh := range handlers {
		err := bh.h.Validate(tx)
		if err == nil {
			continue
		}
		var verr *util.ValidationError
		if !errors.As(err, &verr) {
			s.metrics.CommitsValidationFailed.Inc()
			return err
		}
		for _, msg := range verr.Errors {
			vb.AddErrorf("%s", msg)
		}
	}
	if vb.HasErrors() {
		s.metrics.CommitsValidationFailed.Inc()
		return vb.Build()
	}

	for i, bh := range handlers {
		if err := bh.h.Apply(tx); err != nil {
			s.revertApplied(tx, handlers[:i])
			return util.NewApplyError(bh.path, err)
		}
	}

	s.post(tx)
	return nil
}

// revertApplied runs the compensating chain over already-applied handlers
// in reverse order. Revert failures are logged; the commit is failing
// either way and the next reconcile restores authoritative state.
func (s *Server) revertApplied(tx *TxContext, applied []boundHandler) {
	for i := len(applied) - 1; i >= 0; i-- {
		if err := applied[i].h.Revert(tx); err != nil {
			util.WithOperation("revert").Errorf("compensating %s failed: %v", applied[i].path, err)
		}
	}
}

// post drains deferred actions once every apply has succeeded. A flagged
// resync supersedes the other deferred actions: the reconcile pass will
// regenerate complete state anyway.
func (s *Server) post(tx *TxContext) {
	if tx.resync {
		s.reconcile.Request()
		return
	}

	names := make([]string, 0, len(tx.advSpeeds))
	for name := range tx.advSpeeds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.pushAdvertisedSpeeds(tx.ctx, tx, name); err != nil {
			util.WithInterface(name).Errorf("advertised-speed push failed: %v", err)
		}
	}
}

// pushAdvertisedSpeeds coalesces the interface's configured advertised
// speeds into one vendor push. An empty set advertises the fixed speed.
func (s *Server) pushAdvertisedSpeeds(ctx context.Context, tx *TxContext, name string) error {
	cfg, err := tx.Config()
	if err != nil {
		return err
	}
	var speeds []string
	if ic := cfg.Interface(name); ic != nil {
		speeds = ic.Ethernet.AutoNegotiate.AdvertisedSpeeds
	}
	if len(speeds) == 0 {
		speeds = []string{s.defaultSpeedTable(cfg, name)}
	}
	return s.drv.VendorPortCommand(ctx, name, "adv="+util.SpeedVendorArg(speeds))
}

// defaultSpeedTable is the interface's fixed speed in table form: the
// declared channel speed when the port is broken out, the platform default
// otherwise.
func (s *Server) defaultSpeedTable(cfg *datastore.Config, name string) string {
	if d := breakoutDetail(cfg, name); d != nil {
		return util.SpeedSchemaToTable(d.ChannelSpeed)
	}
	if profile, ok := s.defaults[util.PortOfInterface(name)]; ok {
		return profile.Speed
	}
	return ""
}

// ClearCounters re-arms the relative-counter baseline. Idempotent.
func (s *Server) ClearCounters() error {
	return s.drv.CacheCounters()
}

// ResolveStatus derives the visible status of one interface from the live
// driver signal and the running UFD topology.
func (s *Server) ResolveStatus(name string) (OperStatus, error) {
	cfg, err := s.store.RunningConfig()
	if err != nil {
		return StatusUnknown, err
	}
	return ResolveOperStatus(s.drv.RawOperStatus, cfg.UFDGroups, name), nil
}

// IsUFDPort exposes group membership to cooperating subsystems.
func (s *Server) IsUFDPort(name string) (bool, error) {
	cfg, err := s.store.RunningConfig()
	if err != nil {
		return false, err
	}
	return IsUFDPort(cfg.UFDGroups, name), nil
}

// IsDownlinkPort exposes downlink membership and the associated uplinks.
func (s *Server) IsDownlinkPort(name string) (bool, []string, error) {
	cfg, err := s.store.RunningConfig()
	if err != nil {
		return false, nil, err
	}
	down, uplinks := IsDownlinkPort(cfg.UFDGroups, name)
	return down, uplinks, nil
}
