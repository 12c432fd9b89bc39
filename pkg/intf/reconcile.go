package intf

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/onyx-network/onyx/pkg/audit"
	"github.com/onyx-network/onyx/pkg/datastore"
	"github.com/onyx-network/onyx/pkg/driver"
	"github.com/onyx-network/onyx/pkg/util"
)

// attrPushOrder fixes the per-interface attribute replay order of a
// reconcile pass. Link parameters go first so the port negotiates correctly
// before it is brought up.
var attrPushOrder = []string{
	"auto-negotiate",
	"advertised-speeds",
	"mtu",
	"fec",
	"interface-type",
	"speed",
	"admin-status",
	"description",
}

// ReconcileEngine resynchronizes full interface state: port-map derivation,
// conditional forwarding-plane restart, default fill, attribute replay, and
// subsystem fan-out. Requests overlap through a single-slot pending queue
// drained by one loop; a run in progress is never interleaved with.
type ReconcileEngine struct {
	srv          *Server
	pending      chan struct{}
	readyTimeout time.Duration
}

func newReconcileEngine(s *Server, readyTimeout time.Duration) *ReconcileEngine {
	if readyTimeout <= 0 {
		readyTimeout = 3 * time.Minute
	}
	return &ReconcileEngine{
		srv:          s,
		pending:      make(chan struct{}, 1),
		readyTimeout: readyTimeout,
	}
}

// Request schedules a reconcile run. A request arriving while one is
// already pending coalesces with it.
func (r *ReconcileEngine) Request() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

// Run drains the pending queue until ctx is done.
func (r *ReconcileEngine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.pending:
			start := time.Now()
			err := r.runOnce(ctx)
			if err != nil {
				r.srv.metrics.ReconcileFailures.Inc()
				util.WithOperation("reconcile").Errorf("run failed: %v", err)
			}

			ev := audit.NewEvent(audit.OpReconcile).WithDuration(time.Since(start))
			if err != nil {
				ev.WithError(err)
			} else {
				ev.WithSuccess()
			}
			if aerr := audit.Log(ev); aerr != nil {
				util.Warnf("audit record failed: %v", aerr)
			}
		}
	}
}

// runOnce executes one full pass. Commits are rejected for its duration;
// the busy flag clears on every outcome so a failed run never wedges the
// adapter.
func (r *ReconcileEngine) runOnce(ctx context.Context) error {
	s := r.srv
	// The run owns the commit/reconcile mutex end to end: a commit already
	// mid-pipeline finishes before the replay starts, and no new commit can
	// interleave with it. The flag clears before the mutex releases.
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.setRebooting(true)
	defer s.setRebooting(false)

	s.metrics.ReconcileRuns.Inc()
	start := time.Now()
	defer func() {
		s.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}()

	cfg, err := s.store.RunningConfig()
	if err != nil {
		return fmt.Errorf("%w: reading configuration: %v", util.ErrReconcileFailed, err)
	}

	desired := r.derivePortMap(cfg)
	changed, err := s.drv.UpdatePortMap(desired)
	if err != nil {
		return fmt.Errorf("%w: pushing port map: %v", util.ErrReconcileFailed, err)
	}

	if changed {
		if err := s.drv.Restart(ctx); err != nil {
			return fmt.Errorf("%w: restarting forwarding plane: %v", util.ErrReconcileFailed, err)
		}
		wctx, cancel := context.WithTimeout(ctx, r.readyTimeout)
		err := s.drv.WaitReady(wctx)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: %v", util.ErrReconcileFailed, err)
		}
	} else {
		// No restart means hardware counters kept counting; re-arm the
		// baseline so reads stay relative to this pass.
		if err := s.drv.CacheCounters(); err != nil {
			util.Warnf("counter baseline refresh failed: %v", err)
		}
	}

	for _, name := range s.drv.Ifnames() {
		r.pushInterface(ctx, cfg, name)
	}

	for _, sub := range s.subsystems {
		if err := sub.Reconcile(ctx); err != nil {
			return fmt.Errorf("%w: subsystem %s: %v", util.ErrReconcileFailed, sub.Name(), err)
		}
	}
	return nil
}

// derivePortMap computes the desired physical port map from the breakout
// configuration: a port whose primary declares a complete breakout runs
// that channelization, every other port runs its platform default.
func (r *ReconcileEngine) derivePortMap(cfg *datastore.Config) driver.PortMap {
	desired := make(driver.PortMap, len(r.srv.defaults))
	for port, profile := range r.srv.defaults {
		ic := cfg.Interface(util.ChannelInterfaceName(port, 1))
		if ic != nil && ic.Ethernet.Breakout.Complete() {
			desired[port] = driver.PortProfile{
				Channels: ic.Ethernet.Breakout.NumChannels,
				Speed:    util.SpeedSchemaToTable(ic.Ethernet.Breakout.ChannelSpeed),
			}
		} else {
			desired[port] = profile
		}
	}
	return desired
}

// interfaceAttrs flattens one interface's desired attributes, filling unset
// leaves with schema defaults.
func (r *ReconcileEngine) interfaceAttrs(cfg *datastore.Config, name string) map[string]string {
	s := r.srv
	attrs := map[string]string{
		"admin-status":   s.schema.DefaultFor("admin-status"),
		"mtu":            s.schema.DefaultFor("mtu"),
		"fec":            s.schema.DefaultFor("fec"),
		"auto-negotiate": s.schema.DefaultFor("enabled"),
		"interface-type": s.drv.DefaultInterfaceType(name),
		"speed":          s.defaultSpeedTable(cfg, name),
	}

	ic := cfg.Interface(name)
	if ic == nil {
		return attrs
	}
	if ic.AdminStatus != "" {
		attrs["admin-status"] = ic.AdminStatus
	}
	if ic.Description != "" {
		attrs["description"] = ic.Description
	}
	if ic.Ethernet.MTU != "" {
		attrs["mtu"] = ic.Ethernet.MTU
	}
	if ic.Ethernet.FEC != "" {
		attrs["fec"] = ic.Ethernet.FEC
	}
	if ic.Ethernet.InterfaceType != "" {
		attrs["interface-type"] = ic.Ethernet.InterfaceType
	}
	if ic.Ethernet.Speed != "" {
		attrs["speed"] = util.SpeedSchemaToTable(ic.Ethernet.Speed)
	}
	if ic.Ethernet.AutoNegotiate.Enabled != "" {
		attrs["auto-negotiate"] = ic.Ethernet.AutoNegotiate.Enabled
	}
	if len(ic.Ethernet.AutoNegotiate.AdvertisedSpeeds) > 0 {
		attrs["advertised-speeds"] = util.SpeedVendorArg(ic.Ethernet.AutoNegotiate.AdvertisedSpeeds)
	}
	return attrs
}

// pushInterface replays one interface's attributes to their sinks in the
// fixed order. Unrecognized attributes are logged and skipped, and a push
// failure degrades to a log line: reconciliation converges what it can.
func (r *ReconcileEngine) pushInterface(ctx context.Context, cfg *datastore.Config, name string) {
	attrs := r.interfaceAttrs(cfg, name)

	ordered := make(map[string]bool, len(attrPushOrder))
	keys := make([]string, 0, len(attrs))
	for _, k := range attrPushOrder {
		if _, ok := attrs[k]; ok {
			keys = append(keys, k)
			ordered[k] = true
		}
	}
	rest := make([]string, 0, len(attrs))
	for k := range attrs {
		if !ordered[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	for _, key := range keys {
		if err := r.pushAttr(ctx, name, key, attrs[key]); err != nil {
			util.WithInterface(name).Errorf("pushing %s failed: %v", key, err)
		}
	}
}

func (r *ReconcileEngine) pushAttr(ctx context.Context, name, key, value string) error {
	if value == "" {
		return nil
	}
	s := r.srv
	switch key {
	case "admin-status":
		return s.drv.SetPortField(name, "admin_status", strings.ToLower(value))
	case "description":
		return s.drv.SetPortField(name, "description", value)
	case "mtu":
		return s.drv.SetPortField(name, "mtu", value)
	case "fec":
		return s.drv.SetPortField(name, "fec", strings.ToLower(value))
	case "speed":
		return s.drv.SetPortField(name, "speed", value)
	case "interface-type":
		return s.drv.VendorPortCommand(ctx, name, "if="+strings.ToLower(value))
	case "auto-negotiate":
		return s.drv.VendorPortCommand(ctx, name, anArg(value))
	case "advertised-speeds":
		return s.drv.VendorPortCommand(ctx, name, "adv="+value)
	default:
		util.WithInterface(name).Warnf("unrecognized attribute %s, skipping", key)
		return nil
	}
}
