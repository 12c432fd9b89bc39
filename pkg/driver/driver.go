package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/onyx-network/onyx/pkg/util"
)

// Driver is the forwarding-plane facade: PORT-table reads and writes,
// counters with a relative baseline, vendor commands, and the restart
// lifecycle through the orchestrator. One Driver serves one device.
type Driver struct {
	Config     *ConfigDBClient
	Appl       *ApplDBClient
	CountersDB *CountersDBClient
	Vendor     *VendorCLI
	Orch       Orchestrator

	mu        sync.Mutex
	portMap   PortMap
	baselines map[string]map[string]uint64
}

// Options configures a Driver.
type Options struct {
	RedisAddr     string
	VendorCommand string
	VendorTimeout time.Duration
	PortMapPath   string
	RestartCmd    []string

	// InitialPortMap seeds the active map until the first reconcile
	// derives the desired one (all ports unchannelized by default).
	InitialPortMap PortMap
}

// New creates a Driver with clients for every state-store database.
func New(opts Options) *Driver {
	appl := NewApplDBClient(opts.RedisAddr)
	return &Driver{
		Config:     NewConfigDBClient(opts.RedisAddr),
		Appl:       appl,
		CountersDB: NewCountersDBClient(opts.RedisAddr),
		Vendor:     NewVendorCLI(opts.VendorCommand, opts.VendorTimeout),
		Orch:       NewExecOrchestrator(opts.PortMapPath, opts.RestartCmd, appl),
		portMap:    opts.InitialPortMap.Clone(),
		baselines:  make(map[string]map[string]uint64),
	}
}

// Connect verifies connectivity to all state-store databases.
func (d *Driver) Connect() error {
	if err := d.Config.Connect(); err != nil {
		return fmt.Errorf("config db: %w", err)
	}
	if err := d.Appl.Connect(); err != nil {
		return fmt.Errorf("app db: %w", err)
	}
	if err := d.CountersDB.Connect(); err != nil {
		return fmt.Errorf("counters db: %w", err)
	}
	return nil
}

// Close releases all connections.
func (d *Driver) Close() error {
	d.Config.Close()
	d.Appl.Close()
	return d.CountersDB.Close()
}

// Ifnames returns the logical interface names of the active port map.
func (d *Driver) Ifnames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.portMap.Ifnames()
}

// ActivePortMap returns a copy of the active port map.
func (d *Driver) ActivePortMap() PortMap {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.portMap.Clone()
}

// UpdatePortMap pushes the desired map to the orchestrator and, on
// success, makes it the active map. Returns whether the map changed.
func (d *Driver) UpdatePortMap(m PortMap) (bool, error) {
	changed, err := d.Orch.UpdatePortMap(m)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	d.portMap = m.Clone()
	d.mu.Unlock()
	return changed, nil
}

// Restart asks the orchestrator to restart the forwarding plane.
func (d *Driver) Restart(ctx context.Context) error {
	return d.Orch.Restart(ctx)
}

// WaitReady blocks until the forwarding plane is ready or ctx expires.
func (d *Driver) WaitReady(ctx context.Context) error {
	return d.Orch.WaitReady(ctx)
}

// RawOperStatus returns the driver-reported oper status of an interface,
// "" when the forwarding plane has not reported one. Read failures are
// logged and reported as unknown; the resolver treats both the same.
func (d *Driver) RawOperStatus(name string) string {
	v, err := d.Appl.OperStatus(name)
	if err != nil {
		util.WithInterface(name).Warnf("oper status read failed: %v", err)
		return ""
	}
	return v
}

// SetPortField writes one PORT-table field.
func (d *Driver) SetPortField(name, field, value string) error {
	return d.Config.SetPortField(name, field, value)
}

// GetPortField reads one PORT-table field, "" if unset.
func (d *Driver) GetPortField(name, field string) (string, error) {
	return d.Config.GetPortField(name, field)
}

// DeletePortField removes one PORT-table field.
func (d *Driver) DeletePortField(name, field string) error {
	return d.Config.DeletePortField(name, field)
}

// SubscribeLinkState returns a feed of interface names whose runtime state
// changed, driven by the state store's keyspace notifications.
func (d *Driver) SubscribeLinkState(ctx context.Context) (<-chan string, error) {
	return d.Appl.Subscribe(ctx)
}

// PortEntry reads the APP_DB PORT_TABLE hash of an interface.
func (d *Driver) PortEntry(name string) (map[string]string, error) {
	return d.Appl.PortEntry(name)
}

// VendorPortCommand issues a vendor control-channel command for a port.
func (d *Driver) VendorPortCommand(ctx context.Context, name string, args ...string) error {
	_, err := d.Vendor.PortCommand(ctx, name, args...)
	return err
}

// PortsInfo queries vendor-reported state for the given interfaces.
// Interfaces the vendor shell cannot report are omitted from the result.
func (d *Driver) PortsInfo(ctx context.Context, names []string) (map[string]PortInfo, error) {
	out := make(map[string]PortInfo, len(names))
	for _, name := range names {
		info, err := d.Vendor.PortInfoQuery(ctx, name)
		if err != nil {
			util.WithInterface(name).Debugf("vendor port info unavailable: %v", err)
			continue
		}
		out[name] = info
	}
	return out, nil
}

// DefaultInterfaceType derives the default media type of an interface from
// its port's channelization: an unchannelized port runs all four lanes.
func (d *Driver) DefaultInterfaceType(name string) string {
	d.mu.Lock()
	profile, ok := d.portMap[util.PortOfInterface(name)]
	d.mu.Unlock()
	if !ok {
		return ""
	}
	switch profile.Channels {
	case 4:
		return "CR"
	case 2:
		return "CR2"
	default:
		return "CR4"
	}
}

// CacheCounters snapshots the cumulative counters of every interface so
// subsequent reads report relative to this baseline. A restart would reset
// hardware counters to zero; re-arming the baseline keeps reads monotonic
// from the operator's point of view. Idempotent.
func (d *Driver) CacheCounters() error {
	names := d.Ifnames()
	baselines := make(map[string]map[string]uint64, len(names))
	for _, name := range names {
		counters, err := d.CountersDB.PortCounters(name)
		if err != nil {
			util.WithInterface(name).Debugf("counter snapshot skipped: %v", err)
			continue
		}
		baselines[name] = counters
	}

	d.mu.Lock()
	d.baselines = baselines
	d.mu.Unlock()
	util.Infof("counter baselines cached for %d interfaces", len(baselines))
	return nil
}

// Counters returns an interface's counters relative to the cached
// baseline. Counters without a baseline are returned as-is.
func (d *Driver) Counters(name string) (map[string]uint64, error) {
	current, err := d.CountersDB.PortCounters(name)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	base := d.baselines[name]
	d.mu.Unlock()

	if base == nil {
		return current, nil
	}
	out := make(map[string]uint64, len(current))
	for k, v := range current {
		if b, ok := base[k]; ok && b <= v {
			out[k] = v - b
		} else {
			out[k] = v
		}
	}
	return out, nil
}

// VLANMemberships returns the VLAN bindings of an interface.
func (d *Driver) VLANMemberships(name string) ([]VLANMembership, error) {
	return d.Config.VLANMemberships(name)
}

// SetVLANMember binds an interface to a VLAN.
func (d *Driver) SetVLANMember(vid int, name, taggingMode string) error {
	if err := d.Config.EnsureVLAN(vid); err != nil {
		return err
	}
	return d.Config.SetVLANMember(vid, name, taggingMode)
}

// RemoveVLANMember removes a VLAN binding.
func (d *Driver) RemoveVLANMember(vid int, name string) error {
	return d.Config.RemoveVLANMember(vid, name)
}
