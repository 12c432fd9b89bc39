package intf

import (
	"context"
	"fmt"
	"sync"

	"github.com/onyx-network/onyx/pkg/driver"
	"github.com/onyx-network/onyx/pkg/util"
)

// callGate parks a driver call so a test can hold a commit or a reconcile
// run open at a known point. The first parked call signals entered; every
// parked call blocks until release is closed.
type callGate struct {
	entered chan struct{}
	release chan struct{}
}

func newCallGate() *callGate {
	return &callGate{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (g *callGate) wait() {
	if g == nil {
		return
	}
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
}

// fakeDriver records every write in arrival order so tests can assert
// atomicity and revert ordering against the exact call sequence.
type fakeDriver struct {
	mu sync.Mutex

	portMap   driver.PortMap
	fields    map[string]map[string]string
	rawStatus map[string]string
	vlans     map[string]map[int]string
	infos     map[string]driver.PortInfo

	writeLog []string

	failSetField map[string]bool // "name/field"
	failVendor   bool

	// Gates are installed before any concurrency starts.
	gateUpdate   *callGate
	gateSetField *callGate

	updateCalls  int
	restartCalls int
	cacheCalls   int

	linkFeed chan string
}

func newFakeDriver(initial driver.PortMap) *fakeDriver {
	return &fakeDriver{
		portMap:      initial.Clone(),
		fields:       make(map[string]map[string]string),
		rawStatus:    make(map[string]string),
		vlans:        make(map[string]map[int]string),
		infos:        make(map[string]driver.PortInfo),
		failSetField: make(map[string]bool),
		linkFeed:     make(chan string, 16),
	}
}

func (f *fakeDriver) log(format string, args ...interface{}) {
	f.writeLog = append(f.writeLog, fmt.Sprintf(format, args...))
}

func (f *fakeDriver) Ifnames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.portMap.Ifnames()
}

func (f *fakeDriver) ActivePortMap() driver.PortMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.portMap.Clone()
}

func (f *fakeDriver) UpdatePortMap(m driver.PortMap) (bool, error) {
	f.gateUpdate.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	changed := !f.portMap.Equal(m)
	f.portMap = m.Clone()
	return changed, nil
}

func (f *fakeDriver) Restart(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restartCalls++
	return nil
}

func (f *fakeDriver) WaitReady(ctx context.Context) error { return nil }

func (f *fakeDriver) RawOperStatus(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rawStatus[name]
}

func (f *fakeDriver) PortEntry(name string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.fields[name]))
	for k, v := range f.fields[name] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeDriver) SetPortField(name, field, value string) error {
	f.gateSetField.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetField[name+"/"+field] {
		return fmt.Errorf("injected failure on %s/%s", name, field)
	}
	if f.fields[name] == nil {
		f.fields[name] = make(map[string]string)
	}
	f.fields[name][field] = value
	f.log("set %s %s=%s", name, field, value)
	return nil
}

func (f *fakeDriver) GetPortField(name, field string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields[name][field], nil
}

func (f *fakeDriver) DeletePortField(name, field string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.fields[name], field)
	f.log("del %s %s", name, field)
	return nil
}

func (f *fakeDriver) VendorPortCommand(ctx context.Context, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failVendor {
		return fmt.Errorf("injected vendor failure on %s", name)
	}
	f.log("vendor %s %v", name, args)
	return nil
}

func (f *fakeDriver) PortsInfo(ctx context.Context, names []string) (map[string]driver.PortInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]driver.PortInfo, len(names))
	for _, name := range names {
		if info, ok := f.infos[name]; ok {
			out[name] = info
		}
	}
	return out, nil
}

func (f *fakeDriver) DefaultInterfaceType(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.portMap[util.PortOfInterface(name)]
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

func (f *fakeDriver) CacheCounters() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheCalls++
	return nil
}

func (f *fakeDriver) Counters(name string) (map[string]uint64, error) {
	return map[string]uint64{}, nil
}

func (f *fakeDriver) VLANMemberships(name string) ([]driver.VLANMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []driver.VLANMembership
	for vid, mode := range f.vlans[name] {
		out = append(out, driver.VLANMembership{VID: vid, TaggingMode: mode})
	}
	return out, nil
}

func (f *fakeDriver) SetVLANMember(vid int, name, taggingMode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vlans[name] == nil {
		f.vlans[name] = make(map[int]string)
	}
	f.vlans[name][vid] = taggingMode
	f.log("vlan add %s %d %s", name, vid, taggingMode)
	return nil
}

func (f *fakeDriver) RemoveVLANMember(vid int, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vlans[name], vid)
	f.log("vlan del %s %d", name, vid)
	return nil
}

func (f *fakeDriver) SubscribeLinkState(ctx context.Context) (<-chan string, error) {
	return f.linkFeed, nil
}

func (f *fakeDriver) writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writeLog))
	copy(out, f.writeLog)
	return out
}
