package intf

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/onyx-network/onyx/pkg/datastore"
	"github.com/onyx-network/onyx/pkg/driver"
	"github.com/onyx-network/onyx/pkg/util"
)

func testPlatform() driver.PortMap {
	return driver.PortMap{
		"Ethernet0": {Channels: 1, Speed: "100G"},
		"Ethernet4": {Channels: 1, Speed: "100G"},
		"Ethernet8": {Channels: 1, Speed: "100G"},
	}
}

// newTestServer wires a MemStore, a fake driver, and a coordinator. The
// store delivers commits straight into HandleChanges.
func newTestServer(t *testing.T) (*Server, *datastore.MemStore, *fakeDriver) {
	t.Helper()

	store := datastore.NewMemStore(datastore.InterfacesSchema())
	drv := newFakeDriver(testPlatform())
	srv, err := NewServer(store, drv, Options{PlatformDefaults: testPlatform()})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	store.SubscribeChanges(srv.HandleChanges)
	return srv, store, drv
}

func mustSet(t *testing.T, store *datastore.MemStore, path, value string) {
	t.Helper()
	if err := store.Set(path, value); err != nil {
		t.Fatalf("Set %s: %v", path, err)
	}
}

func mustApply(t *testing.T, store *datastore.MemStore) {
	t.Helper()
	if err := store.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

// ===========================================================================
// commit pipeline
// ===========================================================================

func TestCommitAppliesPortFields(t *testing.T) {
	_, store, drv := newTestServer(t)

	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/config/admin-status", "UP")
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu", "9100")
	mustApply(t, store)

	fields, _ := drv.PortEntry("Ethernet0_1")
	if fields["admin_status"] != "up" {
		t.Errorf("admin_status = %q, want %q", fields["admin_status"], "up")
	}
	if fields["mtu"] != "9100" {
		t.Errorf("mtu = %q, want %q", fields["mtu"], "9100")
	}
}

func TestValidationFailureLeavesZeroWrites(t *testing.T) {
	_, store, drv := newTestServer(t)

	// The mtu event sorts before the speed event, so a strict sequential
	// applier would have written mtu before speed validation had a say.
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu", "4000")
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/config/speed", "SPEED_50G")

	err := store.Apply()
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("Apply error = %v, want ErrValidation", err)
	}
	if writes := drv.writes(); len(writes) != 0 {
		t.Errorf("driver observed writes on rejected commit: %v", writes)
	}
	if _, ok := store.Get("interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu"); ok {
		t.Error("rejected commit left mtu in the running config")
	}
}

func TestApplyFailureRevertsInReverseOrder(t *testing.T) {
	_, store, drv := newTestServer(t)

	// Events arrive sorted: description, fec, mtu. Failing mtu must revert
	// fec then description, in that order.
	drv.failSetField["Ethernet0_1/mtu"] = true
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/config/description", "uplink")
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/config/fec", "RS")
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu", "4000")

	err := store.Apply()
	if err == nil {
		t.Fatal("Apply succeeded, want apply failure")
	}
	var applyErr *util.ApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("Apply error = %T, want *util.ApplyError", err)
	}
	if !strings.Contains(applyErr.Path, "mtu") {
		t.Errorf("ApplyError names %q, want the mtu leaf", applyErr.Path)
	}

	want := []string{
		"set Ethernet0_1 description=uplink",
		"set Ethernet0_1 fec=rs",
		"del Ethernet0_1 fec",
		"del Ethernet0_1 description",
	}
	got := drv.writes()
	if len(got) != len(want) {
		t.Fatalf("write log = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if _, ok := store.Get("interfaces/interface[name=Ethernet0_1]/config/description"); ok {
		t.Error("failed commit left description in the running config")
	}
}

func TestCommitRejectedWhileRebooting(t *testing.T) {
	srv, store, drv := newTestServer(t)

	srv.setRebooting(true)
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu", "4000")

	err := store.Apply()
	if !errors.Is(err, util.ErrRebooting) {
		t.Fatalf("Apply error = %v, want ErrRebooting", err)
	}
	if writes := drv.writes(); len(writes) != 0 {
		t.Errorf("driver observed writes while rebooting: %v", writes)
	}

	// The adapter must return to a commit-capable state.
	srv.setRebooting(false)
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu", "4000")
	mustApply(t, store)
}

func TestValidationCollectsAllBatchFailures(t *testing.T) {
	_, store, _ := newTestServer(t)

	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/config/loopback-mode", "DEEP")
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/config/prbs-mode", "PRBS31")

	err := store.Apply()
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("Apply error = %v, want ErrValidation", err)
	}
	// One rejection reports every failing leaf, not just the first.
	msg := err.Error()
	if !strings.Contains(msg, "DEEP") || !strings.Contains(msg, "PRBS31") {
		t.Errorf("error %q does not report both failures", msg)
	}
}

func TestUnknownInterfaceFailsFast(t *testing.T) {
	_, store, _ := newTestServer(t)

	mustSet(t, store, "interfaces/interface[name=Ethernet99_1]/ethernet/config/mtu", "4000")
	err := store.Apply()
	if !errors.Is(err, util.ErrUnknownEntity) {
		t.Fatalf("Apply error = %v, want ErrUnknownEntity", err)
	}
}

// ===========================================================================
// commit/reconcile mutual exclusion
// ===========================================================================

func TestCommitRejectedDuringReconcileRun(t *testing.T) {
	srv, store, drv := newTestServer(t)
	drv.gateUpdate = newCallGate()

	runDone := make(chan error, 1)
	go func() { runDone <- srv.reconcile.runOnce(context.Background()) }()
	<-drv.gateUpdate.entered

	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu", "4000")
	if err := store.Apply(); !errors.Is(err, util.ErrRebooting) {
		t.Errorf("Apply during reconcile run = %v, want ErrRebooting", err)
	}

	close(drv.gateUpdate.release)
	if err := <-runDone; err != nil {
		t.Fatalf("runOnce: %v", err)
	}

	// The adapter accepts commits again once the run finishes.
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu", "4000")
	mustApply(t, store)
}

func TestReconcileRunWaitsForInFlightCommit(t *testing.T) {
	srv, store, drv := newTestServer(t)
	drv.gateSetField = newCallGate()

	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu", "4000")
	commitDone := make(chan error, 1)
	go func() { commitDone <- store.Apply() }()
	<-drv.gateSetField.entered // commit is mid-apply

	runDone := make(chan error, 1)
	go func() { runDone <- srv.reconcile.runOnce(context.Background()) }()

	close(drv.gateSetField.release)
	if err := <-commitDone; err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := <-runDone; err != nil {
		t.Fatalf("runOnce: %v", err)
	}

	// The run must not replay state while the commit is open: every one of
	// its writes comes after the commit's.
	writes := drv.writes()
	if len(writes) == 0 || writes[0] != "set Ethernet0_1 mtu=4000" {
		t.Fatalf("first driver write = %v, want the in-flight commit's mtu write", writes)
	}
}

// ===========================================================================
// speed validation
// ===========================================================================

func TestSpeedValidation(t *testing.T) {
	tests := []struct {
		name    string
		ifname  string
		speed   string
		wantErr bool
	}{
		{"primary 100G", "Ethernet0_1", "SPEED_100G", false},
		{"primary 40G", "Ethernet0_1", "SPEED_40G", false},
		{"primary 50G rejected", "Ethernet0_1", "SPEED_50G", true},
		{"primary 10G rejected", "Ethernet0_1", "SPEED_10G", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, store, _ := newTestServer(t)
			mustSet(t, store, "interfaces/interface[name="+tt.ifname+"]/ethernet/config/speed", tt.speed)
			err := store.Apply()
			if tt.wantErr && !errors.Is(err, util.ErrValidation) {
				t.Errorf("Apply error = %v, want ErrValidation", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Apply error = %v, want nil", err)
			}
		})
	}
}

func TestSubInterfaceSpeedErrorNamesCandidates(t *testing.T) {
	_, store, _ := newTestServer(t)

	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/breakout/config/num-channels", "4")
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/breakout/config/channel-speed", "SPEED_10G")
	mustApply(t, store)

	mustSet(t, store, "interfaces/interface[name=Ethernet0_2]/ethernet/config/speed", "SPEED_100G")
	err := store.Apply()
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("Apply error = %v, want ErrValidation", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "Ethernet0_2") {
		t.Errorf("error %q does not name the offending interface", msg)
	}
	if !strings.Contains(msg, "SPEED_10G") {
		t.Errorf("error %q does not name the candidate speed", msg)
	}
}

// ===========================================================================
// breakout
// ===========================================================================

func TestBreakoutFlagsResync(t *testing.T) {
	srv, store, _ := newTestServer(t)

	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/breakout/config/num-channels", "4")
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/breakout/config/channel-speed", "SPEED_25G")
	mustApply(t, store)

	select {
	case <-srv.reconcile.pending:
	default:
		t.Error("breakout commit did not schedule a reconcile")
	}
}

func TestBreakoutValidation(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, store *datastore.MemStore)
		want  string
	}{
		{
			name: "non-primary rejected",
			setup: func(t *testing.T, store *datastore.MemStore) {
				mustSet(t, store, "interfaces/interface[name=Ethernet0_2]/ethernet/breakout/config/num-channels", "4")
				mustSet(t, store, "interfaces/interface[name=Ethernet0_2]/ethernet/breakout/config/channel-speed", "SPEED_10G")
			},
			want: "primary",
		},
		{
			name: "channel count alone rejected",
			setup: func(t *testing.T, store *datastore.MemStore) {
				mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/breakout/config/num-channels", "4")
			},
			want: "together",
		},
		{
			name: "ufd member rejected",
			setup: func(t *testing.T, store *datastore.MemStore) {
				mustSet(t, store, "ufd-groups/ufd-group[id=g1]/config/uplink", "Ethernet0_1")
				mustApply(t, store)
				mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/breakout/config/num-channels", "4")
				mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/breakout/config/channel-speed", "SPEED_10G")
			},
			want: "ufd",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, store, _ := newTestServer(t)
			tt.setup(t, store)
			err := store.Apply()
			if !errors.Is(err, util.ErrValidation) {
				t.Fatalf("Apply error = %v, want ErrValidation", err)
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestInterfaceTypeFollowsChannelization(t *testing.T) {
	_, store, _ := newTestServer(t)

	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/breakout/config/num-channels", "4")
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/breakout/config/channel-speed", "SPEED_10G")
	mustApply(t, store)

	// Four channels leave one lane each: single-lane types only.
	for _, tt := range []struct {
		value   string
		wantErr bool
	}{
		{"SR", false},
		{"CR", false},
		{"CR4", true},
		{"LR4", true},
	} {
		mustSet(t, store, "interfaces/interface[name=Ethernet0_2]/ethernet/config/interface-type", tt.value)
		err := store.Apply()
		if tt.wantErr && !errors.Is(err, util.ErrValidation) {
			t.Errorf("interface-type %s: Apply error = %v, want ErrValidation", tt.value, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("interface-type %s: Apply error = %v, want nil", tt.value, err)
		}
	}
}

// ===========================================================================
// fixed-value leaves and deferred pushes
// ===========================================================================

func TestFixedValueLeaves(t *testing.T) {
	tests := []struct {
		path    string
		value   string
		wantErr bool
	}{
		{"interfaces/interface[name=Ethernet0_1]/config/interface-type", "IF_ETHERNET", false},
		{"interfaces/interface[name=Ethernet0_1]/config/loopback-mode", "NONE", false},
		{"interfaces/interface[name=Ethernet0_1]/config/loopback-mode", "DEEP", true},
		{"interfaces/interface[name=Ethernet0_1]/config/prbs-mode", "PRBS31", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			_, store, _ := newTestServer(t)
			mustSet(t, store, tt.path, tt.value)
			err := store.Apply()
			if tt.wantErr && !errors.Is(err, util.ErrValidation) {
				t.Errorf("Apply error = %v, want ErrValidation", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Apply error = %v, want nil", err)
			}
		})
	}
}

func TestAdvertisedSpeedsCoalesceIntoOnePush(t *testing.T) {
	_, store, drv := newTestServer(t)

	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/auto-negotiate/config/advertised-speeds[SPEED_40G]", "SPEED_40G")
	mustSet(t, store, "interfaces/interface[name=Ethernet0_1]/ethernet/auto-negotiate/config/advertised-speeds[SPEED_100G]", "SPEED_100G")
	mustApply(t, store)

	var advPushes []string
	for _, w := range drv.writes() {
		if strings.Contains(w, "adv=") {
			advPushes = append(advPushes, w)
		}
	}
	if len(advPushes) != 1 {
		t.Fatalf("advertised-speed pushes = %v, want exactly one", advPushes)
	}
	if !strings.Contains(advPushes[0], "100g") || !strings.Contains(advPushes[0], "40g") {
		t.Errorf("push %q does not carry both speeds", advPushes[0])
	}
}

// ===========================================================================
// switched-vlan
// ===========================================================================

func TestAccessVLANMembership(t *testing.T) {
	_, store, drv := newTestServer(t)

	mustSet(t, store, "interfaces/interface[name=Ethernet4_1]/switched-vlan/config/interface-mode", "ACCESS")
	mustSet(t, store, "interfaces/interface[name=Ethernet4_1]/switched-vlan/config/access-vlan", "100")
	mustApply(t, store)

	members, _ := drv.VLANMemberships("Ethernet4_1")
	if len(members) != 1 || members[0].VID != 100 || members[0].TaggingMode != "untagged" {
		t.Errorf("memberships = %v, want [100 untagged]", members)
	}
}

func TestTrunkRequiresTrunkMode(t *testing.T) {
	_, store, _ := newTestServer(t)

	mustSet(t, store, "interfaces/interface[name=Ethernet4_1]/switched-vlan/config/interface-mode", "ACCESS")
	mustSet(t, store, "interfaces/interface[name=Ethernet4_1]/switched-vlan/config/trunk-vlans[200]", "200")
	err := store.Apply()
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("Apply error = %v, want ErrValidation", err)
	}
}

func TestModeRemovalRequiresMembershipRemoval(t *testing.T) {
	_, store, _ := newTestServer(t)

	mustSet(t, store, "interfaces/interface[name=Ethernet4_1]/switched-vlan/config/interface-mode", "ACCESS")
	mustSet(t, store, "interfaces/interface[name=Ethernet4_1]/switched-vlan/config/access-vlan", "100")
	mustApply(t, store)

	if err := store.Delete("interfaces/interface[name=Ethernet4_1]/switched-vlan/config/interface-mode"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	err := store.Apply()
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("Apply error = %v, want ErrValidation", err)
	}

	// Removing the whole container in one commit is allowed.
	if err := store.Delete("interfaces/interface[name=Ethernet4_1]/switched-vlan"); err != nil {
		t.Fatalf("Delete subtree: %v", err)
	}
	mustApply(t, store)
}
