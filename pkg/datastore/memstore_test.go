package datastore

import (
	"errors"
	"fmt"
	"testing"
)

func newStore(t *testing.T) *MemStore {
	t.Helper()
	return NewMemStore(InterfacesSchema())
}

func set(t *testing.T, s *MemStore, path, value string) {
	t.Helper()
	if err := s.Set(path, value); err != nil {
		t.Fatalf("Set(%s): %v", path, err)
	}
}

// ===========================================================================
// staging and schema enforcement
// ===========================================================================

func TestSetRejectsUndeclaredPath(t *testing.T) {
	s := newStore(t)
	if err := s.Set("interfaces/interface[name=Ethernet0_1]/config/bogus", "x"); err == nil {
		t.Error("undeclared path accepted")
	}
}

func TestSetRejectsOutOfRangeEnum(t *testing.T) {
	s := newStore(t)
	err := s.Set("interfaces/interface[name=Ethernet0_1]/config/admin-status", "SIDEWAYS")
	if err == nil {
		t.Error("out-of-range enum accepted")
	}
}

func TestStagedEditsInvisibleUntilApply(t *testing.T) {
	s := newStore(t)
	set(t, s, "interfaces/interface[name=Ethernet0_1]/config/description", "core uplink")

	if _, ok := s.Get("interfaces/interface[name=Ethernet0_1]/config/description"); ok {
		t.Error("staged edit visible before Apply")
	}
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	v, ok := s.Get("interfaces/interface[name=Ethernet0_1]/config/description")
	if !ok || v != "core uplink" {
		t.Errorf("Get after Apply = (%q, %v)", v, ok)
	}
}

func TestDiscardStaged(t *testing.T) {
	s := newStore(t)
	set(t, s, "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu", "1500")
	s.DiscardStaged()
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok := s.Get("interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu"); ok {
		t.Error("discarded stage survived Apply")
	}
}

// ===========================================================================
// commit events
// ===========================================================================

func TestApplyDeliversSortedEvents(t *testing.T) {
	s := newStore(t)
	var got []ChangeEvent
	s.SubscribeChanges(func(events []ChangeEvent) error {
		got = events
		return nil
	})

	set(t, s, "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu", "9100")
	set(t, s, "interfaces/interface[name=Ethernet0_1]/config/admin-status", "UP")
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	// Batches arrive in canonical path order.
	if got[0].Path.String() > got[1].Path.String() {
		t.Errorf("events out of order: %s before %s", got[0].Path, got[1].Path)
	}
	for _, ev := range got {
		if ev.Op != OpCreated {
			t.Errorf("op for %s = %v, want OpCreated", ev.Path, ev.Op)
		}
	}
}

func TestApplyEventOps(t *testing.T) {
	s := newStore(t)
	const path = "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu"
	set(t, s, path, "9100")
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var got []ChangeEvent
	s.SubscribeChanges(func(events []ChangeEvent) error {
		got = events
		return nil
	})

	set(t, s, path, "1500")
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply modify: %v", err)
	}
	if len(got) != 1 || got[0].Op != OpModified || got[0].OldValue != "9100" || got[0].NewValue != "1500" {
		t.Fatalf("modify event = %+v", got)
	}

	if err := s.Delete(path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply delete: %v", err)
	}
	if len(got) != 1 || got[0].Op != OpDeleted || got[0].OldValue != "1500" {
		t.Fatalf("delete event = %+v", got)
	}
}

func TestRewriteToSameValueEmitsNothing(t *testing.T) {
	s := newStore(t)
	const path = "interfaces/interface[name=Ethernet0_1]/config/description"
	set(t, s, path, "lab")
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	called := false
	s.SubscribeChanges(func([]ChangeEvent) error {
		called = true
		return nil
	})
	set(t, s, path, "lab")
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if called {
		t.Error("no-op rewrite delivered an event batch")
	}
}

// ===========================================================================
// rollback
// ===========================================================================

func TestCallbackErrorRollsBack(t *testing.T) {
	s := newStore(t)
	const path = "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu"
	set(t, s, path, "9100")
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	reject := fmt.Errorf("batch rejected")
	s.SubscribeChanges(func([]ChangeEvent) error { return reject })

	set(t, s, path, "1500")
	if err := s.Apply(); !errors.Is(err, reject) {
		t.Fatalf("Apply = %v, want subscriber error", err)
	}
	if v, _ := s.Get(path); v != "9100" {
		t.Errorf("value after rollback = %q, want 9100", v)
	}
}

func TestValidatorSeesCandidateView(t *testing.T) {
	s := newStore(t)
	const path = "interfaces/interface[name=Ethernet0_1]/ethernet/config/speed"

	var seen string
	s.SubscribeChanges(func([]ChangeEvent) error {
		seen, _ = s.Get(path)
		return nil
	})
	set(t, s, path, "SPEED_40G")
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if seen != "SPEED_40G" {
		t.Errorf("callback saw %q, want candidate value SPEED_40G", seen)
	}
}

// ===========================================================================
// subtree delete
// ===========================================================================

func TestDeleteSubtree(t *testing.T) {
	s := newStore(t)
	set(t, s, "interfaces/interface[name=Ethernet0_1]/ethernet/breakout/config/num-channels", "4")
	set(t, s, "interfaces/interface[name=Ethernet0_1]/ethernet/breakout/config/channel-speed", "SPEED_10G")
	set(t, s, "interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu", "9100")
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := s.Delete("interfaces/interface[name=Ethernet0_1]/ethernet/breakout"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	leaves := s.Leaves()
	if len(leaves) != 1 {
		t.Fatalf("leaves after subtree delete = %v, want only mtu", leaves)
	}
	if _, ok := s.Get("interfaces/interface[name=Ethernet0_1]/ethernet/config/mtu"); !ok {
		t.Error("sibling leaf removed by subtree delete")
	}
}

func TestDeleteLeafListEntry(t *testing.T) {
	s := newStore(t)
	set(t, s, "interfaces/interface[name=Ethernet0_1]/switched-vlan/config/trunk-vlans[100]", "100")
	set(t, s, "interfaces/interface[name=Ethernet0_1]/switched-vlan/config/trunk-vlans[200]", "200")
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := s.Delete("interfaces/interface[name=Ethernet0_1]/switched-vlan/config/trunk-vlans[100]"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok := s.Get("interfaces/interface[name=Ethernet0_1]/switched-vlan/config/trunk-vlans[200]"); !ok {
		t.Error("unrelated leaf-list entry removed")
	}
	if len(s.Leaves()) != 1 {
		t.Errorf("leaves = %v, want single trunk-vlans entry", s.Leaves())
	}
}

func TestDeleteMissingLeaf(t *testing.T) {
	s := newStore(t)
	err := s.Delete("interfaces/interface[name=Ethernet0_1]/config/description")
	if !errors.Is(err, ErrNoSuchLeaf) {
		t.Errorf("Delete = %v, want ErrNoSuchLeaf", err)
	}
}

// ===========================================================================
// rpc and notifications
// ===========================================================================

func TestCallRPC(t *testing.T) {
	s := newStore(t)
	var got map[string]string
	s.SubscribeRPC("clear-counters", func(params map[string]string) error {
		got = params
		return nil
	})

	if err := s.CallRPC("clear-counters", map[string]string{"if-name": "Ethernet0_1"}); err != nil {
		t.Fatalf("CallRPC: %v", err)
	}
	if got["if-name"] != "Ethernet0_1" {
		t.Errorf("params = %v", got)
	}

	if err := s.CallRPC("reboot", nil); !errors.Is(err, ErrNoSuchRPC) {
		t.Errorf("unsubscribed rpc = %v, want ErrNoSuchRPC", err)
	}
}

func TestNotificationFanOut(t *testing.T) {
	s := newStore(t)
	a := s.SubscribeNotifications(4)
	b := s.SubscribeNotifications(4)

	if err := s.SendNotification("link-state", map[string]string{"if-name": "Ethernet0_1"}); err != nil {
		t.Fatalf("SendNotification: %v", err)
	}
	for _, ch := range []<-chan Notification{a, b} {
		select {
		case n := <-ch:
			if n.Name != "link-state" {
				t.Errorf("notification name = %q", n.Name)
			}
		default:
			t.Error("subscriber missed notification")
		}
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := newStore(t)
	_ = s.SubscribeNotifications(0) // never drained, zero buffer
	// Send must drop rather than block on the full channel.
	if err := s.SendNotification("link-state", nil); err != nil {
		t.Fatalf("SendNotification: %v", err)
	}
}
