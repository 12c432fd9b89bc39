package intf

import (
	"context"
	"strconv"

	"github.com/onyx-network/onyx/pkg/datastore"
	"github.com/onyx-network/onyx/pkg/util"
)

// Subsystem is a cooperating configuration domain whose state converges
// strictly after the interface state does. Subsystems reconcile in
// registration order; none may call back into the coordinator.
type Subsystem interface {
	Name() string
	Reconcile(ctx context.Context) error
}

// VLANSubsystem converges the declared switched-vlan configuration into the
// driver's VLAN membership tables.
type VLANSubsystem struct {
	store datastore.Store
	drv   Driver
}

// NewVLANSubsystem creates the VLAN membership reconciler.
func NewVLANSubsystem(store datastore.Store, drv Driver) *VLANSubsystem {
	return &VLANSubsystem{store: store, drv: drv}
}

func (v *VLANSubsystem) Name() string { return "vlan" }

// Reconcile adds missing and removes stale memberships per interface. The
// port map has converged by the time this runs, so every configured
// interface the driver still knows gets exactly its declared bindings.
func (v *VLANSubsystem) Reconcile(ctx context.Context) error {
	cfg, err := v.store.RunningConfig()
	if err != nil {
		return err
	}

	known := make(map[string]bool)
	for _, name := range v.drv.Ifnames() {
		known[name] = true
	}

	for _, ic := range cfg.Interfaces {
		if !known[ic.Name] {
			continue
		}
		if err := v.reconcileInterface(ic); err != nil {
			util.WithInterface(ic.Name).Errorf("vlan reconcile failed: %v", err)
		}
	}
	return nil
}

func (v *VLANSubsystem) reconcileInterface(ic *datastore.InterfaceConfig) error {
	desired := make(map[int]string)
	sv := ic.SwitchedVLAN
	switch sv.InterfaceMode {
	case "ACCESS":
		if sv.AccessVLAN != "" {
			vid, err := strconv.Atoi(sv.AccessVLAN)
			if err != nil {
				return err
			}
			desired[vid] = "untagged"
		}
	case "TRUNK":
		for _, raw := range sv.TrunkVLANs {
			vid, err := strconv.Atoi(raw)
			if err != nil {
				return err
			}
			desired[vid] = "tagged"
		}
	}

	current, err := v.drv.VLANMemberships(ic.Name)
	if err != nil {
		return err
	}

	for _, m := range current {
		if mode, ok := desired[m.VID]; ok && mode == m.TaggingMode {
			delete(desired, m.VID)
			continue
		}
		if err := v.drv.RemoveVLANMember(m.VID, ic.Name); err != nil {
			return err
		}
	}
	for vid, mode := range desired {
		if err := v.drv.SetVLANMember(vid, ic.Name, mode); err != nil {
			return err
		}
	}
	return nil
}
