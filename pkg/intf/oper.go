package intf

import (
	"context"
	"fmt"

	"github.com/onyx-network/onyx/pkg/util"
)

// InterfaceState is the operational view of one interface: driver-reported
// runtime fields merged with resolved status, relative counters, vendor
// info, and the governing breakout detail.
type InterfaceState struct {
	Name        string
	OperStatus  OperStatus
	AdminStatus string
	MTU         string
	Speed       string
	FEC         string

	InterfaceType    string
	AutoNegotiate    bool
	AdvertisedSpeeds []string // schema form, e.g. "SPEED_100G"

	Counters map[string]uint64
	Breakout *BreakoutDetail
}

// InterfaceNames lists the logical interfaces of the active port map.
func (s *Server) InterfaceNames() []string {
	return s.drv.Ifnames()
}

// InterfaceState reads the operational state of one interface. Reads are
// rejected while a reconcile run holds the forwarding plane.
func (s *Server) InterfaceState(ctx context.Context, name string) (*InterfaceState, error) {
	if s.Rebooting() {
		return nil, fmt.Errorf("state read rejected: %w", util.ErrRebooting)
	}
	if !s.knownInterface(name) {
		return nil, util.NewUnknownInterfaceError(name)
	}

	cfg, err := s.store.RunningConfig()
	if err != nil {
		return nil, err
	}

	st := &InterfaceState{
		Name:       name,
		OperStatus: ResolveOperStatus(s.drv.RawOperStatus, cfg.UFDGroups, name),
		Breakout:   breakoutDetail(cfg, name),
	}

	entry, err := s.drv.PortEntry(name)
	if err != nil {
		return nil, fmt.Errorf("reading port entry for %s: %w", name, err)
	}
	st.AdminStatus = entry["admin_status"]
	st.MTU = entry["mtu"]
	st.Speed = entry["speed"]
	st.FEC = entry["fec"]

	if counters, err := s.drv.Counters(name); err != nil {
		util.WithInterface(name).Debugf("counters unavailable: %v", err)
	} else {
		st.Counters = counters
	}

	if infos, err := s.drv.PortsInfo(ctx, []string{name}); err == nil {
		if info, ok := infos[name]; ok {
			st.InterfaceType = info.InterfaceType
			st.AutoNegotiate = info.AutoNegotiate
			// Vendor output carries table-form speeds; report the schema
			// form the configuration tree uses.
			for _, sp := range info.AdvertisedSpeeds {
				st.AdvertisedSpeeds = append(st.AdvertisedSpeeds, util.SpeedTableToSchema(sp))
			}
			if st.FEC == "" {
				st.FEC = info.FEC
			}
		}
	}
	return st, nil
}

// InterfaceStates reads the operational state of every interface in the
// active port map. Interfaces whose reads fail are skipped with a log line
// so one bad port does not hide the rest.
func (s *Server) InterfaceStates(ctx context.Context) ([]*InterfaceState, error) {
	if s.Rebooting() {
		return nil, fmt.Errorf("state read rejected: %w", util.ErrRebooting)
	}
	names := s.drv.Ifnames()
	out := make([]*InterfaceState, 0, len(names))
	for _, name := range names {
		st, err := s.InterfaceState(ctx, name)
		if err != nil {
			util.WithInterface(name).Warnf("state read failed: %v", err)
			continue
		}
		out = append(out, st)
	}
	return out, nil
}
