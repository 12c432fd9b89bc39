package intf

import (
	"strings"

	"github.com/onyx-network/onyx/pkg/datastore"
)

// OperStatus is the externally visible link status of an interface.
type OperStatus string

const (
	StatusUp      OperStatus = "UP"
	StatusDown    OperStatus = "DOWN"
	StatusDormant OperStatus = "DORMANT"
	StatusUnknown OperStatus = "UNKNOWN"
)

// RawStatusFunc reports the driver's raw status for an interface, "" when
// the forwarding plane has not reported one.
type RawStatusFunc func(name string) string

// ResolveOperStatus derives the visible status of name from its raw status
// and the uplink-failure-detection topology. Policy: a downlink is DORMANT
// exactly when every configured uplink of its group reports raw "down".
// Pure; the notification path and on-demand reads share it so the two can
// never disagree.
func ResolveOperStatus(raw RawStatusFunc, groups []*datastore.UFDGroupConfig, name string) OperStatus {
	if down, uplinks := IsDownlinkPort(groups, name); down && len(uplinks) > 0 {
		allDown := true
		for _, up := range uplinks {
			if !strings.EqualFold(raw(up), "down") {
				allDown = false
				break
			}
		}
		if allDown {
			return StatusDormant
		}
	}

	switch v := strings.ToUpper(raw(name)); v {
	case "":
		return StatusUnknown
	case string(StatusUp), string(StatusDown), string(StatusDormant):
		return OperStatus(v)
	default:
		return StatusUnknown
	}
}

// IsUFDPort reports whether name is a member of any group, uplink or
// downlink.
func IsUFDPort(groups []*datastore.UFDGroupConfig, name string) bool {
	for _, g := range groups {
		if containsString(g.Uplinks, name) || containsString(g.Downlinks, name) {
			return true
		}
	}
	return false
}

// IsDownlinkPort reports whether name is a downlink member and, if so, the
// configured uplinks of its group.
func IsDownlinkPort(groups []*datastore.UFDGroupConfig, name string) (bool, []string) {
	for _, g := range groups {
		if containsString(g.Downlinks, name) {
			return true, g.Uplinks
		}
	}
	return false, nil
}
