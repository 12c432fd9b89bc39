// Package driver provides access to the forwarding-plane state store
// (Redis-backed PORT/COUNTERS tables), the vendor control channel, and the
// orchestrator that restarts the switch-silicon process.
package driver

import (
	"sort"

	"github.com/onyx-network/onyx/pkg/util"
)

// PortProfile is the desired channelization of one physical port.
type PortProfile struct {
	Channels int    `json:"channels"`
	Speed    string `json:"speed"` // table form, e.g. "100G", "25G"
}

// PortMap maps physical port name to its desired profile. It is the unit
// the orchestrator consumes: pushing a changed map forces a forwarding
// plane restart.
type PortMap map[string]PortProfile

// Equal reports whether two maps describe the same channelization.
func (m PortMap) Equal(o PortMap) bool {
	if len(m) != len(o) {
		return false
	}
	for port, p := range m {
		if o[port] != p {
			return false
		}
	}
	return true
}

// Ifnames derives the logical interface names the map produces, sorted by
// port then channel. A port with n channels yields <port>_1 .. <port>_n.
func (m PortMap) Ifnames() []string {
	ports := make([]string, 0, len(m))
	for p := range m {
		ports = append(ports, p)
	}
	sort.Strings(ports)

	var names []string
	for _, port := range ports {
		ch := m[port].Channels
		if ch < 1 {
			ch = 1
		}
		for i := 1; i <= ch; i++ {
			names = append(names, util.ChannelInterfaceName(port, i))
		}
	}
	return names
}

// Clone returns a copy of the map.
func (m PortMap) Clone() PortMap {
	out := make(PortMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
