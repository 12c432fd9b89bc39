package datastore

import (
	"sort"
	"strconv"
)

// Config is a typed snapshot of the full configuration tree. Snapshots are
// value copies: mutating one never affects the store.
type Config struct {
	Interfaces []*InterfaceConfig
	UFDGroups  []*UFDGroupConfig
}

// InterfaceConfig is the declared configuration of one logical interface.
// String fields hold raw leaf values; "" means unset.
type InterfaceConfig struct {
	Name         string
	Description  string
	AdminStatus  string
	Type         string // IF_ETHERNET
	LoopbackMode string
	PRBSMode     string
	Ethernet     EthernetConfig
	SwitchedVLAN SwitchedVLANConfig
}

// EthernetConfig covers the ethernet config container and its subtrees.
type EthernetConfig struct {
	MTU           string
	FEC           string
	InterfaceType string
	Speed         string
	Breakout      BreakoutConfig
	AutoNegotiate AutoNegotiateConfig
}

// BreakoutConfig is the breakout descriptor of a primary sub-interface.
// NumChannels 0 means no breakout configured.
type BreakoutConfig struct {
	NumChannels  int
	ChannelSpeed string
}

// Configured reports whether any breakout leaf is set.
func (b BreakoutConfig) Configured() bool {
	return b.NumChannels != 0 || b.ChannelSpeed != ""
}

// Complete reports whether both breakout leaves are set. The two must be
// configured together or not at all.
func (b BreakoutConfig) Complete() bool {
	return b.NumChannels != 0 && b.ChannelSpeed != ""
}

// AutoNegotiateConfig covers auto-negotiation settings. Enabled is the raw
// boolean leaf value ("true"/"false"), "" when unset.
type AutoNegotiateConfig struct {
	Enabled          string
	AdvertisedSpeeds []string
}

// SwitchedVLANConfig covers VLAN membership mode configuration.
type SwitchedVLANConfig struct {
	InterfaceMode string
	AccessVLAN    string
	TrunkVLANs    []string
}

// Empty reports whether no switched-vlan leaf is set.
func (v SwitchedVLANConfig) Empty() bool {
	return v.InterfaceMode == "" && v.AccessVLAN == "" && len(v.TrunkVLANs) == 0
}

// UFDGroupConfig is an uplink-failure-detection group.
type UFDGroupConfig struct {
	ID        string
	Uplinks   []string
	Downlinks []string
}

// Interface returns the named interface's configuration, or nil.
func (c *Config) Interface(name string) *InterfaceConfig {
	for _, i := range c.Interfaces {
		if i.Name == name {
			return i
		}
	}
	return nil
}

// interfaceOrAdd returns the named entry, creating it on first reference.
func (c *Config) interfaceOrAdd(name string) *InterfaceConfig {
	if i := c.Interface(name); i != nil {
		return i
	}
	i := &InterfaceConfig{Name: name}
	c.Interfaces = append(c.Interfaces, i)
	return i
}

func (c *Config) ufdGroupOrAdd(id string) *UFDGroupConfig {
	for _, g := range c.UFDGroups {
		if g.ID == id {
			return g
		}
	}
	g := &UFDGroupConfig{ID: id}
	c.UFDGroups = append(c.UFDGroups, g)
	return g
}

// BuildConfig assembles the typed tree from a flat leaf map keyed by
// canonical path. Unrecognized leaves are skipped; the schema engine has
// already validated them.
func BuildConfig(leaves map[string]string) (*Config, error) {
	cfg := &Config{}

	paths := make([]string, 0, len(leaves))
	for p := range leaves {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, raw := range paths {
		value := leaves[raw]
		p, err := ParsePath(raw)
		if err != nil {
			return nil, err
		}

		switch p[0].Name {
		case "interfaces":
			name := p.KeyFor("interface")
			if name == "" {
				continue
			}
			applyInterfaceLeaf(cfg.interfaceOrAdd(name), p, value)
		case "ufd-groups":
			id := p.KeyFor("ufd-group")
			if id == "" {
				continue
			}
			applyUFDLeaf(cfg.ufdGroupOrAdd(id), p, value)
		}
	}

	sort.Slice(cfg.Interfaces, func(i, j int) bool {
		return cfg.Interfaces[i].Name < cfg.Interfaces[j].Name
	})
	sort.Slice(cfg.UFDGroups, func(i, j int) bool {
		return cfg.UFDGroups[i].ID < cfg.UFDGroups[j].ID
	})
	return cfg, nil
}

func applyInterfaceLeaf(intf *InterfaceConfig, p Path, value string) {
	switch p.ShapeString() {
	case "interfaces/interface/config/description":
		intf.Description = value
	case "interfaces/interface/config/admin-status":
		intf.AdminStatus = value
	case "interfaces/interface/config/interface-type":
		intf.Type = value
	case "interfaces/interface/config/loopback-mode":
		intf.LoopbackMode = value
	case "interfaces/interface/config/prbs-mode":
		intf.PRBSMode = value
	case "interfaces/interface/ethernet/config/mtu":
		intf.Ethernet.MTU = value
	case "interfaces/interface/ethernet/config/fec":
		intf.Ethernet.FEC = value
	case "interfaces/interface/ethernet/config/interface-type":
		intf.Ethernet.InterfaceType = value
	case "interfaces/interface/ethernet/config/speed":
		intf.Ethernet.Speed = value
	case "interfaces/interface/ethernet/breakout/config/num-channels":
		intf.Ethernet.Breakout.NumChannels, _ = strconv.Atoi(value)
	case "interfaces/interface/ethernet/breakout/config/channel-speed":
		intf.Ethernet.Breakout.ChannelSpeed = value
	case "interfaces/interface/ethernet/auto-negotiate/config/enabled":
		intf.Ethernet.AutoNegotiate.Enabled = value
	case "interfaces/interface/ethernet/auto-negotiate/config/advertised-speeds":
		intf.Ethernet.AutoNegotiate.AdvertisedSpeeds =
			append(intf.Ethernet.AutoNegotiate.AdvertisedSpeeds, value)
	case "interfaces/interface/switched-vlan/config/interface-mode":
		intf.SwitchedVLAN.InterfaceMode = value
	case "interfaces/interface/switched-vlan/config/access-vlan":
		intf.SwitchedVLAN.AccessVLAN = value
	case "interfaces/interface/switched-vlan/config/trunk-vlans":
		intf.SwitchedVLAN.TrunkVLANs = append(intf.SwitchedVLAN.TrunkVLANs, value)
	}
}

func applyUFDLeaf(g *UFDGroupConfig, p Path, value string) {
	switch p.ShapeString() {
	case "ufd-groups/ufd-group/config/uplink":
		g.Uplinks = append(g.Uplinks, value)
	case "ufd-groups/ufd-group/config/downlink":
		g.Downlinks = append(g.Downlinks, value)
	}
}
