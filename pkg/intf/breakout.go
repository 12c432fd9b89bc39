package intf

import (
	"github.com/onyx-network/onyx/pkg/datastore"
	"github.com/onyx-network/onyx/pkg/util"
)

// BreakoutDetail is the resolved breakout state of a logical interface:
// which primary carries the configuration and what it declares.
type BreakoutDetail struct {
	Parent       string
	NumChannels  int
	ChannelSpeed string
}

// breakoutDetail resolves the breakout configuration governing name. The
// parent of any channel is the primary sub-interface of its port; a parent
// without complete breakout configuration yields no detail.
func breakoutDetail(cfg *datastore.Config, name string) *BreakoutDetail {
	parent := util.ParentInterface(name)
	ic := cfg.Interface(parent)
	if ic == nil || !ic.Ethernet.Breakout.Complete() {
		return nil
	}
	return &BreakoutDetail{
		Parent:       parent,
		NumChannels:  ic.Ethernet.Breakout.NumChannels,
		ChannelSpeed: ic.Ethernet.Breakout.ChannelSpeed,
	}
}

// portChannels returns how many channels name's port runs under the given
// configuration: the parent's breakout channel count, or 1.
func portChannels(cfg *datastore.Config, name string) int {
	if d := breakoutDetail(cfg, name); d != nil {
		return d.NumChannels
	}
	return 1
}

// laneTypesFor returns the interface types compatible with a channel count.
// A port has four lanes; n channels leave 4/n lanes per channel.
func laneTypesFor(channels int) []string {
	switch channels {
	case 4:
		return datastore.SingleLaneInterfaceTypes
	case 2:
		return datastore.DoubleLaneInterfaceTypes
	default:
		return datastore.QuadLaneInterfaceTypes
	}
}

// validateInterfaceType checks that an ethernet interface-type value is
// compatible with the interface's lane count under cfg.
func validateInterfaceType(cfg *datastore.Config, name, value string) error {
	allowed := laneTypesFor(portChannels(cfg, name))
	for _, t := range allowed {
		if t == value {
			return nil
		}
	}
	return util.NewValidationErrorf(
		"interface-type %s not supported on %s, valid types: %v", value, name, allowed)
}
