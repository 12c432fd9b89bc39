package util

import (
	"fmt"
	"strings"
)

// Logical interface names follow the <port>_<channel> scheme: every
// physical port exposes at least "Ethernet<N>_1", and breaking out a port
// into n channels yields "Ethernet<N>_1" .. "Ethernet<N>_n". The first
// channel is the "primary" sub-interface and is the only one that may
// carry breakout configuration.

// IsPrimaryInterface reports whether name is the first channel of its
// physical port.
func IsPrimaryInterface(name string) bool {
	return strings.HasSuffix(name, "_1")
}

// ParentInterface returns the primary sub-interface of the physical port
// that name belongs to. For "Ethernet0_4" it returns "Ethernet0_1"; a
// primary name maps to itself.
func ParentInterface(name string) string {
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return name + "_1"
	}
	return name[:idx] + "_1"
}

// PortOfInterface returns the physical port name a logical interface
// belongs to ("Ethernet0_2" -> "Ethernet0").
func PortOfInterface(name string) string {
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return name
	}
	return name[:idx]
}

// ChannelInterfaceName builds the logical name for channel ch of a port.
// Channels are 1-based.
func ChannelInterfaceName(port string, ch int) string {
	return fmt.Sprintf("%s_%d", port, ch)
}

// SplitCommaSeparated splits a comma-separated string and trims whitespace
// from each element. Empty input returns nil.
func SplitCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
