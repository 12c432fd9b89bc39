package driver

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/onyx-network/onyx/pkg/util"
)

// VendorCLI issues commands to the switch-silicon control channel through
// the vendor's diagnostic shell binary. Settings that have no PORT-table
// representation (interface type, auto-negotiation) go through here.
type VendorCLI struct {
	bin     string
	timeout time.Duration
}

// NewVendorCLI creates a vendor command runner.
func NewVendorCLI(bin string, timeout time.Duration) *VendorCLI {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &VendorCLI{bin: bin, timeout: timeout}
}

// PortCommand runs "port <ifname> <args...>" and returns the raw output.
func (v *VendorCLI) PortCommand(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	cmdArgs := append([]string{"port", name}, args...)
	out, err := exec.CommandContext(ctx, v.bin, cmdArgs...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("vendor command %q on %s: %w: %s",
			strings.Join(args, " "), name, err, strings.TrimSpace(string(out)))
	}
	util.WithInterface(name).Debugf("vendor command %q ok", strings.Join(args, " "))
	return string(out), nil
}

// PortInfo is the per-port state the vendor shell reports.
type PortInfo struct {
	InterfaceType    string
	FEC              string
	AutoNegotiate    bool
	AdvertisedSpeeds []string // table form, e.g. "100G"
}

// PortInfoQuery runs "port <ifname> status" and parses key=value output
// lines. Unknown keys are ignored.
func (v *VendorCLI) PortInfoQuery(ctx context.Context, name string) (PortInfo, error) {
	out, err := v.PortCommand(ctx, name, "status")
	if err != nil {
		return PortInfo{}, err
	}
	return parsePortInfo(out), nil
}

func parsePortInfo(out string) PortInfo {
	var info PortInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		switch key {
		case "if":
			info.InterfaceType = val
		case "fec":
			info.FEC = val
		case "an":
			info.AutoNegotiate = val == "yes"
		case "adv":
			for _, s := range util.SplitCommaSeparated(val) {
				info.AdvertisedSpeeds = append(info.AdvertisedSpeeds, strings.ToUpper(s))
			}
		}
	}
	return info
}
