package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/onyx-network/onyx/pkg/util"
)

// Orchestrator manages the externally supervised forwarding-plane process:
// it owns the desired port map and can restart the process and report
// readiness.
type Orchestrator interface {
	// UpdatePortMap persists the desired map and reports whether it
	// differs from the previously active one.
	UpdatePortMap(m PortMap) (bool, error)

	// Restart asks the supervisor to restart the forwarding plane.
	Restart(ctx context.Context) error

	// WaitReady blocks until the forwarding plane reports port
	// initialization complete, or ctx expires.
	WaitReady(ctx context.Context) error
}

// ExecOrchestrator drives a process supervisor through a restart command
// and a port-map file the forwarding plane reads at startup. Readiness is
// observed through the APP_DB PortInitDone sentinel.
type ExecOrchestrator struct {
	portMapPath  string
	restartCmd   []string
	appl         *ApplDBClient
	pollInterval time.Duration
}

// NewExecOrchestrator creates an orchestrator writing the port map to
// portMapPath and restarting via restartCmd (argv form).
func NewExecOrchestrator(portMapPath string, restartCmd []string, appl *ApplDBClient) *ExecOrchestrator {
	return &ExecOrchestrator{
		portMapPath:  portMapPath,
		restartCmd:   restartCmd,
		appl:         appl,
		pollInterval: time.Second,
	}
}

// UpdatePortMap writes the desired map if it changed. The previous map is
// read back from the file so a daemon restart keeps the comparison honest.
func (o *ExecOrchestrator) UpdatePortMap(m PortMap) (bool, error) {
	current, err := o.readPortMap()
	if err != nil {
		return false, err
	}
	if current != nil && current.Equal(m) {
		return false, nil
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(o.portMapPath), 0o755); err != nil {
		return false, err
	}
	tmp := o.portMapPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return false, err
	}
	if err := os.Rename(tmp, o.portMapPath); err != nil {
		return false, err
	}
	util.Infof("port map updated: %d ports, %d interfaces", len(m), len(m.Ifnames()))
	return true, nil
}

func (o *ExecOrchestrator) readPortMap() (PortMap, error) {
	data, err := os.ReadFile(o.portMapPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m PortMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing port map %s: %w", o.portMapPath, err)
	}
	return m, nil
}

// Restart runs the configured restart command. The readiness sentinel is
// cleared first: one left over from the previous process would satisfy
// WaitReady while the plane is still coming up.
func (o *ExecOrchestrator) Restart(ctx context.Context) error {
	if len(o.restartCmd) == 0 {
		return fmt.Errorf("no restart command configured")
	}
	if o.appl != nil {
		if err := o.appl.ClearPortInitDone(); err != nil {
			return fmt.Errorf("clearing readiness sentinel: %w", err)
		}
	}
	cmd := exec.CommandContext(ctx, o.restartCmd[0], o.restartCmd[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("restarting forwarding plane: %w: %s", err, string(out))
	}
	util.Infof("forwarding plane restart issued")
	return nil
}

// WaitReady polls the readiness sentinel until it appears or ctx expires.
func (o *ExecOrchestrator) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()
	for {
		done, err := o.appl.PortInitDone()
		if err != nil {
			util.Warnf("readiness probe failed: %v", err)
		} else if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for forwarding plane ready: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
