package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestUpdatePortMapPersistsAndDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "portmap.json")
	o := NewExecOrchestrator(path, nil, nil)

	m := PortMap{"Ethernet0": {Channels: 1, Speed: "100G"}}
	changed, err := o.UpdatePortMap(m)
	if err != nil {
		t.Fatalf("UpdatePortMap: %v", err)
	}
	if !changed {
		t.Error("first write not reported as a change")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("port map file not written: %v", err)
	}

	changed, err = o.UpdatePortMap(m)
	if err != nil {
		t.Fatalf("UpdatePortMap rewrite: %v", err)
	}
	if changed {
		t.Error("identical map reported as a change")
	}

	m["Ethernet0"] = PortProfile{Channels: 4, Speed: "25G"}
	changed, err = o.UpdatePortMap(m)
	if err != nil {
		t.Fatalf("UpdatePortMap change: %v", err)
	}
	if !changed {
		t.Error("channelization change not detected")
	}
}

func TestUpdatePortMapSurvivesProcessRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portmap.json")
	m := PortMap{"Ethernet0": {Channels: 2, Speed: "50G"}}

	if _, err := NewExecOrchestrator(path, nil, nil).UpdatePortMap(m); err != nil {
		t.Fatalf("UpdatePortMap: %v", err)
	}

	// A fresh orchestrator compares against the file, not in-memory state.
	changed, err := NewExecOrchestrator(path, nil, nil).UpdatePortMap(m)
	if err != nil {
		t.Fatalf("UpdatePortMap after restart: %v", err)
	}
	if changed {
		t.Error("persisted map reported as a change after restart")
	}
}

func TestRestartWithoutCommand(t *testing.T) {
	o := NewExecOrchestrator(filepath.Join(t.TempDir(), "pm.json"), nil, nil)
	if err := o.Restart(context.Background()); err == nil {
		t.Error("Restart without a configured command succeeded")
	}
}

func TestRestartRunsCommand(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "restarted")
	o := NewExecOrchestrator(filepath.Join(t.TempDir(), "pm.json"),
		[]string{"touch", marker}, nil)

	if err := o.Restart(context.Background()); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("restart command did not run: %v", err)
	}
}
