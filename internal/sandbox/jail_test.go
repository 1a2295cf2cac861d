//go:build linux

package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func requireCgroupsV2(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(filepath.Join(cgroupRoot, "cgroup.controllers")); err != nil {
		t.Skip("cgroups v2 not available in this environment")
	}
}

func TestNewRootfsStagesSubmissionBinary(t *testing.T) {
	if os.Getuid() != 0 {
		t.Skip("bind mounts require root or CAP_SYS_ADMIN in a user namespace")
	}

	dir := t.TempDir()
	binary := filepath.Join(dir, "submission")
	if err := os.WriteFile(binary, []byte("#!/bin/true\n"), 0755); err != nil {
		t.Fatalf("write fake submission binary: %v", err)
	}

	base := filepath.Join(dir, "roots")
	rfs, err := newRootfs(base, "test-player", binary)
	if err != nil {
		t.Fatalf("newRootfs: %v", err)
	}
	defer rfs.teardown()

	if rfs.binaryPath != "/bin/submission" {
		t.Errorf("binaryPath = %q, want /bin/submission", rfs.binaryPath)
	}
	staged := filepath.Join(rfs.path, "bin", "submission")
	if _, err := os.Stat(staged); err != nil {
		t.Errorf("expected staged binary at %s: %v", staged, err)
	}
}

func TestNewCgroupHandleAppliesLimits(t *testing.T) {
	requireCgroupsV2(t)
	if os.Getuid() != 0 {
		t.Skip("cgroup delegation for a new subtree requires root in this environment")
	}

	h, err := NewCgroupHandle("jail-test-player", ExecutionLimits)
	if err != nil {
		t.Skip("cgroup creation failed, likely no delegation for this process: " + err.Error())
	}
	defer h.Release()

	mem, err := os.ReadFile(filepath.Join(h.path, "memory.max"))
	if err != nil {
		t.Fatalf("read memory.max: %v", err)
	}
	if len(mem) == 0 {
		t.Error("expected memory.max to be written")
	}
}

func TestCgroupHandleReleaseIsNilSafe(t *testing.T) {
	var h *CgroupHandle
	if err := h.Release(); err != nil {
		t.Errorf("Release on nil handle = %v, want nil", err)
	}
}
