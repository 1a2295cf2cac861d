//go:build !linux

package sandbox

import "fmt"

// CgroupHandle is unavailable outside Linux. Per spec.md's non-goals this
// engine never attempts to sandbox on non-Linux hosts; the stub exists only
// so the package still builds (and its unit tests that don't need a real
// sandbox still run) on a developer's non-Linux workstation.
type CgroupHandle struct{}

func NewCgroupHandle(playerID string, limits ResourceLimits) (*CgroupHandle, error) {
	return nil, fmt.Errorf("cgroup: not supported on this platform")
}

func (c *CgroupHandle) AddTask(pid int) error { return fmt.Errorf("cgroup: not supported on this platform") }
func (c *CgroupHandle) Release() error        { return nil }
