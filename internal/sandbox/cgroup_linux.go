//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const cgroupRoot = "/sys/fs/cgroup"

// CgroupHandle owns a single cgroup v2 node created for one sandboxed bot
// process. Creation is all-or-nothing: on any failure the partially-built
// node is removed and the error is returned so the caller can abort the
// fork — spec.md is explicit that a failed cgroup create is a hard error,
// not a soft fallback, unlike the teacher's own wingthing sandbox (which
// tolerates a missing cgroups v2 mount and degrades to prlimit-only).
type CgroupHandle struct {
	path string
}

// NewCgroupHandle creates `judge/execution/player_<id>` beneath this
// process's own cgroup (read from /proc/self/cgroup) and applies memory, CPU
// bandwidth, and PID-count limits from limits.
func NewCgroupHandle(playerID string, limits ResourceLimits) (*CgroupHandle, error) {
	if _, err := os.Stat(filepath.Join(cgroupRoot, "cgroup.controllers")); err != nil {
		return nil, fmt.Errorf("cgroup: cgroups v2 not mounted at %s: %w", cgroupRoot, err)
	}

	ownPath, err := readOwnCgroup()
	if err != nil {
		return nil, fmt.Errorf("cgroup: read own cgroup: %w", err)
	}
	parentPath := filepath.Join(cgroupRoot, ownPath, "judge", "execution")
	cgroupPath := filepath.Join(parentPath, "player_"+playerID)

	if err := os.MkdirAll(cgroupPath, 0755); err != nil {
		return nil, fmt.Errorf("cgroup: create %s: %w", cgroupPath, err)
	}

	h := &CgroupHandle{path: cgroupPath}

	if err := enableControllers(parentPath, []string{"+memory", "+cpu", "+pids"}); err != nil {
		os.Remove(cgroupPath)
		return nil, fmt.Errorf("cgroup: enable controllers on %s: %w", parentPath, err)
	}

	if err := h.writeLimit("memory.max", strconv.FormatUint(limits.MemoryBytes, 10)); err != nil {
		h.Release()
		return nil, err
	}
	cpuMax := fmt.Sprintf("%d %d", limits.CPUQuotaUS, limits.CPUPeriodUS)
	if err := h.writeLimit("cpu.max", cpuMax); err != nil {
		h.Release()
		return nil, err
	}
	if err := h.writeLimit("pids.max", strconv.FormatUint(limits.MaxPIDs, 10)); err != nil {
		h.Release()
		return nil, err
	}

	return h, nil
}

func (c *CgroupHandle) writeLimit(file, value string) error {
	path := filepath.Join(c.path, file)
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return fmt.Errorf("cgroup: write %s=%q: %w", file, value, err)
	}
	return nil
}

// AddTask moves pid into this cgroup. Must be called by the parent before
// the child process it names has a chance to exec the bot binary.
func (c *CgroupHandle) AddTask(pid int) error {
	procsPath := filepath.Join(c.path, "cgroup.procs")
	if err := os.WriteFile(procsPath, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("cgroup: add task %d: %w", pid, err)
	}
	return nil
}

// Release kills every task still in the cgroup, waits briefly for them to
// exit, then removes the cgroup node. A cgroup can never be rmdir'd while it
// still has member processes, so this ordering is mandatory — per spec.md
// §4.2 a leaked cgroup must never leave a live child process behind.
func (c *CgroupHandle) Release() error {
	if c == nil {
		return nil
	}
	c.killAll()

	var lastErr error
	for i := 0; i < 20; i++ {
		if err := os.Remove(c.path); err != nil {
			lastErr = err
			if os.IsNotExist(err) {
				return nil
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		return nil
	}
	return fmt.Errorf("cgroup: remove %s: %w", c.path, lastErr)
}

func (c *CgroupHandle) killAll() {
	for i := 0; i < 20; i++ {
		pids := c.readPIDs()
		if len(pids) == 0 {
			return
		}
		for _, pid := range pids {
			syscall.Kill(pid, syscall.SIGKILL)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (c *CgroupHandle) readPIDs() []int {
	data, err := os.ReadFile(filepath.Join(c.path, "cgroup.procs"))
	if err != nil {
		return nil
	}
	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		if pid, err := strconv.Atoi(line); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}

// parseCgroupV2Path extracts the cgroup v2 path from /proc/self/cgroup
// content. v2 entries have the form "0::<path>".
func parseCgroupV2Path(content string) (string, error) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "0::") {
			return line[3:], nil
		}
	}
	return "", fmt.Errorf("no cgroup v2 entry found in /proc/self/cgroup")
}

func readOwnCgroup() (string, error) {
	data, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return "", fmt.Errorf("read /proc/self/cgroup: %w", err)
	}
	return parseCgroupV2Path(string(data))
}

// enableControllers writes to cgroup.subtree_control to enable the named
// controllers on parentPath's children. Handles the cgroups v2 "no internal
// processes" rule: if parentPath already has member processes directly
// (EBUSY), this process's own PID is moved into a "judge-daemon" leaf first.
func enableControllers(parentPath string, controllers []string) error {
	if err := os.MkdirAll(parentPath, 0755); err != nil {
		return fmt.Errorf("create %s: %w", parentPath, err)
	}
	payload := strings.Join(controllers, " ")
	controlPath := filepath.Join(parentPath, "cgroup.subtree_control")

	err := os.WriteFile(controlPath, []byte(payload), 0644)
	if err == nil {
		return nil
	}
	if !strings.Contains(err.Error(), "device or resource busy") {
		return err
	}

	daemonPath := filepath.Join(parentPath, "judge-daemon")
	if err := os.MkdirAll(daemonPath, 0755); err != nil {
		return fmt.Errorf("create judge-daemon cgroup: %w", err)
	}
	if err := os.WriteFile(filepath.Join(daemonPath, "cgroup.procs"), []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("move self to judge-daemon cgroup: %w", err)
	}
	return os.WriteFile(controlPath, []byte(payload), 0644)
}
