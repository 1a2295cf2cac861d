//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// sharedLibDirs are bind-mounted read-only into the sandbox root when they
// exist on the host, so that dynamically linked submission binaries (the
// overwhelming common case) can resolve libc and friends. Statically linked
// binaries never need them; their absence inside the chroot is not an error.
var sharedLibDirs = []string{"/usr", "/lib", "/lib64"}

// rootfs describes a staged sandbox root directory for one player process.
type rootfs struct {
	path       string
	binaryPath string
}

// newRootfs creates an ephemeral directory tree under base and bind-mounts
// the submission binary plus an optional read-only view of the host's shared
// libraries into it — spec.md §4.4. The returned rootfs.path is what the
// child subsequently pivots/chroots into.
func newRootfs(base, playerID, submissionBinary string) (*rootfs, error) {
	root := filepath.Join(base, "player_"+playerID)
	dirs := []string{
		root,
		filepath.Join(root, "proc"),
		filepath.Join(root, "tmp"),
		filepath.Join(root, "bin"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("rootfs: mkdir %s: %w", d, err)
		}
	}

	binDest := filepath.Join(root, "bin", "submission")
	if err := bindMountFile(submissionBinary, binDest); err != nil {
		return nil, fmt.Errorf("rootfs: stage submission binary: %w", err)
	}

	for _, dir := range sharedLibDirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		dest := filepath.Join(root, dir)
		if err := os.MkdirAll(dest, 0755); err != nil {
			return nil, fmt.Errorf("rootfs: mkdir %s: %w", dest, err)
		}
		if err := bindMountDirRO(dir, dest); err != nil {
			return nil, fmt.Errorf("rootfs: bind %s: %w", dir, err)
		}
	}

	if err := unix.Mount("proc", filepath.Join(root, "proc"), "proc", 0, ""); err != nil {
		return nil, fmt.Errorf("rootfs: mount proc: %w", err)
	}

	return &rootfs{path: root, binaryPath: "/bin/submission"}, nil
}

// bindMountFile bind-mounts a single regular file read-only.
func bindMountFile(src, dest string) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY, 0755)
	if err != nil {
		return fmt.Errorf("create mount target %s: %w", dest, err)
	}
	f.Close()

	if err := unix.Mount(src, dest, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("bind mount %s -> %s: %w", src, dest, err)
	}
	if err := unix.Mount("", dest, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
		return fmt.Errorf("remount ro %s: %w", dest, err)
	}
	return nil
}

// bindMountDirRO bind-mounts a directory tree read-only.
func bindMountDirRO(src, dest string) error {
	if err := unix.Mount(src, dest, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("bind mount %s -> %s: %w", src, dest, err)
	}
	if err := unix.Mount("", dest, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("remount ro %s: %w", dest, err)
	}
	return nil
}

// enter chroots the calling (child) process into r and chdirs to /; Landlock,
// the capability drop and the seccomp filter follow before the binary is
// exec'd.
func (r *rootfs) enter() error {
	if err := unix.Chroot(r.path); err != nil {
		return fmt.Errorf("rootfs: chroot %s: %w", r.path, err)
	}
	if err := unix.Chdir("/"); err != nil {
		return fmt.Errorf("rootfs: chdir /: %w", err)
	}
	return nil
}

// teardown lazily unmounts everything staged under r.path and removes the
// directory tree. Errors are logged by the caller, never fatal — releasing
// the cgroup (which kills any lingering process) always takes priority.
func (r *rootfs) teardown() error {
	targets := []string{filepath.Join(r.path, "proc")}
	for _, dir := range sharedLibDirs {
		targets = append(targets, filepath.Join(r.path, dir))
	}
	targets = append(targets, filepath.Join(r.path, "bin", "submission"))

	for _, t := range targets {
		unix.Unmount(t, unix.MNT_DETACH)
	}
	return os.RemoveAll(r.path)
}
