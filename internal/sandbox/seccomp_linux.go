//go:build linux

package sandbox

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	seccompRetAllow uint32 = 0x7fff0000
	seccompRetErrno uint32 = 0x00050000
)

// allowedSyscalls is the closed set a bot process may invoke. Everything not
// on this list returns EPERM. This is the inverse of a dev-sandbox's usual
// posture (deny a short dangerous list, allow the rest): a tournament bot is
// untrusted code with no legitimate reason to touch the network, mount
// table, or another process, so the filter defaults to deny and opens only
// what a single-threaded compute-and-talk-on-stdio program needs.
var allowedSyscalls = []uint32{
	// basic I/O
	unix.SYS_READ,
	unix.SYS_WRITE,
	unix.SYS_READV,
	unix.SYS_WRITEV,
	unix.SYS_PREAD64,
	unix.SYS_PWRITE64,
	unix.SYS_LSEEK,
	unix.SYS_IOCTL,
	unix.SYS_FCNTL,
	// descriptor and file lifecycle
	unix.SYS_OPEN,
	unix.SYS_OPENAT,
	unix.SYS_CLOSE,
	unix.SYS_DUP,
	unix.SYS_DUP2,
	unix.SYS_DUP3,
	unix.SYS_PIPE,
	unix.SYS_PIPE2,
	// stat family
	unix.SYS_STAT,
	unix.SYS_FSTAT,
	unix.SYS_LSTAT,
	unix.SYS_NEWFSTATAT,
	unix.SYS_STATX,
	unix.SYS_ACCESS,
	unix.SYS_FACCESSAT,
	unix.SYS_FACCESSAT2,
	unix.SYS_READLINK,
	unix.SYS_READLINKAT,
	// memory
	unix.SYS_MMAP,
	unix.SYS_MPROTECT,
	unix.SYS_MUNMAP,
	unix.SYS_BRK,
	// signals
	unix.SYS_RT_SIGACTION,
	unix.SYS_RT_SIGPROCMASK,
	unix.SYS_RT_SIGRETURN,
	// process identity
	unix.SYS_GETPID,
	unix.SYS_GETUID,
	unix.SYS_GETEUID,
	unix.SYS_GETGID,
	unix.SYS_GETEGID,
	unix.SYS_GETTID,
	// scheduling and waiting
	unix.SYS_FUTEX,
	unix.SYS_SCHED_YIELD,
	unix.SYS_SCHED_GETAFFINITY,
	unix.SYS_NANOSLEEP,
	unix.SYS_CLOCK_NANOSLEEP,
	unix.SYS_CLOCK_GETTIME,
	// program life-cycle
	unix.SYS_EXECVE,
	unix.SYS_EXIT,
	unix.SYS_EXIT_GROUP,
	unix.SYS_ARCH_PRCTL,
	unix.SYS_SET_TID_ADDRESS,
	unix.SYS_SET_ROBUST_LIST,
	unix.SYS_PRCTL,
	unix.SYS_PRLIMIT64,
	unix.SYS_GETRLIMIT,
	unix.SYS_RSEQ,
	unix.SYS_UNAME,
	unix.SYS_GETCWD,
	unix.SYS_GETDENTS64,
	unix.SYS_GETRANDOM,
	// poll/select/epoll family
	unix.SYS_POLL,
	unix.SYS_PPOLL,
	unix.SYS_SELECT,
	unix.SYS_PSELECT6,
	unix.SYS_EPOLL_CREATE,
	unix.SYS_EPOLL_CREATE1,
	unix.SYS_EPOLL_CTL,
	unix.SYS_EPOLL_WAIT,
	unix.SYS_EPOLL_PWAIT,
}

// installSeccomp installs a BPF allowlist filter restricting the calling
// process to allowedSyscalls, returning EPERM for everything else. Must run
// as the final confinement step before exec, after Landlock and
// PR_SET_NO_NEW_PRIVS are already in effect — spec.md §4.6/§4.7.
func installSeccomp() error {
	prog := buildSeccompAllowlist(allowedSyscalls)

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("seccomp: set no_new_privs: %w", err)
	}

	bpfProg := unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: &prog[0],
	}
	if _, _, errno := unix.RawSyscall(unix.SYS_SECCOMP, 1, 0, uintptr(unsafe.Pointer(&bpfProg))); errno != 0 {
		return fmt.Errorf("seccomp: install filter: %w", errno)
	}
	return nil
}

// buildSeccompAllowlist constructs the BPF program: load the syscall number,
// compare against each entry in allowed, RET_ALLOW on any match, fall
// through to RET_ERRNO(EPERM) otherwise.
func buildSeccompAllowlist(allowed []uint32) []unix.SockFilter {
	n := len(allowed)
	prog := make([]unix.SockFilter, 0, n+2)

	prog = append(prog, unix.SockFilter{
		Code: unix.BPF_LD | unix.BPF_W | unix.BPF_ABS,
		K:    0, // offsetof(struct seccomp_data, nr)
	})

	for i, nr := range allowed {
		jmpToAllow := uint8(n - i)
		prog = append(prog, unix.SockFilter{
			Code: unix.BPF_JMP | unix.BPF_JEQ | unix.BPF_K,
			Jt:   jmpToAllow,
			Jf:   0,
			K:    nr,
		})
	}

	// Deny falls through here when nothing matched.
	prog = append(prog, unix.SockFilter{
		Code: unix.BPF_RET | unix.BPF_K,
		K:    seccompRetErrno | uint32(unix.EPERM),
	})

	// Allow block, landed on by any matching jt above.
	prog = append(prog, unix.SockFilter{
		Code: unix.BPF_RET | unix.BPF_K,
		K:    seccompRetAllow,
	})

	return prog
}
