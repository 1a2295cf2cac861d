//go:build linux

package sandbox

import (
	"log"
	"strconv"
	"syscall"
)

// ExecInitSubcommand is the argv[0] marker the judge binary re-execs itself
// with to run RunExecInit. cmd/judge's main dispatches on this exactly the
// way a re-exec'd sandbox wrapper is dispatched elsewhere in this codebase's
// lineage: os.Args[1] == ExecInitSubcommand means "don't run the CLI, run
// the in-namespace setup instead."
const ExecInitSubcommand = "_exec_init"

// RunExecInit is the entire body of the re-exec'd wrapper process. The
// parent started this process with no namespace-entry flags at all and has
// already added its PID to the cgroup by the time it runs (spec.md §4.7
// parent step 4), so the first thing RunExecInit does is unshare itself into
// new namespaces — only then does it perform the remaining child steps (3-9)
// before execv-ing the submission binary. Any failure here logs and exits
// non-zero; nothing it does can leak back to the parent because the
// mount/IPC/UTS namespaces are already private to this process tree.
//
// args: hostUID hostGID rootBase playerID submissionBinary denyNetwork -- binArgs...
func RunExecInit(args []string) {
	if len(args) < 6 {
		log.Fatal("_exec_init: missing arguments")
	}
	hostUID, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatalf("_exec_init: invalid host uid %q", args[0])
	}
	hostGID, err := strconv.Atoi(args[1])
	if err != nil {
		log.Fatalf("_exec_init: invalid host gid %q", args[1])
	}
	rootBase := args[2]
	playerID := args[3]
	submissionBinary := args[4]
	denyNetwork := args[5] == "1"

	sep := 6
	for sep < len(args) && args[sep] != "--" {
		sep++
	}
	var binArgs []string
	if sep < len(args) {
		binArgs = args[sep+1:]
	}

	if err := unshareNamespaces(denyNetwork); err != nil {
		log.Fatalf("_exec_init: %v", err)
	}
	if err := writeUIDGIDMaps(hostUID, hostGID); err != nil {
		log.Fatalf("_exec_init: %v", err)
	}
	if err := privateRemountRoot(); err != nil {
		log.Fatalf("_exec_init: %v", err)
	}

	rfs, err := newRootfs(rootBase, playerID, submissionBinary)
	if err != nil {
		log.Fatalf("_exec_init: %v", err)
	}
	if err := rfs.enter(); err != nil {
		log.Fatalf("_exec_init: %v", err)
	}

	if landlockSupported() {
		if err := applyLandlock(rfs.binaryPath, sharedLibDirs); err != nil {
			log.Fatalf("_exec_init: landlock: %v", err)
		}
	} else {
		log.Printf("_exec_init: landlock unsupported on this kernel, relying on seccomp+chroot alone")
	}

	if err := dropAllCapabilities(); err != nil {
		log.Fatalf("_exec_init: %v", err)
	}

	if err := installSeccomp(); err != nil {
		log.Fatalf("_exec_init: %v", err)
	}

	env := []string{"PATH=/bin", "HOME=/tmp"}
	if err := syscall.Exec(rfs.binaryPath, append([]string{rfs.binaryPath}, binArgs...), env); err != nil {
		log.Fatalf("_exec_init: execv %s: %v", rfs.binaryPath, err)
	}
}

