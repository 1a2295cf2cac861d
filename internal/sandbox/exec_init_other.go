//go:build !linux

package sandbox

import "log"

// ExecInitSubcommand mirrors the Linux constant so cmd/judge's dispatch
// logic compiles on every platform, even though it can never be reached
// here (Spawn never re-execs outside Linux).
const ExecInitSubcommand = "_exec_init"

// RunExecInit always fails outside Linux; this engine's confinement
// primitives are Linux-only.
func RunExecInit(args []string) {
	log.Fatal("_exec_init: only supported on Linux")
}
