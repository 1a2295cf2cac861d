package sandbox

// ResourceLimits is an immutable policy record applied to a single sandboxed
// process via its cgroup. Two presets exist; only Execution is used by the
// match engine itself — Compilation is carried for parity with the policy
// table but invoked only by the (external) compiler collaborator.
type ResourceLimits struct {
	MemoryBytes uint64 // cgroup memory.max
	CPUQuotaUS  uint64 // cgroup cpu.max quota, microseconds per period
	CPUPeriodUS uint64 // cgroup cpu.max period, microseconds
	MaxPIDs     uint64 // cgroup pids.max
}

// ExecutionLimits is the preset applied to every bot process run by the
// Game Loop: 64MiB memory, one CPU (quota == period), 16 PIDs.
var ExecutionLimits = ResourceLimits{
	MemoryBytes: 64 << 20,
	CPUQuotaUS:  100_000,
	CPUPeriodUS: 100_000,
	MaxPIDs:     16,
}

// CompilationLimits is referenced only; compilation itself happens outside
// this engine, but the preset is kept alongside Execution for configuration
// parity and possible future reuse by a compiler sidecar.
var CompilationLimits = ResourceLimits{
	MemoryBytes: 512 << 20,
	CPUQuotaUS:  100_000,
	CPUPeriodUS: 100_000,
	MaxPIDs:     128,
}
