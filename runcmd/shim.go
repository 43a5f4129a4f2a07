package runcmd

import "os"

// shimEnvVar marks a re-exec of the calling binary as a stand-in for a
// command that could not be found on PATH, mirroring the shell's own
// exec-failure shim (see execshim.go in the parent module) for the same
// reason: Go gives no hook to run code in a forked child between fork and
// execve, so a faithful "fork, fail exec, exit 127" needs a real process.
const shimEnvVar = "RUNCMD_EXEC_FAIL_SHIM"

// ShimEnvVar exposes shimEnvVar to callers that need to check it in main().
const ShimEnvVar = shimEnvVar

// RunExecFailShim performs the exec-failure protocol and never returns.
// A caller embedding runcmd must check ShimEnvVar at the very top of its
// own main() and call this before anything else, the same way the shell
// binary checks SOLOSH_EXEC_FAIL_SHIM.
func RunExecFailShim() {
	os.Exit(EXECFAILSTATUS)
}
