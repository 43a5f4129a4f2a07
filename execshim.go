package solosh

import "os"

// ExecFailShimEnv, when set to "1" in a re-exec of the shell's own binary,
// tells main() to skip the normal shell startup and instead behave exactly
// like a child whose execvp() failed: exit with EXECFAILSTATUS.
//
// Go offers no way to run arbitrary code in a forked child between fork()
// and execve() (SysProcAttr only exposes a fixed menu of kernel-level
// setup steps), so there is no direct way to reproduce "fork a real
// process, have it fail execvp, exit 127" for a program that genuinely
// cannot be found on PATH. Re-executing our own binary with this flag set
// gives us a real, separately-scheduled child process that does exactly
// that, observably identical through the normal reaping path (§8
// scenario 6) to a process that forked and then failed its own execvp.
const ExecFailShimEnv = "SOLOSH_EXEC_FAIL_SHIM"

// EXECFAILSTATUS is the exit status a stage reports when its command could
// not be found or exec'd, matching the runcmd library's EXECFAILSTATUS.
const EXECFAILSTATUS = 127

// RunExecFailShim performs the exec-failure-shim protocol described above
// and never returns. It is invoked from cmd/solosh's main() before any
// other startup work, guarded by ExecFailShimEnv.
func RunExecFailShim() {
	os.Exit(EXECFAILSTATUS)
}
