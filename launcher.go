package solosh

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"solosh/parser"
)

// NewJob builds the runtime Job for a freshly parsed line, opening any
// redirection targets it names. Opening happens here rather than deeper in
// the parser so that a bad filename is reported as a launch-time I/O error,
// not folded into the parser's syntax-error path (§7).
//
// A negative/failed open does not abort job creation: per the grammar's
// edge cases, the launcher falls back to default stdio for that end of the
// pipeline and keeps going.
func NewJob(parsed *parser.ParsedLine) (*Job, error) {
	job := &Job{
		Name: parsed.Raw,
		Spec: parsed,
		Pids: make([]int, len(parsed.Stages)),
	}

	if parsed.InputPath != "" {
		f, err := os.Open(parsed.InputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "solosh: %s: %v\n", parsed.InputPath, err)
		} else {
			job.inputFile = f
		}
	}
	if parsed.OutputPath != "" {
		f, err := os.OpenFile(parsed.OutputPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "solosh: %s: %v\n", parsed.OutputPath, err)
		} else {
			job.outputFile = f
		}
	}

	return job, nil
}

// Launch runs every stage of job: built-ins execute synchronously in the
// shell process, external commands are forked with a shared process group
// and wired pipe-to-pipe. The Job is pushed into the Registry before any
// fork happens, so a SIGCHLD racing the launch loop can still find it
// (§4.3 step 3).
func Launch(jm *Manager, job *Job) error {
	n := len(job.Spec.Stages)
	if n == 0 {
		return errors.New("launch: empty pipeline")
	}

	pipes := make([]*ioPipe, n-1)
	for i := range pipes {
		r, w, err := os.Pipe()
		if err != nil {
			closePipes(pipes)
			return errors.Wrap(err, "launch: creating pipe")
		}
		pipes[i] = &ioPipe{r: r, w: w}
	}

	job.Pgid = 0
	job.RunCount = n
	job.Blocking = job.Spec.Blocking
	job.StartedAt = time.Now()
	jm.Registry.Push(job)

	for k, stage := range job.Spec.Stages {
		input := stageInput(job, pipes, k)
		output := stageOutput(job, pipes, k, n)

		if b := parser.BuiltinOf(stage.Argv[0]); b != parser.NONE {
			runBuiltinSync(jm, job, b, stage)
			job.Pids[k] = 0
			job.RunCount--
			continue
		}

		pid, err := forkStage(stage.Argv, input, output, job.Pgid)
		closeIfOwned(job, input)
		closeIfOwned(job, output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "solosh: %v\n", err)
			job.Pids[k] = 0
			job.RunCount--
			continue
		}

		job.Pids[k] = pid
		if job.Pgid == 0 {
			job.Pgid = pid
			job.LastModified = time.Now()
		}
		// Race-safe duplicate of the child's own setpgid; by the time we
		// get here the child has very likely already called it (or even
		// exec'd), so EACCES/ESRCH here are expected, not fatal.
		_ = syscall.Setpgid(pid, job.Pgid)
	}

	closeParentPipeEnds(pipes)
	closeRedirectFiles(job)

	if job.RunCount == 0 && job.Pgid == 0 {
		// Every stage was a builtin; nothing to wait for.
		jm.Registry.Erase(job)
	}

	if job.Blocking {
		jm.FGWait(job)
	}

	return nil
}

type ioPipe struct {
	r, w *os.File
}

func closePipes(pipes []*ioPipe) {
	for _, p := range pipes {
		if p == nil {
			continue
		}
		p.r.Close()
		p.w.Close()
	}
}

func closeParentPipeEnds(pipes []*ioPipe) {
	for _, p := range pipes {
		if p == nil {
			continue
		}
		p.r.Close()
		p.w.Close()
	}
}

// closeRedirectFiles closes the job's own opened `< in`/`> out` files once
// every stage has taken its copy via Stdin/Stdout: each forked child keeps
// the fd alive through its own open file description, so the parent's
// reference is no longer needed once the last stage has started.
func closeRedirectFiles(job *Job) {
	if job.inputFile != nil {
		job.inputFile.Close()
	}
	if job.outputFile != nil {
		job.outputFile.Close()
	}
}

// stageInput resolves stdin for stage k: the job's input redirect (stage 0
// only), the previous stage's pipe read end, or the shell's own stdin.
func stageInput(job *Job, pipes []*ioPipe, k int) *os.File {
	if k == 0 {
		if job.inputFile != nil {
			return job.inputFile
		}
		return os.Stdin
	}
	return pipes[k-1].r
}

// stageOutput resolves stdout for stage k: the job's output redirect (last
// stage only), the next stage's pipe write end, or the shell's own stdout.
func stageOutput(job *Job, pipes []*ioPipe, k, n int) *os.File {
	if k == n-1 {
		if job.outputFile != nil {
			return job.outputFile
		}
		return os.Stdout
	}
	return pipes[k].w
}

// closeIfOwned closes f once the exec.Cmd that needed it has taken its own
// duplicate, but never closes the shell's own stdio, a still-live pipe end
// another stage hasn't consumed yet, or a redirect file: those are closed
// in bulk, once every stage has started, by closeParentPipeEnds and
// closeRedirectFiles respectively.
func closeIfOwned(job *Job, f *os.File) {
	if f == os.Stdin || f == os.Stdout || f == job.inputFile || f == job.outputFile {
		return
	}
	f.Close()
}

// forkStage launches one external command as its own OS process, wired per
// §4.3: a shared process group, redirected stdin/stdout, and the
// exec-failure channel generalized from §4.2.
//
// The channel is not a literal pipe here. A real close-on-exec pipe only
// auto-closes on a successful execve() because CLOEXEC is a property of
// the file descriptor itself; Go's os/exec deliberately clears CLOEXEC on
// every fd it maps through ExtraFiles; so a pipe fd handed to a child that
// actually execs a real program (argv[0] found on PATH) stays open,
// inherited, for that program's entire lifetime — reading it in the
// parent would block until the child exits, serializing every later stage
// of the pipeline behind the first. Go's os/exec already performs the
// equivalent check internally (its own private exec-failure pipe) and
// surfaces it synchronously as cmd.Start()'s return value, so that is the
// channel this code relies on for the "found but exec still fails" case.
// For "not found on PATH" (execvp's ENOENT case, never possible to
// reach via a real execve() in Go's LookPath-then-Start flow) the
// generalized channel is the re-exec shim in execshim.go: a genuine child
// process is forked, it never calls execve() itself, and it always exits
// EXECFAILSTATUS, which is exactly what §4.2 describes the child doing on
// exec failure.
func forkStage(argv []string, input, output *os.File, pgid int) (int, error) {
	path, lookErr := exec.LookPath(argv[0])

	cmd := &exec.Cmd{
		Args:   argv,
		Stdin:  input,
		Stdout: output,
		Stderr: os.Stderr,
		Dir:    GetGlobalState().GetCWD(),
		Env:    os.Environ(),
		SysProcAttr: &syscall.SysProcAttr{
			Setpgid: true,
			Pgid:    pgid,
		},
	}

	if lookErr != nil {
		self, serr := os.Executable()
		if serr != nil {
			return 0, errors.Wrapf(lookErr, "exec lookup for %q", argv[0])
		}
		cmd.Path = self
		cmd.Env = append(cmd.Env, ExecFailShimEnv+"=1")
	} else {
		cmd.Path = path
	}

	if err := cmd.Start(); err != nil {
		return 0, errors.Wrapf(err, "starting %q", argv[0])
	}

	// Deliberately never call cmd.Wait(): every forked stage's exit is
	// reaped by the Manager's own unix.Wait4(-1, ...) loop (controller.go),
	// and a second, concurrent waiter on the same pid would race it —
	// whichever call lands first consumes the exit status and leaves the
	// other blocked forever or failing with ECHILD.
	return cmd.Process.Pid, nil
}

func runBuiltinSync(jm *Manager, job *Job, b parser.Builtin, stage parser.Stage) {
	if fn, ok := builtinFuncs[b]; ok {
		if err := fn(jm, job, stage.Argv); err != nil {
			fmt.Fprintf(os.Stderr, "solosh: %s: %v\n", stage.Argv[0], err)
		}
	}
}
