package solosh

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Manager ties the Registry to the controlling terminal and owns the
// SIGCHLD reaper goroutine. One Manager exists per shell process.
type Manager struct {
	Registry *Registry

	// History and Session are optional: when set, every job that leaves
	// the Registry is appended to the completed-job audit log. Neither
	// field participates in job-control correctness; a nil History simply
	// means no log is kept.
	History *HistoryManager
	Session *Session

	// ExitRequested and ExitCode are the process-wide exit flag the exit
	// builtin sets (§4.5/§5) instead of calling os.Exit itself: the main
	// loop checks ExitRequested after each line and stops reading more
	// input, so deferred cleanup (closing the history log, restoring the
	// terminal's line-editing mode) still runs before the process exits.
	ExitRequested bool
	ExitCode      int

	ttyFd   int
	ownPgid int

	// waitMu serializes the one "-1" waiter the process may have active at
	// a time. reapAvailable and FGWait both want to call Wait4(-1, ...),
	// and the kernel has exactly one set of zombies to hand out: two
	// concurrent -1 waiters race for the same foreground child, and
	// whichever one the kernel wakes "wins" it, leaving the other's view
	// of that job's run_count stuck above zero forever. FGWait holds this
	// lock for the whole time it owns the foreground, so the background
	// reaper simply defers to it instead of competing.
	waitMu sync.Mutex

	sigchld chan os.Signal
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewManager wires a Manager to the process's controlling terminal (stdin)
// and starts the background reaper. Call Stop at shell exit.
func NewManager() *Manager {
	jm := &Manager{
		Registry: GetRegistry(),
		ttyFd:    int(os.Stdin.Fd()),
		ownPgid:  syscall.Getpgrp(),
		sigchld:  make(chan os.Signal, 16),
		done:     make(chan struct{}),
	}

	// The shell must not be killed or suspended by signals meant for the
	// foreground job it just handed the terminal to; discarding (rather
	// than signal.Ignore) leaves the real disposition at SIG_DFL so a
	// forked child's execve() resets it correctly without extra work
	// (see the note in setupSignals).
	setupSignals()

	signal.Notify(jm.sigchld, syscall.SIGCHLD)
	jm.wg.Add(1)
	go jm.reapLoop()

	return jm
}

// Stop releases the Manager's signal subscriptions and drains any jobs
// still tracked by the Registry. Called once at shell exit.
func (jm *Manager) Stop() {
	signal.Stop(jm.sigchld)
	close(jm.done)
	jm.wg.Wait()
	jm.Registry.DestroyAll()
}

// setupSignals arranges for the shell itself to ignore the job-control
// signals a foreground job's terminal activity can raise. Using
// signal.Notify into a channel that nobody reads (rather than
// signal.Ignore) matters here: signal.Ignore installs a real SIG_IGN
// disposition, and SIG_IGN survives execve() into every child the shell
// forks, which would leave every job immune to ^C and ^Z. Go's internal
// signal-delivery handler, on the other hand, is reset to SIG_DFL by
// execve() for any signal that was never set to SIG_IGN, which is exactly
// the default disposition a forked stage needs before it restores default
// dispositions itself and calls execve().
func setupSignals() {
	ignored := make(chan os.Signal, 64)
	signal.Notify(ignored, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTSTP, syscall.SIGTTIN, syscall.SIGTTOU)
	go func() {
		for range ignored {
		}
	}()
}

// reapLoop drains SIGCHLD notifications and reaps every exited or stopped
// child with a non-blocking Wait4 loop, since a single SIGCHLD can coalesce
// more than one child state change.
func (jm *Manager) reapLoop() {
	defer jm.wg.Done()
	for {
		select {
		case <-jm.done:
			return
		case <-jm.sigchld:
			jm.reapAvailable()
		}
	}
}

// reapAvailable reaps every currently-waitable child, unless a foreground
// job is live right now: FGWait already owns the "-1" waiter in that case
// and will report this same SIGCHLD to itself, so reapAvailable backs off
// rather than racing it for the same pid (see waitMu).
func (jm *Manager) reapAvailable() {
	if !jm.waitMu.TryLock() {
		return
	}
	defer jm.waitMu.Unlock()

	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED, nil)
		if err != nil || pid <= 0 {
			return
		}
		jm.handleChildStatus(pid, ws)
	}
}

// handleChildStatus implements the canonical SIGCHLD handler (§4.5): a
// stopped child only flips its Job's Blocking flag so fg_wait notices and
// gives up the foreground; an exited or signaled child is reaped
// (run_count decremented, Job erased at zero) only when it is NOT the
// foreground job, since the foreground job's own stages are reaped
// directly by fg_wait's waitpid loop. The job.Blocking check below is a
// second line of defense — waitMu already keeps this function from ever
// running concurrently with FGWait for the job it owns.
func (jm *Manager) handleChildStatus(pid int, ws unix.WaitStatus) {
	job := jm.Registry.FindByPID(pid)
	if job == nil {
		return
	}

	switch {
	case ws.Stopped():
		job.Blocking = false

	case ws.Exited(), ws.Signaled():
		if job.Blocking {
			// Foreground: fg_wait owns this pid's exit and will account
			// for it itself.
			return
		}
		job.ExitStatus = exitStatusOf(ws)
		job.RunCount--
		if job.RunCount <= 0 {
			jm.Registry.Erase(job)
			jm.recordHistory(job)
		}
	}
}

func exitStatusOf(ws unix.WaitStatus) int {
	if ws.Exited() {
		return ws.ExitStatus()
	}
	return 128 + int(ws.Signal())
}

// recordHistory appends job to the audit log if one is configured. Errors
// are logged, not propagated: a broken history database must never stop
// the shell from running jobs.
func (jm *Manager) recordHistory(job *Job) {
	if jm.History == nil {
		return
	}
	sessionID := ""
	if jm.Session != nil {
		sessionID = jm.Session.ID
	}
	if err := jm.History.Record(sessionID, job, job.ExitStatus, job.StartedAt); err != nil {
		fmt.Fprintf(os.Stderr, "solosh: history: %v\n", err)
	}
}

// FGWait gives job the controlling terminal and blocks until every stage
// exits or the job is stopped, implementing §4.5's fg_wait algorithm. On
// return the terminal is always handed back to the shell's own process
// group, even if the job was stopped rather than finished.
func (jm *Manager) FGWait(job *Job) {
	if job.Pgid == 0 {
		// Pipeline was entirely built-ins; nothing to wait on or hand the
		// terminal to.
		return
	}

	// Take sole ownership of the process's "-1" waiter for as long as this
	// job holds the foreground; see waitMu's doc comment.
	jm.waitMu.Lock()
	defer jm.waitMu.Unlock()

	// Save whatever process group actually owns the terminal right now,
	// rather than assuming it is still jm.ownPgid: that's normally true,
	// but asking the terminal directly is what the original shell does
	// and survives the shell's own pgid having drifted since startup.
	prevPgrp, err := tcgetpgrp(jm.ttyFd)
	if err != nil {
		prevPgrp = jm.ownPgid
	}

	_ = tcsetpgrp(jm.ttyFd, job.Pgid)

	job.Blocking = true
	for job.Blocking {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WUNTRACED, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			// ECHILD: no more children to wait for.
			break
		}
		if !jm.ownsPid(job, pid) {
			jm.handleChildStatus(pid, ws)
			continue
		}
		switch {
		case ws.Stopped():
			job.Blocking = false
		case ws.Exited(), ws.Signaled():
			job.ExitStatus = exitStatusOf(ws)
			job.RunCount--
			if job.RunCount <= 0 {
				job.Blocking = false
			}
		}
	}

	_ = tcsetpgrp(jm.ttyFd, prevPgrp)

	if job.RunCount <= 0 {
		jm.Registry.Erase(job)
		jm.recordHistory(job)
	}
	job.LastModified = time.Now()
}

func (jm *Manager) ownsPid(job *Job, pid int) bool {
	for _, p := range job.Pids {
		if p == pid {
			return true
		}
	}
	return false
}

// Continue sends SIGCONT to job's process group and marks it running
// again, used by both fg and bg (§4.5).
func (jm *Manager) Continue(job *Job) error {
	job.Blocking = false
	job.LastModified = time.Now()
	return syscall.Kill(-job.Pgid, syscall.SIGCONT)
}
