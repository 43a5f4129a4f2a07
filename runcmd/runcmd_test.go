package runcmd

import (
	"os"
	"testing"
	"time"
)

// TestMain performs the shim check RunExecFailShim's contract asks of every
// embedding main(): Run re-execs this test binary for a command missing
// from PATH, and that child must exit EXECFAILSTATUS instead of rerunning
// the tests.
func TestMain(m *testing.M) {
	if os.Getenv(ShimEnvVar) == "1" {
		RunExecFailShim()
	}
	os.Exit(m.Run())
}

func TestPackStatusBitsDocumented(t *testing.T) {
	if ExitCodeMask != 0xFF {
		t.Fatalf("ExitCodeMask = %#x, want 0xFF", ExitCodeMask)
	}
	if NORMTERM != 1<<8 {
		t.Fatalf("NORMTERM = %d, want %d", NORMTERM, 1<<8)
	}
	if EXECOK != 1<<9 {
		t.Fatalf("EXECOK = %d, want %d", EXECOK, 1<<9)
	}
	if NONBLOCK != 1<<10 {
		t.Fatalf("NONBLOCK = %d, want %d", NONBLOCK, 1<<10)
	}
}

func TestRunTrueExitsZero(t *testing.T) {
	pid, status, err := Run("true", nil, nil, true, nil)
	if err != nil {
		t.Fatalf("Run(true) error: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("Run(true) pid = %d, want > 0", pid)
	}
	if status&EXECOK == 0 {
		t.Fatalf("status %#x missing EXECOK", status)
	}
	if status&NORMTERM == 0 {
		t.Fatalf("status %#x missing NORMTERM", status)
	}
	if status&ExitCodeMask != 0 {
		t.Fatalf("status %#x has nonzero exit code, want 0", status)
	}
}

func TestRunFalseExitsOne(t *testing.T) {
	_, status, err := Run("false", nil, nil, true, nil)
	if err != nil {
		t.Fatalf("Run(false) error: %v", err)
	}
	if status&ExitCodeMask != 1 {
		t.Fatalf("status %#x exit code = %d, want 1", status, status&ExitCodeMask)
	}
}

func TestRunMissingBinaryReportsExecFail(t *testing.T) {
	_, status, err := Run("nosuchbinary_xyz", nil, nil, true, nil)
	if err != nil {
		t.Fatalf("Run(missing) error: %v", err)
	}
	if status&EXECOK != 0 {
		t.Fatalf("status %#x has EXECOK set, want clear", status)
	}
	if status&NORMTERM == 0 {
		t.Fatalf("status %#x missing NORMTERM", status)
	}
	if status&ExitCodeMask != EXECFAILSTATUS {
		t.Fatalf("status %#x exit code = %d, want %d", status, status&ExitCodeMask, EXECFAILSTATUS)
	}
}

func TestRunNonBlockingReturnsImmediately(t *testing.T) {
	done := make(chan int, 1)
	pid, status, err := Run("true", nil, nil, false, func(p int, s int) {
		done <- s
	})
	if err != nil {
		t.Fatalf("Run(true, non-blocking) error: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("pid = %d, want > 0", pid)
	}
	if status != NONBLOCK {
		t.Fatalf("status = %#x, want exactly NONBLOCK", status)
	}

	select {
	case s := <-done:
		if s&NORMTERM == 0 || s&EXECOK == 0 {
			t.Fatalf("onExit status %#x missing NORMTERM|EXECOK", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("onExit callback never fired")
	}
}
