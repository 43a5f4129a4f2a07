package solosh

import (
	"os"
	"path/filepath"
	"sync"
)

// GlobalState is the process-wide state shared by the main loop, the
// launcher and the `cd` builtin: the shell's notion of its own working
// directory, kept in sync with the PWD environment variable so that
// children launched via execvp-style lookup see a consistent view.
type GlobalState struct {
	mu          sync.RWMutex
	cwd         string
	previousDir string
	shellPID    int
}

var (
	globalStateOnce sync.Once
	globalState     *GlobalState
)

// GetGlobalState returns the singleton GlobalState, initializing it from
// the process's actual working directory on first use.
func GetGlobalState() *GlobalState {
	globalStateOnce.Do(func() {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = os.Getenv("HOME")
			if cwd == "" {
				cwd = "/"
			}
		}
		globalState = &GlobalState{
			cwd:      cwd,
			shellPID: os.Getpid(),
		}
		os.Setenv("PWD", cwd)
	})
	return globalState
}

// resetGlobalStateForTest exists only for test isolation.
func resetGlobalStateForTest() {
	globalStateOnce = sync.Once{}
	globalState = nil
}

// Chdir changes the shell's working directory, updates PWD and returns the
// resolved absolute path. This is the only mutator cd (§4.5) needs.
func (gs *GlobalState) Chdir(target string) (string, error) {
	if target == "" {
		target = os.Getenv("HOME")
	}
	if err := os.Chdir(target); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		abs = resolved
	}

	gs.mu.Lock()
	gs.previousDir = gs.cwd
	gs.cwd = abs
	gs.mu.Unlock()

	os.Setenv("PWD", abs)
	return abs, nil
}

// GetCWD returns the shell's current working directory.
func (gs *GlobalState) GetCWD() string {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.cwd
}

// GetPreviousDir returns the directory cd last moved away from.
func (gs *GlobalState) GetPreviousDir() string {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.previousDir
}

// GetShellPID returns the shell's own process id.
func (gs *GlobalState) GetShellPID() int {
	return gs.shellPID
}
