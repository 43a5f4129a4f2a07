package solosh

import (
	"fmt"
	"strconv"

	"solosh/parser"
)

// builtinFuncs dispatches a Builtin token (as resolved by parser.BuiltinOf)
// to its implementation. Every builtin runs synchronously in the shell
// process itself (never forked), so it can mutate the GlobalState and
// Registry directly.
var builtinFuncs = map[parser.Builtin]func(jm *Manager, job *Job, argv []string) error{
	parser.BG:    bgCmd,
	parser.CD:    cdCmd,
	parser.EXIT:  exitCmd,
	parser.FG:    fgCmd,
	parser.JOBS:  jobsCmd,
	parser.QUIT:  exitCmd,
}

func cdCmd(jm *Manager, job *Job, argv []string) error {
	target := ""
	if len(argv) > 1 {
		target = argv[1]
	}
	_, err := GetGlobalState().Chdir(target)
	if err != nil {
		return fmt.Errorf("cd: %v", err)
	}
	return nil
}

// exitCmd sets the shell's exit flag rather than terminating the process
// directly (§4.5): the main loop notices it after the current line and
// unwinds normally, so the terminal and history log get their chance to
// close cleanly.
func exitCmd(jm *Manager, job *Job, argv []string) error {
	code := 0
	if len(argv) > 1 {
		if n, err := strconv.Atoi(argv[1]); err == nil {
			code = n
		}
	}
	jm.ExitRequested = true
	jm.ExitCode = code
	return nil
}

func jobsCmd(jm *Manager, job *Job, argv []string) error {
	for _, entry := range jm.Registry.List() {
		fmt.Printf("[%d] %s\n", entry.Index, entry.Job.Name)
	}
	return nil
}

func fgCmd(jm *Manager, job *Job, argv []string) error {
	target, err := resolveJobArg(jm, argv)
	if err != nil {
		return err
	}
	if err := jm.Continue(target); err != nil {
		return fmt.Errorf("fg: %v", err)
	}
	jm.FGWait(target)
	return nil
}

func bgCmd(jm *Manager, job *Job, argv []string) error {
	target, err := resolveJobArg(jm, argv)
	if err != nil {
		return err
	}
	if err := jm.Continue(target); err != nil {
		return fmt.Errorf("bg: %v", err)
	}
	fmt.Printf("[%d]+ %s &\n", target.slot, target.Name)
	return nil
}

// resolveJobArg finds the target of a bare fg/bg: an explicit display
// index if given, otherwise the most recently modified live job.
func resolveJobArg(jm *Manager, argv []string) (*Job, error) {
	if len(argv) > 1 {
		idx, err := strconv.Atoi(argv[1])
		if err != nil {
			return nil, fmt.Errorf("%s: invalid job id %q", argv[0], argv[1])
		}
		job := jm.Registry.ByIndex(idx)
		if job == nil {
			return nil, fmt.Errorf("%s: no such job %d", argv[0], idx)
		}
		return job, nil
	}
	job := jm.Registry.FindLastModified()
	if job == nil {
		return nil, fmt.Errorf("%s: no current job", argv[0])
	}
	return job, nil
}
