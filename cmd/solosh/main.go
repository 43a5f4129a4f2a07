// Command solosh is a small job-control-aware Unix shell: pipelines,
// input/output redirection and foreground/background job management, with
// no variable expansion, globbing, aliases or scripting constructs.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"solosh"
	"solosh/parser"
	"solosh/runcmd"
)

const banner = "solosh -- a job-control shell"

var (
	versionFlag bool
	commandFlag string

	// shellManager is set once run() creates the Manager, so main can read
	// back the exit flag (§4.5) after run's own deferred cleanup
	// (terminal restore, history close) has already unwound.
	shellManager *solosh.Manager
)

func main() {
	// Every forked pipeline stage whose command couldn't be found on PATH
	// is actually this same binary, re-exec'd with this flag set, standing
	// in for a process that genuinely failed its exec. This check must run
	// before any other startup work.
	if os.Getenv(solosh.ExecFailShimEnv) == "1" {
		solosh.RunExecFailShim()
	}
	if os.Getenv(runcmd.ShimEnvVar) == "1" {
		runcmd.RunExecFailShim()
	}

	root := &cobra.Command{
		Use:           "solosh [script_file]",
		Short:         banner,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE:          run,
	}
	root.Flags().BoolVar(&versionFlag, "version", false, "print the banner and exit")
	root.Flags().StringVarP(&commandFlag, "command", "c", "", "parse and run COMMAND as a single job, then exit")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "solosh:", err)
		os.Exit(255)
	}

	if shellManager != nil && shellManager.ExitRequested {
		os.Exit(shellManager.ExitCode)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if versionFlag {
		fmt.Println(banner)
		return nil
	}

	logger := newLogger()
	defer logger.Sync()

	sess := solosh.NewSession(os.Getpid())
	logger = logger.With(zap.String("session", sess.ID))
	hist, err := solosh.NewHistoryManager("")
	if err != nil {
		logger.Warn("history log unavailable", zap.Error(err))
		hist = nil
	} else {
		defer hist.Close()
	}

	jm := solosh.NewManager()
	jm.History = hist
	jm.Session = sess
	shellManager = jm
	defer jm.Stop()

	if commandFlag != "" {
		runLine(jm, logger, commandFlag)
		return nil
	}

	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		defer f.Close()
		return runScript(jm, logger, f)
	}

	return runInteractive(jm, logger)
}

func runScript(jm *solosh.Manager, logger *zap.Logger, f *os.File) error {
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		runLine(jm, logger, scanner.Text())
		if jm.ExitRequested {
			break
		}
	}
	return scanner.Err()
}

func runInteractive(jm *solosh.Manager, logger *zap.Logger) error {
	fmt.Println(banner)

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return runScript(jm, logger, os.Stdin)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          solosh.GetPrompt(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	for {
		rl.SetPrompt(solosh.GetPrompt())
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		runLine(jm, logger, line)
		if jm.ExitRequested {
			return nil
		}
	}
}

func runLine(jm *solosh.Manager, logger *zap.Logger, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	parsed, err := parser.Parse(line)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if parsed == nil {
		return
	}

	job, err := solosh.NewJob(parsed)
	if err != nil {
		logger.Error("job creation failed", zap.String("line", line), zap.Error(err))
		return
	}

	if err := solosh.Launch(jm, job); err != nil {
		fmt.Fprintf(os.Stderr, "solosh: %v\n", err)
	}
}

// newLogger builds a structured logger for startup/background diagnostics
// (history-log failures, job-creation errors). It stays silent unless
// SOLOSH_DEBUG is set, since a shell's ordinary output is the jobs it runs,
// not its own log lines.
func newLogger() *zap.Logger {
	if os.Getenv("SOLOSH_DEBUG") == "" {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
