// Package parser turns a raw input line into a structured description of a
// pipeline: the argv of each stage, the optional input/output redirection
// targets and whether the line ends in a background marker.
//
// The grammar is deliberately small: no quoting, no escaping, no globbing,
// no variable expansion. Tokens are split on blanks; '|', '<', '>' and a
// trailing '&' are the only metacharacters.
package parser

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var lineLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Word", Pattern: `[^\s|<>&]+`},
	{Name: "Pipe", Pattern: `\|`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

// rawCommand is a single pipeline stage's argv, split purely on blanks.
type rawCommand struct {
	Words []string `parser:"@Word+"`
}

// rawLine is the grammar's top-level production: a pipe-separated sequence
// of stages. Redirection and the trailing background marker are stripped
// from the line before this grammar ever sees it (CleanCommand), so the
// grammar itself only needs to know about '|'.
type rawLine struct {
	Stages []*rawCommand `parser:"@@ ( Pipe @@ )*"`
}

var lineParser = participle.MustBuild[rawLine](
	participle.Lexer(lineLexer),
	participle.Elide("Whitespace"),
)

// Stage is one command in a pipeline: argv[0] is the program name.
type Stage struct {
	Argv []string
}

// ParsedLine is the pure, side-effect-free result of Parse: no files are
// opened and no process is touched. Redirection is recorded as bare paths;
// turning those into open file descriptors is the launcher's job, since that
// step can fail and must not be conflated with a syntax error.
type ParsedLine struct {
	// Raw is the original input line, used for display by `jobs` and for
	// re-deriving the name of a job.
	Raw string

	Stages []Stage

	InputPath  string // "" if no '<' redirection was requested
	OutputPath string // "" if no '>' redirection was requested

	// Blocking is false only when the line's last non-whitespace token is a
	// lone '&' preceded by whitespace.
	Blocking bool
}

// ParseError wraps a malformed line. The main loop logs it and re-prompts;
// it never aborts the shell.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse converts a single input line into a ParsedLine. An empty line, or
// one consisting only of blanks, returns (nil, nil): the caller re-prompts
// without treating it as an error.
func Parse(line string) (*ParsedLine, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}

	blocking := IsBlocking(line)
	clean := CleanCommand(line)

	if strings.TrimSpace(clean) == "" {
		return nil, nil
	}

	raw, err := lineParser.ParseString("", clean)
	if err != nil {
		return nil, &ParseError{Line: line, Err: err}
	}

	pl := &ParsedLine{
		Raw:      line,
		Blocking: blocking,
	}
	for _, s := range raw.Stages {
		if len(s.Words) == 0 {
			continue
		}
		pl.Stages = append(pl.Stages, Stage{Argv: s.Words})
	}
	if len(pl.Stages) == 0 {
		return nil, nil
	}

	pl.InputPath = GetIORedirTarget(line, '<')
	pl.OutputPath = GetIORedirTarget(line, '>')

	return pl, nil
}

// IsBlocking reports whether the line's trailing token is NOT a background
// marker. A lone '&' only counts as the marker when preceded by whitespace;
// "foo&" stays a blocking job, not "foo" backgrounded (CleanCommand still
// drops the '&', so its argv is just "foo").
func IsBlocking(line string) bool {
	for i := len(line) - 1; i > 0; i-- {
		if line[i] == '&' {
			return !isBlank(line[i-1])
		}
		if !isBlank(line[i]) {
			return true
		}
	}
	return true
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

// CleanCommand returns the prefix of line up to (but not including) the
// first '<', '>' or '&' metacharacter. This is the text that gets split
// into pipeline stages; redirection and the background marker are parsed
// out of the full line separately.
func CleanCommand(line string) string {
	i := strings.IndexAny(line, "<>&")
	if i < 0 {
		return line
	}
	return line[:i]
}

// GetIORedirTarget scans line for the first occurrence of which ('<' or
// '>') and returns the filename token that follows it, or "" if none is
// present or the redirection has no filename.
func GetIORedirTarget(line string, which byte) string {
	i := strings.IndexByte(line, which)
	if i < 0 {
		return ""
	}
	i++
	for i < len(line) && isBlank(line[i]) {
		i++
	}
	start := i
	for i < len(line) && !isBlank(line[i]) && line[i] != '|' {
		i++
	}
	if i == start {
		return ""
	}
	return line[start:i]
}

// Builtin enumerates SoloSH's fixed, non-extensible set of built-in words.
type Builtin int

const (
	NONE Builtin = iota
	BG
	CD
	EXIT
	FG
	JOBS
	QUIT
)

var builtinWords = map[string]Builtin{
	"bg":   BG,
	"cd":   CD,
	"exit": EXIT,
	"fg":   FG,
	"jobs": JOBS,
	"quit": QUIT,
}

// BuiltinOf classifies the first word of a stage's argv.
func BuiltinOf(word string) Builtin {
	if b, ok := builtinWords[word]; ok {
		return b
	}
	return NONE
}

// Reconstruct renders a ParsedLine back to shell syntax, normalizing
// whitespace and metacharacter spacing. Used by tests to check that
// parse . reconstruct is idempotent up to spacing.
func Reconstruct(pl *ParsedLine) string {
	var b strings.Builder
	for i, s := range pl.Stages {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(strings.Join(s.Argv, " "))
	}
	if pl.InputPath != "" {
		fmt.Fprintf(&b, " < %s", pl.InputPath)
	}
	if pl.OutputPath != "" {
		fmt.Fprintf(&b, " > %s", pl.OutputPath)
	}
	if !pl.Blocking {
		b.WriteString(" &")
	}
	return b.String()
}
