package parser

import "testing"

func TestParseSimpleCommand(t *testing.T) {
	pl, err := Parse("echo hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pl.Stages) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(pl.Stages))
	}
	if got := pl.Stages[0].Argv; len(got) != 2 || got[0] != "echo" || got[1] != "hello" {
		t.Fatalf("unexpected argv: %v", got)
	}
	if !pl.Blocking {
		t.Fatal("expected blocking job")
	}
}

func TestParsePipeline(t *testing.T) {
	pl, err := Parse("ls | wc -l")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pl.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(pl.Stages))
	}
	if pl.Stages[0].Argv[0] != "ls" {
		t.Fatalf("unexpected first stage: %v", pl.Stages[0].Argv)
	}
	if pl.Stages[1].Argv[0] != "wc" || pl.Stages[1].Argv[1] != "-l" {
		t.Fatalf("unexpected second stage: %v", pl.Stages[1].Argv)
	}
}

func TestParseRedirection(t *testing.T) {
	pl, err := Parse("cat < /tmp/in > /tmp/out")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pl.InputPath != "/tmp/in" {
		t.Fatalf("unexpected input path: %q", pl.InputPath)
	}
	if pl.OutputPath != "/tmp/out" {
		t.Fatalf("unexpected output path: %q", pl.OutputPath)
	}
}

func TestBackgroundMarker(t *testing.T) {
	pl, err := Parse("sleep 5 &")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pl.Blocking {
		t.Fatal("expected non-blocking job")
	}
	if len(pl.Stages) != 1 || len(pl.Stages[0].Argv) != 2 {
		t.Fatalf("unexpected stages: %+v", pl.Stages)
	}
}

func TestTrailingAmpNoSpaceIsNotBackground(t *testing.T) {
	// "foo&" has no whitespace before '&', so the '&' is not a background
	// marker.
	if IsBlocking("foo&") != true {
		t.Fatal("foo& (no preceding space) must still be blocking")
	}
}

func TestEmptyLineIsNil(t *testing.T) {
	pl, err := Parse("")
	if err != nil || pl != nil {
		t.Fatalf("expected (nil, nil) for empty line, got (%v, %v)", pl, err)
	}

	pl, err = Parse("   \t  ")
	if err != nil || pl != nil {
		t.Fatalf("expected (nil, nil) for blank line, got (%v, %v)", pl, err)
	}
}

func TestRedirectWithNoFilename(t *testing.T) {
	pl, err := Parse("cat >")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if pl.OutputPath != "" {
		t.Fatalf("expected empty output path, got %q", pl.OutputPath)
	}
}

func TestBuiltinOf(t *testing.T) {
	cases := map[string]Builtin{
		"bg":   BG,
		"cd":   CD,
		"exit": EXIT,
		"fg":   FG,
		"jobs": JOBS,
		"quit": QUIT,
		"ls":   NONE,
	}
	for word, want := range cases {
		if got := BuiltinOf(word); got != want {
			t.Errorf("BuiltinOf(%q) = %v, want %v", word, got, want)
		}
	}
}

func TestReconstructRoundTrip(t *testing.T) {
	inputs := []string{
		"echo hello",
		"ls | wc -l",
		"sleep 5 &",
	}
	for _, in := range inputs {
		pl, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		out := Reconstruct(pl)
		pl2, err := Parse(out)
		if err != nil {
			t.Fatalf("Parse(reconstruct(%q)=%q): %v", in, out, err)
		}
		if len(pl.Stages) != len(pl2.Stages) || pl.Blocking != pl2.Blocking {
			t.Fatalf("round trip mismatch for %q: %+v vs %+v", in, pl, pl2)
		}
	}
}
