package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/thomasrohde/pairlisp/pkg/runtime"
)

type output struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newTestCLI(t *testing.T, stdin string) (*cli, *output) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	out := &output{}
	return &cli{stdin: strings.NewReader(stdin), stdout: &out.stdout, stderr: &out.stderr}, out
}

func writeProgram(t *testing.T, program string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.json")
	if err := os.WriteFile(path, []byte(program), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func firstDiag(t *testing.T, stderr string) map[string]any {
	t.Helper()
	var diags []map[string]any
	if err := json.Unmarshal([]byte(stderr), &diags); err != nil {
		t.Fatalf("stderr is not a diagnostics array: %v (%s)", err, stderr)
	}
	if len(diags) == 0 {
		t.Fatal("no diagnostics")
	}
	return diags[0]
}

func TestRunCommand(t *testing.T) {
	tests := []struct {
		name    string
		program string
		args    []string
		exit    int
		stdout  string
		code    string
	}{
		{"value", `["cons", 1, ["quote", [2]]]`, nil, exitOK, "[1,2]\n", ""},
		{"dotted", `["cons", "a", "b"]`, nil, exitOK, `["a",".","b"]` + "\n", ""},
		{"pretty", `["quote", ["a", "b"]]`, []string{"--pretty"}, exitOK, "(a b)\n", ""},
		{"unbound", `"x"`, nil, exitRuntime, "", "E_UNBOUND"},
		{"call target", `[["quote", "a"]]`, nil, exitRuntime, "", "E_CALL_TARGET"},
		{"read error", `["cons", 1`, nil, exitCheck, "", "E_READ"},
		{"budget", `[["lambda", ["f"], ["f", "f"]], ["lambda", ["f"], ["f", "f"]]]`,
			[]string{"--max-steps", "500"}, exitBudget, "", "E_BUDGET"},
		{"depth", `[["lambda", ["f"], ["f", "f"]], ["lambda", ["f"], ["f", "f"]]]`,
			[]string{"--max-depth", "10"}, exitBudget, "", "E_BUDGET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newTestCLI(t, "")
			args := append([]string{"run", writeProgram(t, tt.program)}, tt.args...)
			if exit := c.main(args); exit != tt.exit {
				t.Fatalf("exit = %d, want %d (stderr: %s)", exit, tt.exit, out.stderr.String())
			}
			if tt.stdout != "" && out.stdout.String() != tt.stdout {
				t.Errorf("stdout = %q, want %q", out.stdout.String(), tt.stdout)
			}
			if tt.code != "" {
				if got := firstDiag(t, out.stderr.String())["code"]; got != tt.code {
					t.Errorf("code = %v, want %s", got, tt.code)
				}
			}
		})
	}
}

func TestRunFromStdin(t *testing.T) {
	c, out := newTestCLI(t, `["car", ["quote", [7, 8]]]`)
	if exit := c.main([]string{"run", "-"}); exit != exitOK {
		t.Fatalf("exit = %d (stderr: %s)", exit, out.stderr.String())
	}
	if out.stdout.String() != "7\n" {
		t.Errorf("stdout = %q", out.stdout.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	c, _ := newTestCLI(t, "")
	if exit := c.main([]string{"run"}); exit != exitUsage {
		t.Errorf("missing file: exit = %d", exit)
	}
	if exit := c.main([]string{"run", "/nonexistent/program.json"}); exit != exitUsage {
		t.Errorf("unreadable file: exit = %d", exit)
	}
	if exit := c.main([]string{"run", "x.json", "--max-steps", "zero"}); exit != exitUsage {
		t.Errorf("bad flag: exit = %d", exit)
	}
	if exit := c.main([]string{"frobnicate"}); exit != exitUsage {
		t.Errorf("unknown command: exit = %d", exit)
	}
	if exit := c.main(nil); exit != exitUsage {
		t.Errorf("no command: exit = %d", exit)
	}
}

func TestRunWritesTrace(t *testing.T) {
	c, out := newTestCLI(t, "")
	tracePath := filepath.Join(t.TempDir(), "trace.jsonl")
	program := writeProgram(t, `[["lambda", ["x"], ["cons", "x", []]], 1]`)
	if exit := c.main([]string{"run", program, "--trace", tracePath}); exit != exitOK {
		t.Fatalf("exit = %d (stderr: %s)", exit, out.stderr.String())
	}

	f, err := os.Open(tracePath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	summary := computeTraceSummary(f)
	if summary.Calls != 1 || summary.MaxDepth != 1 || summary.Errors != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.RunID == "" || summary.StartTime == "" || summary.EndTime == "" {
		t.Errorf("summary missing run metadata: %+v", summary)
	}
}

func TestTraceCommand(t *testing.T) {
	trace := strings.Join([]string{
		`{"ts":"2024-01-01T00:00:00Z","runId":"r1","event":"run_start","depth":0}`,
		`{"ts":"2024-01-01T00:00:00.001Z","runId":"r1","event":"call_start","depth":1}`,
		`{"ts":"2024-01-01T00:00:00.002Z","runId":"r1","event":"call_start","depth":2}`,
		`not json`,
		`{"ts":"2024-01-01T00:00:00.003Z","runId":"r1","event":"budget_exceeded","depth":2}`,
		`{"ts":"2024-01-01T00:00:00.004Z","runId":"r1","event":"form_error","depth":0}`,
		`{"ts":"2024-01-01T00:00:00.010Z","runId":"r1","event":"run_end","depth":0}`,
	}, "\n")
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	if err := os.WriteFile(path, []byte(trace), 0o644); err != nil {
		t.Fatal(err)
	}

	c, out := newTestCLI(t, "")
	if exit := c.main([]string{"trace", path}); exit != exitOK {
		t.Fatalf("exit = %d", exit)
	}
	var got TraceSummary
	if err := json.Unmarshal(out.stdout.Bytes(), &got); err != nil {
		t.Fatalf("invalid summary JSON: %v", err)
	}
	want := TraceSummary{
		RunID: "r1", TotalEvents: 6, Calls: 2, MaxDepth: 2, Errors: 1, BudgetExceeded: 1,
		StartTime: "2024-01-01T00:00:00Z", EndTime: "2024-01-01T00:00:00.010Z", DurationMs: 10,
	}
	if got != want {
		t.Errorf("summary = %+v, want %+v", got, want)
	}

	c, out = newTestCLI(t, "")
	if exit := c.main([]string{"trace", path, "--text"}); exit != exitOK {
		t.Fatalf("exit = %d", exit)
	}
	if !strings.Contains(out.stdout.String(), "Calls: 2 (max depth 2)") {
		t.Errorf("unexpected text summary: %s", out.stdout.String())
	}
}

func TestCheckCommand(t *testing.T) {
	c, out := newTestCLI(t, "")
	if exit := c.main([]string{"check", writeProgram(t, `["cons", 1, 2]`)}); exit != exitOK {
		t.Fatalf("exit = %d (stderr: %s)", exit, out.stderr.String())
	}
	if out.stdout.String() != "[]\n" {
		t.Errorf("stdout = %q", out.stdout.String())
	}

	c, out = newTestCLI(t, "")
	if exit := c.main([]string{"check", writeProgram(t, `["lambda", "x", "x"]`)}); exit != exitCheck {
		t.Fatalf("exit = %d", exit)
	}
	d := firstDiag(t, out.stderr.String())
	if d["code"] != "E_LAMBDA" || d["path"] != "$[1]" {
		t.Errorf("unexpected diagnostic: %v", d)
	}

	c, out = newTestCLI(t, "")
	c.main([]string{"check", writeProgram(t, `["car"]`), "--pretty"})
	if !strings.HasPrefix(out.stderr.String(), "error[E_ARITY]") {
		t.Errorf("pretty stderr = %q", out.stderr.String())
	}
}

func TestFmtCommand(t *testing.T) {
	c, out := newTestCLI(t, "")
	if exit := c.main([]string{"fmt", writeProgram(t, `[["lambda", ["x"], "x"], 1]`)}); exit != exitOK {
		t.Fatalf("exit = %d", exit)
	}
	if out.stdout.String() != "((lambda (x) x) 1)\n" {
		t.Errorf("stdout = %q", out.stdout.String())
	}
}

func TestHelpCommand(t *testing.T) {
	c, out := newTestCLI(t, "")
	if exit := c.main([]string{"help"}); exit != exitOK || !strings.Contains(out.stdout.String(), "Topics:") {
		t.Errorf("help: exit %d, stdout %q", exit, out.stdout.String())
	}
	c, out = newTestCLI(t, "")
	if exit := c.main([]string{"help", "prim"}); exit != exitOK || !strings.Contains(out.stdout.String(), "functionp") {
		t.Errorf("help prim: exit %d, stdout %q", exit, out.stdout.String())
	}
	c, _ = newTestCLI(t, "")
	if exit := c.main([]string{"help", "nope"}); exit != exitUsage {
		t.Errorf("help nope: exit %d", exit)
	}
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".pairlisp.json"), []byte(`{"maxSteps": 3}`), 0o644); err != nil {
		t.Fatal(err)
	}
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	c, out := newTestCLI(t, "")
	if exit := c.main([]string{"config"}); exit != exitOK {
		t.Fatalf("exit = %d", exit)
	}
	var got map[string]any
	if err := json.Unmarshal(out.stdout.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["maxSteps"] != 3.0 {
		t.Errorf("config = %v", got)
	}

	// The config file limit applies to run.
	c, _ = newTestCLI(t, "")
	program := writeProgram(t, `["cons", 1, ["cons", 2, 3]]`)
	if exit := c.main([]string{"run", program}); exit != exitBudget {
		t.Errorf("exit = %d, want %d", exit, exitBudget)
	}
	c, _ = newTestCLI(t, "")
	if exit := c.main([]string{"run", program, "--max-steps", "100"}); exit != exitOK {
		t.Errorf("flag override: exit = %d", exit)
	}
}

func TestReplEval(t *testing.T) {
	c, out := newTestCLI(t, "")
	rt := runtime.New()

	if got, quit := c.replEval(rt, `["cons", 1, []]`); got != "[1]" || quit {
		t.Errorf("eval = %q, %v", got, quit)
	}
	if got, _ := c.replEval(rt, `"nope"`); got != "" {
		t.Errorf("error eval returned %q", got)
	}
	if !strings.Contains(out.stderr.String(), "error[E_UNBOUND]") {
		t.Errorf("stderr = %q", out.stderr.String())
	}
	if got, _ := c.replEval(rt, ":help forms"); !strings.Contains(got, "lambda") {
		t.Errorf(":help forms = %q", got)
	}
	if _, quit := c.replEval(rt, ":quit"); !quit {
		t.Error(":quit did not quit")
	}
}

func TestIncomplete(t *testing.T) {
	tests := map[string]bool{
		`["cons", 1`:       true,
		`["cons", 1, 2]`:   false,
		`["a]`:             true,
		`["a]"]`:           false,
		`["a\"]"`:          true,
		`[[["quote", []]]`: true,
		`42`:               false,
	}
	for input, want := range tests {
		if got := incomplete(input); got != want {
			t.Errorf("incomplete(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestComplete(t *testing.T) {
	head, completions, tail := complete(`["con`, 5)
	if head != `["` || tail != "" {
		t.Errorf("head = %q, tail = %q", head, tail)
	}
	if !reflect.DeepEqual(completions, []string{"cond", "cons"}) {
		t.Errorf("completions = %v", completions)
	}
}

func TestCompleteNonASCII(t *testing.T) {
	line := `["λ", "ca`
	pos := len([]rune(line))
	head, completions, tail := complete(line, pos)
	if head != `["λ", "` || tail != "" {
		t.Errorf("head = %q, tail = %q", head, tail)
	}
	if !reflect.DeepEqual(completions, []string{"car"}) {
		t.Errorf("completions = %v", completions)
	}

	head, completions, tail = complete(`["é"] ["co`, 3)
	if head != `["` || len(completions) != 0 || tail != `"] ["co` {
		t.Errorf("mid-line: head = %q, completions = %v, tail = %q", head, completions, tail)
	}
}
