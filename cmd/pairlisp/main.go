// Command pairlisp is the pairlisp CLI entry point.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/thomasrohde/pairlisp/pkg/config"
	"github.com/thomasrohde/pairlisp/pkg/diagnostics"
	"github.com/thomasrohde/pairlisp/pkg/evaluator"
	"github.com/thomasrohde/pairlisp/pkg/formatter"
	"github.com/thomasrohde/pairlisp/pkg/help"
	"github.com/thomasrohde/pairlisp/pkg/printer"
	"github.com/thomasrohde/pairlisp/pkg/runtime"
)

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 1
	exitCheck   = 2
	exitRuntime = 4
	exitBudget  = 6
)

// cli carries the process streams so commands can be driven from tests.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	c := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(c.main(os.Args[1:]))
}

func (c *cli) main(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(c.stderr, "usage: pairlisp <command> [options]")
		fmt.Fprintln(c.stderr, "commands: run, check, fmt, repl, trace, help, config")
		return exitUsage
	}

	cmd := args[0]
	switch cmd {
	case "run":
		return c.cmdRun(args[1:])
	case "check":
		return c.cmdCheck(args[1:])
	case "fmt":
		return c.cmdFmt(args[1:])
	case "repl":
		return c.cmdRepl(args[1:])
	case "trace":
		return c.cmdTrace(args[1:])
	case "help", "--help", "-h":
		return c.cmdHelp(args[1:])
	case "config":
		return c.cmdConfig(args[1:])
	default:
		fmt.Fprintf(c.stderr, "Unknown command: %s\n", cmd)
		return exitUsage
	}
}

// limitFlags collects --max-steps, --max-depth and --time-ms.
type limitFlags struct {
	cfg config.Config
	err error
}

// parse consumes a limit flag at args[*i]. It reports whether the flag was one of them.
func (l *limitFlags) parse(args []string, i *int) bool {
	var target **int64
	switch args[*i] {
	case "--max-steps":
		target = &l.cfg.MaxSteps
	case "--max-depth":
		target = &l.cfg.MaxDepth
	case "--time-ms":
		target = &l.cfg.TimeMs
	default:
		return false
	}
	name := args[*i]
	if *i+1 >= len(args) {
		l.err = fmt.Errorf("%s requires a value", name)
		return true
	}
	*i++
	n, err := strconv.ParseInt(args[*i], 10, 64)
	if err != nil || n <= 0 {
		l.err = fmt.Errorf("%s expects a positive integer, got %q", name, args[*i])
		return true
	}
	*target = evaluator.Int64(n)
	return true
}

// budget merges the config file with the flags. Flags win.
func (c *cli) budget(l *limitFlags) (evaluator.Budget, bool) {
	if l.err != nil {
		fmt.Fprintf(c.stderr, "error: %s\n", l.err)
		return evaluator.Budget{}, false
	}
	cwd, _ := os.Getwd()
	fileCfg, path, err := config.Load(cwd)
	if err != nil {
		c.printDiag(diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("invalid config file: %s", err), "", path), false)
		return evaluator.Budget{}, false
	}
	return fileCfg.Override(l.cfg).Budget(), true
}

func (c *cli) cmdRun(args []string) int {
	var file string
	pretty := false
	tracePath := ""
	limits := &limitFlags{}

	for i := 0; i < len(args); i++ {
		if limits.parse(args, &i) {
			continue
		}
		switch args[i] {
		case "--pretty":
			pretty = true
		case "--trace":
			if i+1 < len(args) {
				i++
				tracePath = args[i]
			}
		default:
			if args[i] == "-" || !strings.HasPrefix(args[i], "-") {
				file = args[i]
			}
		}
	}

	if file == "" {
		fmt.Fprintln(c.stderr, "usage: pairlisp run <file|-> [--pretty] [--trace <path>] [--max-steps N] [--max-depth N] [--time-ms N]")
		return exitUsage
	}

	budget, ok := c.budget(limits)
	if !ok {
		return exitUsage
	}

	source, exitCode := c.readSource(file, pretty)
	if exitCode != exitOK {
		return exitCode
	}

	opts := []runtime.Option{runtime.WithBudget(budget)}
	if tracePath != "" {
		f, err := os.Create(tracePath)
		if err != nil {
			c.printDiag(diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("cannot write trace file: %s", tracePath), "", ""), pretty)
			return exitUsage
		}
		defer f.Close()
		w := bufio.NewWriter(f)
		defer w.Flush()
		enc := json.NewEncoder(w)
		opts = append(opts, runtime.WithTrace(func(event evaluator.TraceEvent) {
			_ = enc.Encode(event)
		}))
	}
	rt := runtime.New(opts...)

	program, err := rt.ReadJSON(source)
	if err != nil {
		c.printDiags(runtime.Diagnostics(err), pretty)
		return exitCheck
	}

	result, err := rt.Execute(context.Background(), program)
	if err != nil {
		diags := runtime.Diagnostics(err)
		c.printDiags(diags, pretty)
		return exitCodeForDiag(diags[0].Code)
	}

	if pretty {
		fmt.Fprint(c.stdout, formatter.Format(result.Value))
		return exitOK
	}
	out, err := printer.ToJSON(result.Value)
	if err != nil {
		fmt.Fprintf(c.stderr, "error serializing result: %s\n", err)
		return exitRuntime
	}
	fmt.Fprintln(c.stdout, string(out))
	return exitOK
}

func (c *cli) cmdCheck(args []string) int {
	var file string
	pretty := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--pretty":
			pretty = true
		default:
			if args[i] == "-" || !strings.HasPrefix(args[i], "-") {
				file = args[i]
			}
		}
	}

	if file == "" {
		fmt.Fprintln(c.stderr, "usage: pairlisp check <file|-> [--pretty]")
		return exitUsage
	}

	source, exitCode := c.readSource(file, pretty)
	if exitCode != exitOK {
		return exitCode
	}

	diags := runtime.New().CheckJSON(source)
	if len(diags) > 0 {
		c.printDiags(diags, pretty)
		return exitCheck
	}

	if pretty {
		fmt.Fprintln(c.stdout, "No errors found.")
	} else {
		fmt.Fprintln(c.stdout, "[]")
	}
	return exitOK
}

func (c *cli) cmdFmt(args []string) int {
	var file string
	for _, arg := range args {
		if arg == "-" || !strings.HasPrefix(arg, "-") {
			file = arg
		}
	}

	if file == "" {
		fmt.Fprintln(c.stderr, "usage: pairlisp fmt <file|->")
		return exitUsage
	}

	source, exitCode := c.readSource(file, false)
	if exitCode != exitOK {
		return exitCode
	}

	formatted, err := runtime.New().Format(source)
	if err != nil {
		c.printDiags(runtime.Diagnostics(err), false)
		return exitCheck
	}
	fmt.Fprint(c.stdout, formatted)
	return exitOK
}

func (c *cli) cmdTrace(args []string) int {
	var file string
	textOutput := false

	for _, arg := range args {
		switch arg {
		case "--json":
			textOutput = false
		case "--text":
			textOutput = true
		default:
			if !strings.HasPrefix(arg, "-") {
				file = arg
			}
		}
	}

	if file == "" {
		fmt.Fprintln(c.stderr, "usage: pairlisp trace <file.jsonl> [--json|--text]")
		return exitUsage
	}

	f, err := os.Open(file)
	if err != nil {
		c.printDiag(diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("cannot read file: %s", file), "", ""), false)
		return exitUsage
	}
	defer f.Close()

	summary := computeTraceSummary(f)

	if textOutput {
		printTraceSummaryText(c.stdout, summary)
	} else {
		b, _ := json.Marshal(summary)
		fmt.Fprintln(c.stdout, string(b))
	}
	return exitOK
}

func (c *cli) cmdHelp(args []string) int {
	topic := ""
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			topic = arg
		}
	}

	if topic == "" {
		fmt.Fprint(c.stdout, help.QUICKREF)
		return exitOK
	}

	_, content, err := help.MatchTopic(topic)
	if err != nil {
		fmt.Fprintf(c.stderr, "%s\nAvailable topics: %s\n", err, strings.Join(help.TopicList, ", "))
		return exitUsage
	}
	fmt.Fprint(c.stdout, content)
	return exitOK
}

func (c *cli) cmdConfig(args []string) int {
	cwd, _ := os.Getwd()
	cfg, path, err := config.Load(cwd)
	if err != nil {
		c.printDiag(diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("invalid config file: %s", err), "", path), false)
		return exitUsage
	}
	b, _ := json.MarshalIndent(cfg, "", "  ")
	fmt.Fprintln(c.stdout, string(b))
	return exitOK
}

func (c *cli) readSource(file string, pretty bool) ([]byte, int) {
	if file == "-" {
		data, err := io.ReadAll(c.stdin)
		if err != nil {
			fmt.Fprintf(c.stderr, "error reading stdin: %s\n", err)
			return nil, exitUsage
		}
		return data, exitOK
	}

	source, err := os.ReadFile(file)
	if err != nil {
		c.printDiag(diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("cannot read file: %s", file), "", ""), pretty)
		return nil, exitUsage
	}
	return source, exitOK
}

func (c *cli) printDiag(d diagnostics.Diagnostic, pretty bool) {
	c.printDiags([]diagnostics.Diagnostic{d}, pretty)
}

func (c *cli) printDiags(diags []diagnostics.Diagnostic, pretty bool) {
	fmt.Fprintln(c.stderr, diagnostics.FormatDiagnostics(diags, pretty))
}

func exitCodeForDiag(code string) int {
	switch code {
	case diagnostics.EBudget:
		return exitBudget
	case diagnostics.ERead:
		return exitCheck
	default:
		return exitRuntime
	}
}

// TraceSummary aggregates an NDJSON trace written by `pairlisp run --trace`.
type TraceSummary struct {
	RunID          string  `json:"runId"`
	TotalEvents    int     `json:"totalEvents"`
	Calls          int     `json:"calls"`
	MaxDepth       int64   `json:"maxDepth"`
	Errors         int     `json:"errors"`
	BudgetExceeded int     `json:"budgetExceeded"`
	StartTime      string  `json:"startTime,omitempty"`
	EndTime        string  `json:"endTime,omitempty"`
	DurationMs     float64 `json:"durationMs"`
}

type traceEvent struct {
	Event string         `json:"event"`
	RunID string         `json:"runId"`
	TS    string         `json:"ts"`
	Depth int64          `json:"depth"`
	Data  map[string]any `json:"data,omitempty"`
}

func computeTraceSummary(r io.Reader) *TraceSummary {
	summary := &TraceSummary{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event traceEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip invalid lines
		}

		summary.TotalEvents++
		if summary.RunID == "" {
			summary.RunID = event.RunID
		}
		if event.Depth > summary.MaxDepth {
			summary.MaxDepth = event.Depth
		}

		switch evaluator.TraceEventType(event.Event) {
		case evaluator.TraceRunStart:
			if summary.StartTime == "" {
				summary.StartTime = event.TS
			}
		case evaluator.TraceRunEnd:
			summary.EndTime = event.TS
		case evaluator.TraceCallStart:
			summary.Calls++
		case evaluator.TraceFormError:
			summary.Errors++
		case evaluator.TraceBudgetExceeded:
			summary.BudgetExceeded++
		}
	}

	if summary.StartTime != "" && summary.EndTime != "" {
		start, err1 := time.Parse(time.RFC3339Nano, summary.StartTime)
		end, err2 := time.Parse(time.RFC3339Nano, summary.EndTime)
		if err1 == nil && err2 == nil {
			summary.DurationMs = float64(end.Sub(start).Microseconds()) / 1000
		}
	}

	return summary
}

func printTraceSummaryText(w io.Writer, s *TraceSummary) {
	fmt.Fprintf(w, "Run: %s\n", s.RunID)
	fmt.Fprintf(w, "Events: %d\n", s.TotalEvents)
	fmt.Fprintf(w, "Calls: %d (max depth %d)\n", s.Calls, s.MaxDepth)
	fmt.Fprintf(w, "Errors: %d (%d budget)\n", s.Errors, s.BudgetExceeded)
	if s.DurationMs > 0 {
		fmt.Fprintf(w, "Duration: %.1fms\n", s.DurationMs)
	}
}
