package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/thomasrohde/pairlisp/pkg/evaluator"
	"github.com/thomasrohde/pairlisp/pkg/help"
	"github.com/thomasrohde/pairlisp/pkg/printer"
	"github.com/thomasrohde/pairlisp/pkg/runtime"
)

const (
	prompt         = "pairlisp> "
	continuePrompt = "      ... "
)

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pairlisp", "history")
}

func (c *cli) cmdRepl(args []string) int {
	limits := &limitFlags{}
	for i := 0; i < len(args); i++ {
		if !limits.parse(args, &i) {
			fmt.Fprintf(c.stderr, "usage: pairlisp repl [--max-steps N] [--max-depth N] [--time-ms N]\n")
			return exitUsage
		}
	}
	budget, ok := c.budget(limits)
	if !ok {
		return exitUsage
	}
	rt := runtime.New(runtime.WithBudget(budget))

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetWordCompleter(complete)

	hist := historyPath()
	if hist != "" {
		if f, err := os.Open(hist); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}

	fmt.Fprintf(c.stdout, "pairlisp %s. Enter JSON programs, :help for help, :quit to exit.\n", help.Version)

	var pending strings.Builder
	for {
		p := prompt
		if pending.Len() > 0 {
			p = continuePrompt
		}
		text, err := line.Prompt(p)
		if errors.Is(err, liner.ErrPromptAborted) {
			pending.Reset()
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(c.stdout)
			break
		}
		if err != nil {
			fmt.Fprintf(c.stderr, "error reading input: %s\n", err)
			return exitUsage
		}

		if pending.Len() > 0 {
			pending.WriteByte('\n')
		}
		pending.WriteString(text)
		input := pending.String()
		if incomplete(input) {
			continue
		}
		pending.Reset()

		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(strings.ReplaceAll(input, "\n", " "))

		out, quit := c.replEval(rt, input)
		if quit {
			break
		}
		if out != "" {
			fmt.Fprintln(c.stdout, out)
		}
	}

	if hist != "" {
		if err := os.MkdirAll(filepath.Dir(hist), 0o755); err == nil {
			if f, err := os.Create(hist); err == nil {
				_, _ = line.WriteHistory(f)
				f.Close()
			}
		}
	}
	return exitOK
}

// replEval evaluates one complete input and returns the text to show.
// Diagnostics are written to stderr.
func (c *cli) replEval(rt *runtime.Runtime, input string) (string, bool) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, ":") {
		cmd := strings.Fields(input)
		switch cmd[0] {
		case ":quit", ":q", ":exit":
			return "", true
		case ":help":
			if len(cmd) > 1 {
				_, content, err := help.MatchTopic(cmd[1])
				if err != nil {
					return err.Error(), false
				}
				return strings.TrimRight(content, "\n"), false
			}
			return strings.TrimRight(help.QUICKREF, "\n"), false
		default:
			return fmt.Sprintf("unknown command %s", cmd[0]), false
		}
	}

	program, err := rt.ReadJSON([]byte(input))
	if err != nil {
		c.printDiags(runtime.Diagnostics(err), true)
		return "", false
	}
	res, err := rt.Execute(context.Background(), program)
	if err != nil {
		c.printDiags(runtime.Diagnostics(err), true)
		return "", false
	}
	return printer.ToJSONString(res.Value), false
}

// incomplete reports whether input has unclosed brackets outside strings.
func incomplete(input string) bool {
	depth := 0
	inString := false
	escaped := false
	for _, r := range input {
		switch {
		case escaped:
			escaped = false
		case inString && r == '\\':
			escaped = true
		case r == '"':
			inString = !inString
		case inString:
		case r == '[':
			depth++
		case r == ']':
			depth--
		}
	}
	return depth > 0 || inString
}

// complete offers special form and primitive names as quoted JSON strings.
// pos is a rune index.
func complete(line string, pos int) (head string, completions []string, tail string) {
	runes := []rune(line)
	if pos > len(runes) {
		pos = len(runes)
	}
	start := pos
	for start > 0 && runes[start-1] != '"' {
		start--
	}
	head, word, tail := string(runes[:start]), string(runes[start:pos]), string(runes[pos:])
	names := append(evaluator.SpecialFormNames(), evaluator.PrimitiveNames()...)
	for _, name := range names {
		if strings.HasPrefix(name, word) {
			completions = append(completions, name)
		}
	}
	return head, completions, tail
}
