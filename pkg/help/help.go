// Package help holds the built-in pairlisp reference shown by `pairlisp help`.
package help

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thomasrohde/pairlisp/pkg/diagnostics"
	"github.com/thomasrohde/pairlisp/pkg/evaluator"
)

// Version is the language version reported in QUICKREF.
const Version = "v0.3"

// QUICKREF is printed by `pairlisp help` with no topic.
var QUICKREF = `pairlisp ` + Version + ` - a minimal Lisp over pairs

Programs are JSON nested arrays. Strings are symbols, arrays are lists,
null and [] are nil.

  ["cons", 1, ["quote", [2, 3]]]          => [1, 2, 3]
  [["lambda", ["x"], ["car", "x"]], ["quote", ["a", "b"]]]   => "a"

Commands:
  pairlisp run <file|->      evaluate a program and print the result
  pairlisp check <file|->    validate without evaluating
  pairlisp fmt <file|->      print the program as Lisp text
  pairlisp repl              interactive prompt
  pairlisp trace <file>      summarize an NDJSON trace
  pairlisp config            show the effective limits file
  pairlisp help <topic>      show a topic

Topics: ` + strings.Join(TopicList, ", ") + `
`

// TopicList is the display order of Topics.
var TopicList = []string{"forms", "primitives", "errors", "budget", "examples", "cli"}

// Topics maps topic names to their text.
var Topics = map[string]string{
	"forms": `Special forms

  (quote x)                 returns x unevaluated; exactly one operand
  (progn f1 ... fn)         evaluates in order, returns the last value or nil
  (cond (t1 r1) ... )       first clause whose test is truthy yields its result;
                            no match yields nil; clauses must be (test result)
  (lambda (p1 ... pn) body ...)
                            closure capturing a snapshot of the current
                            environment; parameters are distinct symbols

Only nil and false are falsy. Special form and primitive names are matched
by position, before any binding is consulted.
`,
	"primitives": primitivesTopic(),
	"errors":     errorsTopic(),
	"budget": `Budget

Every evaluated form counts one step; every closure call adds one level of
depth. Exceeding a limit fails the run with E_BUDGET, the result is never
truncated.

  --max-steps N     step limit (default: unlimited)
  --max-depth N     closure nesting limit (default: ` + fmt.Sprint(evaluator.DefaultMaxDepth) + `)
  --time-ms N       wall clock limit

The same fields (maxSteps, maxDepth, timeMs) can be set in .pairlisp.json
in the working directory or in ~/.pairlisp/config.json. Flags win.
`,
	"examples": `Examples

  Identity:
    [["lambda", ["x"], "x"], 5]                        => 5

  Conditional:
    ["cond", [["atom", ["quote", []]], ["quote", "empty"]], [true, 0]]
                                                       => "empty"

  Self application (reverse a list):
    [["lambda", ["rev"], ["rev", "rev", ["quote", [1, 2, 3]], ["quote", []]]],
     ["lambda", ["self", "l", "acc"],
       ["cond", [["eq", "l", ["quote", []]], "acc"],
                [true, ["self", "self", ["cdr", "l"], ["cons", ["car", "l"], "acc"]]]]]]
                                                       => [3, 2, 1]

  Dotted pair:
    ["cons", 1, 2]                                     => [1, ".", 2]
`,
	"cli": `CLI

  run <file|->     --pretty --trace <file> --max-steps N --max-depth N --time-ms N
  check <file|->   --pretty
  fmt <file|->
  repl             --max-steps N --max-depth N --time-ms N
  trace <file>     --json (default) | --text
  config

Exit codes: 0 ok, 1 usage or I/O, 2 read or check diagnostics,
4 runtime error, 6 budget exceeded.
`,
}

func primitivesTopic() string {
	docs := map[string]string{
		"atom":      "true unless the argument is a pair",
		"eq":        "identity: atoms by value, pairs and closures by reference",
		"car":       "head of a pair; nil for nil",
		"cdr":       "tail of a pair; nil for nil",
		"cons":      "new pair of the two arguments",
		"functionp": "true for closures",
	}
	var sb strings.Builder
	sb.WriteString("Primitives\n\n")
	for _, name := range evaluator.PrimitiveNames() {
		fmt.Fprintf(&sb, "  %-10s %d  %s\n", name, evaluator.PrimitiveArity(name), docs[name])
	}
	sb.WriteString("\nArguments are evaluated left to right. A wrong operand count is E_ARITY.\n")
	return sb.String()
}

func errorsTopic() string {
	codes := make([]string, 0, len(diagnostics.Kinds))
	for code := range diagnostics.Kinds {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	var sb strings.Builder
	sb.WriteString("Errors\n\n")
	for _, code := range codes {
		fmt.Fprintf(&sb, "  %-14s %s\n", code, diagnostics.Kinds[code])
	}
	sb.WriteString("\nDiagnostics are JSON by default; --pretty prints error[CODE]: message.\n")
	return sb.String()
}

// MatchTopic resolves an exact topic name or a unique prefix of one.
func MatchTopic(query string) (string, string, error) {
	if content, ok := Topics[query]; ok {
		return query, content, nil
	}
	var matches []string
	for _, name := range TopicList {
		if query != "" && strings.HasPrefix(name, query) {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], Topics[matches[0]], nil
	case 0:
		return "", "", fmt.Errorf("unknown help topic: %s", query)
	default:
		return "", "", fmt.Errorf("ambiguous help topic %q: %s", query, strings.Join(matches, ", "))
	}
}
