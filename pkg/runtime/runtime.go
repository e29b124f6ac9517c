// Package runtime provides the top-level pairlisp entry point.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/thomasrohde/pairlisp/pkg/diagnostics"
	"github.com/thomasrohde/pairlisp/pkg/evaluator"
	"github.com/thomasrohde/pairlisp/pkg/formatter"
	"github.com/thomasrohde/pairlisp/pkg/printer"
	"github.com/thomasrohde/pairlisp/pkg/reader"
	"github.com/thomasrohde/pairlisp/pkg/validator"
)

// Runtime wires the reader, evaluator and printer together.
type Runtime struct {
	env    *evaluator.Env
	budget evaluator.Budget
	runID  string
	trace  func(event evaluator.TraceEvent)
}

// Option is a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithBudget sets the evaluation limits.
func WithBudget(b evaluator.Budget) Option {
	return func(rt *Runtime) {
		rt.budget = b
	}
}

// WithEnv sets the top-level environment programs run under.
// The runtime never modifies it.
func WithEnv(env *evaluator.Env) Option {
	return func(rt *Runtime) {
		rt.env = env
	}
}

// WithRunID sets the run ID for trace events.
func WithRunID(id string) Option {
	return func(rt *Runtime) {
		rt.runID = id
	}
}

// WithTrace sets the trace callback.
func WithTrace(fn func(event evaluator.TraceEvent)) Option {
	return func(rt *Runtime) {
		rt.trace = fn
	}
}

// New creates a new Runtime with the given options.
// By default programs run under an empty environment with a fresh run ID.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		runID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// RunID returns the ID attached to this runtime's trace events.
func (rt *Runtime) RunID() string {
	return rt.runID
}

// Run reads expr, evaluates it and prints the result back to a host value.
func (rt *Runtime) Run(ctx context.Context, expr any) (any, error) {
	v, err := read(expr)
	if err != nil {
		return nil, err
	}
	res, err := rt.Execute(ctx, v)
	if err != nil {
		return nil, err
	}
	return printer.Print(res.Value), nil
}

// RunJSON evaluates a program encoded as JSON nested arrays and returns the
// JSON encoding of the result.
func (rt *Runtime) RunJSON(ctx context.Context, data []byte) ([]byte, error) {
	v, err := readJSON(data)
	if err != nil {
		return nil, err
	}
	res, err := rt.Execute(ctx, v)
	if err != nil {
		return nil, err
	}
	return printer.ToJSON(res.Value)
}

// ReadJSON reads a JSON-encoded program. Failures are *DiagnosticError.
func (rt *Runtime) ReadJSON(data []byte) (evaluator.Value, error) {
	return readJSON(data)
}

// Execute evaluates an already-read program and reports resource usage.
func (rt *Runtime) Execute(ctx context.Context, expr evaluator.Value) (*evaluator.ExecResult, error) {
	return evaluator.Execute(ctx, expr, evaluator.ExecOptions{
		Env:    rt.env,
		Budget: rt.budget,
		Trace:  rt.trace,
		RunID:  rt.runID,
	})
}

// Check reads and validates a program without executing it.
func (rt *Runtime) Check(expr any) []diagnostics.Diagnostic {
	v, err := read(expr)
	if err != nil {
		return Diagnostics(err)
	}
	return validator.Validate(v, rt.env.Names()...)
}

// CheckJSON is Check for a JSON-encoded program.
func (rt *Runtime) CheckJSON(data []byte) []diagnostics.Diagnostic {
	v, err := readJSON(data)
	if err != nil {
		return Diagnostics(err)
	}
	return validator.Validate(v, rt.env.Names()...)
}

// Format reads a JSON-encoded program and formats it as Lisp text.
func (rt *Runtime) Format(data []byte) (string, error) {
	v, err := readJSON(data)
	if err != nil {
		return "", err
	}
	return formatter.Format(v), nil
}

// Run evaluates expr under an empty environment with default limits.
func Run(expr any) (any, error) {
	return New().Run(context.Background(), expr)
}

func read(expr any) (evaluator.Value, error) {
	v, err := reader.Read(expr)
	if err != nil {
		return nil, wrapRead(err)
	}
	return v, nil
}

func readJSON(data []byte) (evaluator.Value, error) {
	v, err := reader.ReadJSON(data)
	if err != nil {
		return nil, wrapRead(err)
	}
	return v, nil
}

func wrapRead(err error) error {
	var readErr *reader.ReadError
	if errors.As(err, &readErr) {
		return &DiagnosticError{Diagnostics: []diagnostics.Diagnostic{readErr.Diagnostic()}}
	}
	return &DiagnosticError{Diagnostics: []diagnostics.Diagnostic{
		diagnostics.MakeDiag(diagnostics.ERead, err.Error(), "", ""),
	}}
}

// Diagnostics converts any error returned by the runtime into diagnostics.
func Diagnostics(err error) []diagnostics.Diagnostic {
	if err == nil {
		return nil
	}
	var diagErr *DiagnosticError
	if errors.As(err, &diagErr) {
		return diagErr.Diagnostics
	}
	var rtErr *evaluator.RuntimeError
	if errors.As(err, &rtErr) {
		return []diagnostics.Diagnostic{rtErr.Diagnostic()}
	}
	return []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.EEval, err.Error(), "", "")}
}

// DiagnosticError wraps read diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []diagnostics.Diagnostic
}

func (e *DiagnosticError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return strings.Join(msgs, "; ")
}
