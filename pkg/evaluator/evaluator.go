package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/thomasrohde/pairlisp/pkg/diagnostics"
)

// TraceEventType identifies the type of a trace event.
type TraceEventType string

const (
	TraceRunStart       TraceEventType = "run_start"
	TraceRunEnd         TraceEventType = "run_end"
	TraceCallStart      TraceEventType = "call_start"
	TraceCallEnd        TraceEventType = "call_end"
	TraceFormError      TraceEventType = "form_error"
	TraceBudgetExceeded TraceEventType = "budget_exceeded"
)

// TraceEvent represents a single trace event emitted during evaluation.
type TraceEvent struct {
	Timestamp string         `json:"ts"`
	RunID     string         `json:"runId"`
	Event     TraceEventType `json:"event"`
	Depth     int64          `json:"depth"`
	Form      string         `json:"form,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// ExecOptions configures an evaluation.
type ExecOptions struct {
	Env    *Env // top-level environment; empty when nil
	Budget Budget
	Trace  func(event TraceEvent)
	RunID  string
}

// ExecResult holds the result of an evaluation and its resource usage.
type ExecResult struct {
	Value    Value
	Steps    int64
	Calls    int64
	MaxDepth int64
}

// RuntimeError is a failed evaluation. Code is one of the diagnostics E_* codes.
type RuntimeError struct {
	Code    string
	Message string
	Form    Value
}

func (e *RuntimeError) Error() string {
	return e.Message
}

// Kind returns the error kind name for the code ("UnboundSymbol", ...).
func (e *RuntimeError) Kind() string {
	return diagnostics.Kinds[e.Code]
}

// Diagnostic converts the error for display.
func (e *RuntimeError) Diagnostic() diagnostics.Diagnostic {
	d := diagnostics.MakeDiag(e.Code, e.Message, "", "")
	if e.Form != nil {
		d = d.WithForm(abbreviate(e.Form.String()))
	}
	return d
}

// ErrorCode returns the diagnostics code carried by err, or "" if err is not a RuntimeError.
func ErrorCode(err error) string {
	var rtErr *RuntimeError
	if errors.As(err, &rtErr) {
		return rtErr.Code
	}
	return ""
}

type evaluator struct {
	ctx       context.Context
	opts      ExecOptions
	budget    Budget
	tracker   BudgetTracker
	startTime time.Time
}

func newEvaluator(ctx context.Context, opts ExecOptions) *evaluator {
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	return &evaluator{
		ctx:       ctx,
		opts:      opts,
		budget:    opts.Budget,
		startTime: now,
		tracker:   BudgetTracker{StartMs: now.UnixMilli()},
	}
}

func (ev *evaluator) emit(event TraceEventType, form Value) {
	ev.emitWithData(event, form, nil)
}

func (ev *evaluator) emitWithData(event TraceEventType, form Value, data map[string]any) {
	if ev.opts.Trace == nil {
		return
	}
	te := TraceEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RunID:     ev.opts.RunID,
		Event:     event,
		Depth:     ev.tracker.Depth,
		Data:      data,
	}
	if form != nil {
		te.Form = abbreviate(form.String())
	}
	ev.opts.Trace(te)
}

func (ev *evaluator) fail(code string, form Value, format string, args ...any) error {
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Form:    form,
	}
}

func (ev *evaluator) result(val Value) *ExecResult {
	return &ExecResult{
		Value:    val,
		Steps:    ev.tracker.Steps,
		Calls:    ev.tracker.Calls,
		MaxDepth: ev.tracker.MaxDepth,
	}
}

// Execute evaluates expr under opts.Env (or an empty environment) and
// returns the value together with resource usage.
func Execute(ctx context.Context, expr Value, opts ExecOptions) (*ExecResult, error) {
	ev := newEvaluator(ctx, opts)

	if ev.budget.TimeMs != nil {
		var cancel context.CancelFunc
		ev.ctx, cancel = context.WithTimeout(ev.ctx, time.Duration(*ev.budget.TimeMs)*time.Millisecond)
		defer cancel()
	}

	env := opts.Env
	if env == nil {
		env = NewEnv()
	}

	ev.emit(TraceRunStart, expr)
	val, err := ev.eval(expr, env)
	if err != nil {
		ev.emitWithData(TraceFormError, errorForm(err), map[string]any{
			"code":    ErrorCode(err),
			"message": err.Error(),
		})
		ev.emit(TraceRunEnd, nil)
		return ev.result(nil), err
	}
	ev.emitWithData(TraceRunEnd, nil, map[string]any{"steps": ev.tracker.Steps, "calls": ev.tracker.Calls})
	return ev.result(val), nil
}

// Evaluate evaluates expr under env with default options.
func Evaluate(expr Value, env *Env) (Value, error) {
	res, err := Execute(context.Background(), expr, ExecOptions{Env: env})
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// Apply invokes fn with already-evaluated arguments.
func Apply(ctx context.Context, fn Value, args []Value, opts ExecOptions) (Value, error) {
	ev := newEvaluator(ctx, opts)
	closure, ok := fn.(*Closure)
	if !ok {
		return nil, ev.fail(diagnostics.ECallTarget, fn, "cannot call non-function value %s", fn)
	}
	return ev.invoke(closure, args, closure)
}

func errorForm(err error) Value {
	var rtErr *RuntimeError
	if errors.As(err, &rtErr) {
		return rtErr.Form
	}
	return nil
}

// formKind is the closed set of expression shapes the evaluator dispatches on.
type formKind int

const (
	formAtom formKind = iota
	formPrimitive
	formSpecial
	formApplication
	formInvalid
)

type form struct {
	kind      formKind
	primitive primitiveKind
	special   specialKind
}

// classify resolves the dispatch shape of expr once, by table lookup on the head.
func classify(expr Value) form {
	cell, ok := expr.(*Pair)
	if !ok {
		return form{kind: formAtom}
	}
	switch head := cell.head.(type) {
	case Symbol:
		if p, ok := primitives[head.Name]; ok {
			return form{kind: formPrimitive, primitive: p}
		}
		if s, ok := specialForms[head.Name]; ok {
			return form{kind: formSpecial, special: s}
		}
		return form{kind: formApplication}
	case *Pair, *Closure:
		return form{kind: formApplication}
	}
	return form{kind: formInvalid}
}

func (ev *evaluator) eval(expr Value, env *Env) (Value, error) {
	if err := ev.step(expr); err != nil {
		return nil, err
	}

	f := classify(expr)
	if f.kind == formAtom {
		return ev.evalAtom(expr, env)
	}

	cell := expr.(*Pair)
	operands, ok := Slice(cell.tail)
	if !ok {
		return nil, ev.fail(diagnostics.EEval, expr, "cannot evaluate: improper operand list")
	}

	switch f.kind {
	case formPrimitive:
		return ev.evalPrimitive(f.primitive, cell, operands, env)
	case formSpecial:
		return ev.evalSpecial(f.special, cell, operands, env)
	case formApplication:
		return ev.evalApplication(cell, operands, env)
	default:
		return nil, ev.fail(diagnostics.EEval, expr, "cannot evaluate: %s is not callable", cell.head)
	}
}

func (ev *evaluator) evalAtom(expr Value, env *Env) (Value, error) {
	switch a := expr.(type) {
	case nil:
		return Nil{}, nil
	case Symbol:
		if val, ok := env.Get(a.Name); ok {
			return val, nil
		}
		return nil, ev.fail(diagnostics.EUnbound, expr, "unbound symbol '%s'", a.Name)
	case Nil, Bool, Number, *Closure:
		return expr, nil
	}
	return nil, ev.fail(diagnostics.EEval, expr, "cannot evaluate")
}

func (ev *evaluator) evalOperands(operands []Value, env *Env) ([]Value, error) {
	args := make([]Value, len(operands))
	for i, op := range operands {
		val, err := ev.eval(op, env)
		if err != nil {
			return nil, err
		}
		args[i] = val
	}
	return args, nil
}

func (ev *evaluator) evalPrimitive(p primitiveKind, cell *Pair, operands []Value, env *Env) (Value, error) {
	if len(operands) != p.arity() {
		return nil, ev.fail(diagnostics.EArity, cell,
			"%s expects %d argument%s, got %d", p, p.arity(), plural(p.arity()), len(operands))
	}
	args, err := ev.evalOperands(operands, env)
	if err != nil {
		return nil, err
	}
	return ev.applyPrimitive(p, cell, args)
}

func (ev *evaluator) evalApplication(cell *Pair, operands []Value, env *Env) (Value, error) {
	target, err := ev.eval(cell.head, env)
	if err != nil {
		return nil, err
	}

	closure, ok := target.(*Closure)
	if !ok {
		return nil, ev.fail(diagnostics.ECallTarget, cell, "cannot call non-function value %s", target)
	}

	args, err := ev.evalOperands(operands, env)
	if err != nil {
		return nil, err
	}
	return ev.invoke(closure, args, cell)
}

// invoke binds args to the closure's parameters in a fresh copy of its
// captured environment and evaluates the body there.
func (ev *evaluator) invoke(c *Closure, args []Value, call Value) (Value, error) {
	params := c.Params
	if params == nil {
		params = Nil{}
	}
	if msg := CheckParams(params); msg != "" {
		return nil, ev.fail(diagnostics.ELambda, call, "%s", msg)
	}
	var body []Value
	if c.Body != nil {
		var ok bool
		if body, ok = Slice(c.Body); !ok {
			return nil, ev.fail(diagnostics.ELambda, call, "lambda body must be a proper list")
		}
	}

	if err := ev.enter(call); err != nil {
		return nil, err
	}
	defer ev.leave()

	if ev.opts.Trace != nil {
		ev.emitWithData(TraceCallStart, call, map[string]any{"params": params.String(), "args": len(args)})
	}

	frame := c.env.Copy()
	i := 0
	for {
		p, ok := params.(*Pair)
		if !ok {
			break
		}
		if i >= len(args) {
			return nil, ev.arityMismatch(c, args, call)
		}
		frame.Set(p.head.(Symbol).Name, args[i])
		i++
		params = p.tail
	}
	if i != len(args) {
		return nil, ev.arityMismatch(c, args, call)
	}

	val, err := ev.progn(body, frame)
	if err != nil {
		return nil, err
	}
	ev.emit(TraceCallEnd, call)
	return val, nil
}

func (ev *evaluator) arityMismatch(c *Closure, args []Value, call Value) error {
	want := max(Length(c.Params), 0)
	return ev.fail(diagnostics.EArity, call,
		"invalid number of arguments: %s expects %d, got %d", c, want, len(args))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

const maxFormText = 200

// abbreviate shortens s to at most maxFormText runes.
func abbreviate(s string) string {
	return Abbreviate(s, maxFormText)
}

// Abbreviate shortens s to at most limit runes, ending in "..." when cut.
func Abbreviate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}
