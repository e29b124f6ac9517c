package evaluator

import (
	"fmt"
	"time"

	"github.com/thomasrohde/pairlisp/pkg/diagnostics"
)

// DefaultMaxDepth bounds closure nesting when no explicit depth budget is set,
// so runaway recursion fails with E_BUDGET instead of exhausting the stack.
const DefaultMaxDepth int64 = 100000

// Budget holds the resource limits for an evaluation.
type Budget struct {
	TimeMs   *int64
	MaxSteps *int64
	MaxDepth *int64
}

// BudgetTracker tracks resource consumption during evaluation.
type BudgetTracker struct {
	Steps    int64
	Depth    int64
	MaxDepth int64
	Calls    int64
	StartMs  int64
}

// Int64 is a convenience for filling Budget fields.
func Int64(n int64) *int64 {
	return &n
}

func (ev *evaluator) maxDepth() int64 {
	if ev.budget.MaxDepth != nil {
		return *ev.budget.MaxDepth
	}
	return DefaultMaxDepth
}

// step is called once per evaluated node.
func (ev *evaluator) step(expr Value) error {
	ev.tracker.Steps++
	if ev.budget.MaxSteps != nil && ev.tracker.Steps > *ev.budget.MaxSteps {
		return ev.budgetExceeded(expr, fmt.Sprintf("step budget exceeded (max %d)", *ev.budget.MaxSteps))
	}
	if ev.budget.TimeMs != nil {
		if time.Since(ev.startTime).Milliseconds() >= *ev.budget.TimeMs {
			return ev.budgetExceeded(expr, fmt.Sprintf("time budget exceeded (%dms)", *ev.budget.TimeMs))
		}
	}
	if ev.tracker.Steps&0xff == 0 {
		if err := ev.ctx.Err(); err != nil {
			return ev.budgetExceeded(expr, fmt.Sprintf("evaluation cancelled: %s", err))
		}
	}
	return nil
}

// enter is called on every closure invocation; leave must follow it.
func (ev *evaluator) enter(expr Value) error {
	if limit := ev.maxDepth(); ev.tracker.Depth+1 > limit {
		return ev.budgetExceeded(expr, fmt.Sprintf("recursion depth exceeded (max %d)", limit))
	}
	ev.tracker.Depth++
	ev.tracker.Calls++
	if ev.tracker.Depth > ev.tracker.MaxDepth {
		ev.tracker.MaxDepth = ev.tracker.Depth
	}
	return nil
}

func (ev *evaluator) leave() {
	ev.tracker.Depth--
}

func (ev *evaluator) budgetExceeded(expr Value, msg string) error {
	ev.emitWithData(TraceBudgetExceeded, expr, map[string]any{"message": msg})
	return &RuntimeError{
		Code:    diagnostics.EBudget,
		Message: msg,
		Form:    expr,
	}
}
