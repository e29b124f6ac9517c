// Package formatter renders pairlisp values as indented Lisp text.
package formatter

import (
	"strings"

	"github.com/thomasrohde/pairlisp/pkg/evaluator"
)

const indent = "  "

// LineWidth is the column limit a form must fit in to stay on one line.
const LineWidth = 72

// keepOnHeadLine lists forms whose first operand stays next to the keyword.
var keepOnHeadLine = map[string]bool{
	"lambda": true,
	"quote":  true,
}

// Format pretty-prints a value. Forms that fit in LineWidth stay on one line;
// longer forms put each operand on its own line, indented one level.
func Format(v evaluator.Value) string {
	return formatValue(v, 0) + "\n"
}

func formatValue(v evaluator.Value, depth int) string {
	flat := v.String()
	if len(flat)+depth*len(indent) <= LineWidth {
		return flat
	}
	if _, ok := v.(*evaluator.Pair); !ok {
		return flat
	}

	items, terminal := elements(v)
	pad := strings.Repeat(indent, depth+1)

	var sb strings.Builder
	sb.WriteByte('(')
	sb.WriteString(formatValue(items[0], depth))
	rest := items[1:]

	if sym, ok := items[0].(evaluator.Symbol); ok && keepOnHeadLine[sym.Name] && len(rest) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(formatValue(rest[0], depth+1))
		rest = rest[1:]
	}

	for _, item := range rest {
		sb.WriteByte('\n')
		sb.WriteString(pad)
		sb.WriteString(formatValue(item, depth+1))
	}
	if terminal != nil {
		sb.WriteByte('\n')
		sb.WriteString(pad)
		sb.WriteString(". ")
		sb.WriteString(formatValue(terminal, depth+1))
	}
	sb.WriteByte(')')
	return sb.String()
}

// elements returns the heads of a chain and its non-Nil terminal, if any.
func elements(v evaluator.Value) ([]evaluator.Value, evaluator.Value) {
	var items []evaluator.Value
	for {
		cell, ok := v.(*evaluator.Pair)
		if !ok {
			break
		}
		items = append(items, cell.Head())
		v = cell.Tail()
	}
	if evaluator.IsNil(v) {
		return items, nil
	}
	return items, v
}
