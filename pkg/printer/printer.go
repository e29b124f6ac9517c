// Package printer converts pairlisp values back into host nested sequences.
package printer

import (
	"encoding/json"
	"math"

	"github.com/thomasrohde/pairlisp/pkg/evaluator"
)

// Dot marks the improper terminal of a printed chain.
const Dot = "."

// Print converts v into nested []any. Nil prints as an empty sequence, atoms
// print as host natives, and a chain ending in a non-Nil atom prints as
// [elems..., ".", terminal].
func Print(v evaluator.Value) any {
	switch val := v.(type) {
	case nil, evaluator.Nil:
		return []any{}
	case evaluator.Bool:
		return val.Value
	case evaluator.Number:
		return val.Value
	case evaluator.Symbol:
		return val.Name
	case *evaluator.Closure:
		return val
	case *evaluator.Pair:
		out := []any{}
		var cur evaluator.Value = val
		for {
			cell, ok := cur.(*evaluator.Pair)
			if !ok {
				break
			}
			out = append(out, Print(cell.Head()))
			cur = cell.Tail()
		}
		if !evaluator.IsNil(cur) {
			out = append(out, Dot, Print(cur))
		}
		return out
	}
	return nil
}

// ToJSON marshals v to JSON. Whole numbers are written without a decimal point.
func ToJSON(v evaluator.Value) ([]byte, error) {
	return json.Marshal(jsonRaw(Print(v)))
}

// ToJSONString is a convenience that returns a string.
func ToJSONString(v evaluator.Value) string {
	b, err := ToJSON(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func jsonRaw(x any) any {
	switch val := x.(type) {
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) && !math.IsNaN(val) {
			// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
			if val >= math.MinInt64 && val < math.MaxInt64 {
				return int64(val)
			}
		}
		if math.IsInf(val, 0) || math.IsNaN(val) {
			return evaluator.FormatNumber(val)
		}
		return val
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = jsonRaw(item)
		}
		return items
	}
	return x
}
