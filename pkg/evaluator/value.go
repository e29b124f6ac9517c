// Package evaluator implements the pairlisp symbolic-expression evaluator.
package evaluator

import (
	"math"
	"strconv"
	"strings"
)

// Value is the interface for all pairlisp values.
// Use the sealed marker method to restrict implementations to this package.
type Value interface {
	sexpValue() // sealed marker
	String() string
}

// Nil is the empty marker that terminates a proper list.
type Nil struct{}

func (Nil) sexpValue() {}

// Bool represents a boolean atom.
type Bool struct {
	Value bool
}

func (Bool) sexpValue() {}

// Number represents a host-native numeric atom.
type Number struct {
	Value float64
}

func (Number) sexpValue() {}

// Symbol represents a named atom. Symbols are not self-evaluating.
type Symbol struct {
	Name string
}

func (Symbol) sexpValue() {}

// Pair is a cons cell. Pairs are immutable once constructed.
type Pair struct {
	head Value
	tail Value
}

func (*Pair) sexpValue() {}

// Head returns the first field of the pair.
func (p *Pair) Head() Value { return p.head }

// Tail returns the second field of the pair.
func (p *Pair) Tail() Value { return p.tail }

// Closure is a lambda value: parameters, body and a snapshot of the
// environment it was created in.
type Closure struct {
	Params Value // proper chain of Symbols, or Nil
	Body   Value // proper chain of body forms, evaluated as an implicit progn
	env    *Env
}

func (*Closure) sexpValue() {}

// Env returns a copy of the captured environment.
func (c *Closure) Env() *Env {
	return c.env.Copy()
}

// NewNil returns the empty marker.
func NewNil() Value {
	return Nil{}
}

// NewBool creates a boolean atom.
func NewBool(b bool) Value {
	return Bool{Value: b}
}

// NewNumber creates a numeric atom.
func NewNumber(n float64) Value {
	return Number{Value: n}
}

// NewSymbol creates a symbol atom.
func NewSymbol(name string) Value {
	return Symbol{Name: name}
}

// Cons creates a new pair. A nil Go value in either field is stored as Nil.
func Cons(head, tail Value) *Pair {
	if head == nil {
		head = Nil{}
	}
	if tail == nil {
		tail = Nil{}
	}
	return &Pair{head: head, tail: tail}
}

// List builds a proper list from vals.
func List(vals ...Value) Value {
	var out Value = Nil{}
	for i := len(vals) - 1; i >= 0; i-- {
		out = Cons(vals[i], out)
	}
	return out
}

// IsNil reports whether v is the empty marker.
func IsNil(v Value) bool {
	_, ok := v.(Nil)
	return ok || v == nil
}

// IsAtom reports whether v is anything other than a Pair.
func IsAtom(v Value) bool {
	_, ok := v.(*Pair)
	return !ok
}

// Eq is identity comparison: atoms compare by value, pairs and closures by reference.
func Eq(a, b Value) bool {
	if IsNil(a) && IsNil(b) {
		return true
	}
	return a == b
}

// Truthy returns the condition interpretation of a value.
// Nil and false are false; everything else, including 0, is true.
func Truthy(v Value) bool {
	switch val := v.(type) {
	case nil, Nil:
		return false
	case Bool:
		return val.Value
	default:
		return true
	}
}

// Slice flattens a proper list into a Go slice. ok is false for improper chains.
func Slice(v Value) (items []Value, ok bool) {
	for {
		switch cell := v.(type) {
		case Nil:
			return items, true
		case *Pair:
			items = append(items, cell.head)
			v = cell.tail
		default:
			return items, false
		}
	}
}

// Length returns the number of elements in a proper list, or -1.
func Length(v Value) int {
	items, ok := Slice(v)
	if !ok {
		return -1
	}
	return len(items)
}

func (Nil) String() string { return "()" }

func (b Bool) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

func (n Number) String() string { return FormatNumber(n.Value) }

func (s Symbol) String() string { return s.Name }

func (p *Pair) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	var cur Value = p
	first := true
	for {
		cell, ok := cur.(*Pair)
		if !ok {
			break
		}
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		sb.WriteString(cell.head.String())
		cur = cell.tail
	}
	if !IsNil(cur) {
		sb.WriteString(" . ")
		sb.WriteString(cur.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func (c *Closure) String() string {
	if c.Params == nil {
		return "#<lambda ()>"
	}
	return "#<lambda " + c.Params.String() + ">"
}

// MarshalJSON renders a closure as its display text.
func (c *Closure) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

// FormatNumber formats a float64 as an integer string if it's a whole number.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && !math.IsInf(n, 0) && !math.IsNaN(n) && math.Abs(n) < 1e18 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
