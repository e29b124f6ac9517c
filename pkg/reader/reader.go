// Package reader converts host nested sequences into pairlisp values.
//
// A sequence becomes a right-nested chain of pairs terminated by Nil; every
// other host value becomes an atom. Strings are symbols.
package reader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/thomasrohde/pairlisp/pkg/diagnostics"
	"github.com/thomasrohde/pairlisp/pkg/evaluator"
)

// ReadError reports a host value that has no pairlisp representation.
type ReadError struct {
	Path    string
	Message string
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Diagnostic converts the error for display.
func (e *ReadError) Diagnostic() diagnostics.Diagnostic {
	return diagnostics.MakeDiag(diagnostics.ERead, e.Message, e.Path, "programs are nested arrays of strings, numbers, booleans and null")
}

// Read converts a nested sequence into a symbolic expression.
func Read(x any) (evaluator.Value, error) {
	return read(x, "$")
}

// MustRead is like Read but panics on error. Intended for tests and literals.
func MustRead(x any) evaluator.Value {
	v, err := Read(x)
	if err != nil {
		panic(err)
	}
	return v
}

func read(x any, path string) (evaluator.Value, error) {
	switch val := x.(type) {
	case nil:
		return evaluator.NewNil(), nil
	case evaluator.Value:
		return val, nil
	case []any:
		return readSeq(len(val), func(i int) any { return val[i] }, path)
	case []string:
		return readSeq(len(val), func(i int) any { return val[i] }, path)
	case string:
		return evaluator.NewSymbol(val), nil
	case bool:
		return evaluator.NewBool(val), nil
	case float64:
		return evaluator.NewNumber(val), nil
	case float32:
		return evaluator.NewNumber(float64(val)), nil
	case int:
		return evaluator.NewNumber(float64(val)), nil
	case int32:
		return evaluator.NewNumber(float64(val)), nil
	case int64:
		return evaluator.NewNumber(float64(val)), nil
	case uint:
		return evaluator.NewNumber(float64(val)), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, &ReadError{Path: path, Message: fmt.Sprintf("invalid number %q", val.String())}
		}
		return evaluator.NewNumber(f), nil
	}
	return nil, &ReadError{Path: path, Message: fmt.Sprintf("unsupported host value of type %T", x)}
}

// readSeq builds the chain back to front so the result is right-nested.
func readSeq(n int, at func(int) any, path string) (evaluator.Value, error) {
	items := make([]evaluator.Value, n)
	for i := 0; i < n; i++ {
		v, err := read(at(i), diagnostics.ChildPath(path, i))
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return evaluator.List(items...), nil
}

// ReadJSON decodes a single JSON document and reads it.
func ReadJSON(data []byte) (evaluator.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &ReadError{Path: "$", Message: fmt.Sprintf("invalid JSON: %s", err)}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ReadError{Path: "$", Message: "unexpected data after the program"}
	}
	return Read(raw)
}
