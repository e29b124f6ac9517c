// Package diagnostics defines pairlisp diagnostic types for read, check and runtime errors.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Diagnostic code constants.
const (
	EUnbound    = "E_UNBOUND"
	EEval       = "E_EVAL"
	ELambda     = "E_LAMBDA"
	EArity      = "E_ARITY"
	ECallTarget = "E_CALL_TARGET"
	EType       = "E_TYPE"
	EBudget     = "E_BUDGET"
	ERead       = "E_READ"
	EIO         = "E_IO"
)

// Kinds maps each code to the error kind name it reports.
var Kinds = map[string]string{
	EUnbound:    "UnboundSymbol",
	EEval:       "EvaluationError",
	ELambda:     "MalformedLambda",
	EArity:      "ArityMismatch",
	ECallTarget: "InvalidCallTarget",
	EType:       "TypeMismatch",
	EBudget:     "BudgetExceeded",
	ERead:       "ReadError",
	EIO:         "IOError",
}

// Diagnostic represents a read, check, or runtime diagnostic.
// Path locates the offending form inside the input program ("$[2][1]").
type Diagnostic struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	Form    string `json:"form,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message, path, hint string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: message,
		Path:    path,
		Hint:    hint,
	}
}

// WithForm returns a copy of d carrying the rendered offending form.
func (d Diagnostic) WithForm(form string) Diagnostic {
	d.Form = form
	return d
}

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	out := fmt.Sprintf("error[%s]: %s", d.Code, d.Message)
	if d.Path != "" {
		out += fmt.Sprintf("\n  --> %s", d.Path)
	}
	if d.Form != "" {
		out += fmt.Sprintf("\n  form: %s", d.Form)
	}
	if d.Hint != "" {
		out += fmt.Sprintf("\n  hint: %s", d.Hint)
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}

// ChildPath appends a list index to a diagnostic path.
func ChildPath(path string, index int) string {
	if path == "" {
		path = "$"
	}
	return fmt.Sprintf("%s[%d]", path, index)
}
