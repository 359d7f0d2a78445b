// Package diag implements the compiler's error-handling design:
// lexical/syntactic and semantic errors are fatal with a located message,
// internal compiler errors are invariant violations wrapped with a stack
// trace, and optimization failures are warnings that fall back to the
// unoptimized form rather than aborting the pipeline.
package diag

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Category distinguishes the compiler's four error kinds.
type Category string

const (
	Syntax              Category = "SyntaxError"
	Semantic            Category = "SemanticError"
	Internal            Category = "InternalError"
	OptimizationWarning Category = "OptimizationWarning"
)

// Location pinpoints a diagnostic to a source position.
type Location struct {
	File   string
	Line   int
	Column int
}

// Diagnostic is a located compiler error or warning.
type Diagnostic struct {
	Category Category
	Message  string
	Location Location
	Source   string // the source line the diagnostic refers to, if known
}

func (d *Diagnostic) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", d.Category, d.Message))
	if d.Location.File != "" {
		sb.WriteString(fmt.Sprintf(" at %s:%d:%d", d.Location.File, d.Location.Line, d.Location.Column))
	}
	if d.Source != "" {
		sb.WriteString(fmt.Sprintf("\n  %d | %s\n  %s^", d.Location.Line, d.Source,
			strings.Repeat(" ", len(fmt.Sprintf("%d | ", d.Location.Line))+max0(d.Location.Column-1))))
	}
	return sb.String()
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// NewSyntax builds a fatal lexical/syntactic diagnostic.
func NewSyntax(file string, line, col int, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Category: Syntax, Message: fmt.Sprintf(format, args...), Location: Location{file, line, col}}
}

// NewSemantic builds a fatal semantic diagnostic (undefined variable, type
// mismatch, assignment to void, unknown procedure).
func NewSemantic(file string, line, col int, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Category: Semantic, Message: fmt.Sprintf(format, args...), Location: Location{file, line, col}}
}

// Warnf builds an optimization-failure warning. Callers fall back to the
// unoptimized form and continue; these never abort the pipeline.
func Warnf(format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Category: OptimizationWarning, Message: fmt.Sprintf(format, args...)}
}

// Bug reports an internal compiler error: an invariant violation such as an
// invalid TAC op reaching a switch, or a failed register-table lookup. It is
// wrapped with a stack trace via pkg/errors so the CLI's fatal path can print
// where the assertion failed.
func Bug(format string, args ...interface{}) error {
	return errors.WithStack(&Diagnostic{Category: Internal, Message: fmt.Sprintf(format, args...)})
}

// WithSource attaches the offending source line for caret rendering.
func (d *Diagnostic) WithSource(source string) *Diagnostic {
	d.Source = source
	return d
}

// IsWarning reports whether a diagnostic is recoverable (optimization
// failures are warnings only, everything else is fatal).
func IsWarning(err error) bool {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.Category == OptimizationWarning
	}
	return false
}
