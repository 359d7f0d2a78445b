package diag

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestDiagnosticErrorFormatsLocationWhenPresent(t *testing.T) {
	d := NewSyntax("prog.pl0", 4, 7, "unexpected token %q", ";")
	msg := d.Error()
	if !strings.Contains(msg, "SyntaxError") {
		t.Fatalf("expected the category in the message, got %q", msg)
	}
	if !strings.Contains(msg, "prog.pl0:4:7") {
		t.Fatalf("expected the location in the message, got %q", msg)
	}
	if !strings.Contains(msg, `unexpected token ";"`) {
		t.Fatalf("expected the formatted message, got %q", msg)
	}
}

func TestDiagnosticErrorOmitsLocationWhenFileEmpty(t *testing.T) {
	d := Warnf("loop not vectorized: %s", "non-equal distance")
	msg := d.Error()
	if strings.Contains(msg, " at ") {
		t.Fatalf("expected no location clause for a fileless diagnostic, got %q", msg)
	}
}

func TestDiagnosticErrorRendersCaretUnderSource(t *testing.T) {
	d := NewSemantic("prog.pl0", 2, 5, "undefined variable %q", "x").WithSource("  y := x + 1")
	msg := d.Error()
	lines := strings.Split(msg, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected message + source line + caret line, got %d lines: %q", len(lines), msg)
	}
	if !strings.Contains(lines[1], "y := x + 1") {
		t.Fatalf("expected the source line rendered, got %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "^") {
		t.Fatalf("expected the caret line to end in ^, got %q", lines[2])
	}
}

func TestBugWrapsWithStackAndInternalCategory(t *testing.T) {
	err := Bug("register table exhausted")
	var d *Diagnostic
	if !errors.As(err, &d) {
		t.Fatal("expected Bug's error to unwrap to a *Diagnostic")
	}
	if d.Category != Internal {
		t.Fatalf("expected Category Internal, got %s", d.Category)
	}
	if IsWarning(err) {
		t.Fatal("an internal bug must never report as a warning")
	}
}

func TestIsWarningTrueOnlyForOptimizationWarning(t *testing.T) {
	if !IsWarning(Warnf("fallback to scalar loop")) {
		t.Fatal("expected a Warnf diagnostic to report IsWarning true")
	}
	if IsWarning(NewSemantic("f", 1, 1, "bad")) {
		t.Fatal("expected a semantic error not to report as a warning")
	}
	if IsWarning(errors.New("plain error")) {
		t.Fatal("expected a non-Diagnostic error not to report as a warning")
	}
}
