package codegen

import (
	"fmt"
	"strings"
)

// Context buffers the assembly text and data this compilation emits and
// renders them as one string in the layout the x86-64 assembler expects: a
// .data section of global storage followed by a .text section of
// instructions.
//
// Instructions emitted while inside a procedure body are buffered
// separately from the entry point's instructions (procedureMode), then
// appended as a whole to the procedures section, which renders after the
// entry point's text, once the procedure's EXIT_PROC is
// reached — this keeps a procedure's body contiguous even though codegen
// visits blocks in the arena's (majorId, minorId) order rather than in
// call order.
type Context struct {
	procedureMode bool

	textSection       []string
	procedureSection  []string
	proceduresSection []string
	dataSection       []string
}

// NewContext constructs a Context and seeds the program entry point.
func NewContext() *Context {
	c := &Context{}
	c.InsertEntry()
	return c
}

// InsertEntry emits the `_start` entry label.
func (c *Context) InsertEntry() {
	c.textSection = append(c.textSection, ".global _start", "_start:")
}

// InsertExit emits the exit(0) syscall sequence that ends the entry point.
func (c *Context) InsertExit() {
	c.textSection = append(c.textSection,
		"\tmovq $60, %rax",
		"\tmovq $0, %rbx",
		"\tsyscall",
	)
}

// Comment inserts a comment line into whichever section is currently
// active.
func (c *Context) Comment(content string) {
	c.append("# " + content)
}

// EnterProcedureMode begins buffering instructions into the current
// procedure's own section rather than the entry point's.
func (c *Context) EnterProcedureMode() { c.procedureMode = true }

// ExitProcedureMode flushes the buffered procedure section onto the end of
// the accumulated procedures section (kept separate from the entry point's
// own text so every procedure body renders after the entry point's code and
// its exit syscall, regardless of where the procedure's blocks fall in
// arena order) and resumes buffering into the
// entry point.
func (c *Context) ExitProcedureMode() {
	c.proceduresSection = append(c.proceduresSection, c.procedureSection...)
	c.procedureSection = nil
	c.procedureMode = false
}

// InsertText appends one instruction line, applying the `movq $0, %reg` ->
// `xorq %reg, %reg` peephole fixup: zeroing a register is
// cheaper and shorter encoded as an xor than a mov-immediate.
func (c *Context) InsertText(inst string) {
	if rewritten, ok := rewriteMovZero(inst); ok {
		c.append(rewritten)
		return
	}
	c.append(inst)
}

func rewriteMovZero(inst string) (string, bool) {
	trimmed := strings.TrimPrefix(inst, "\t")
	rest, ok := strings.CutPrefix(trimmed, "movq $0, ")
	if !ok {
		return "", false
	}
	if !strings.HasPrefix(rest, "%") {
		return "", false
	}
	return fmt.Sprintf("\txorq %s, %s", rest, rest), true
}

func (c *Context) append(line string) {
	if c.procedureMode {
		c.procedureSection = append(c.procedureSection, line)
		return
	}
	c.textSection = append(c.textSection, line)
}

// InsertPlaceholder appends a line to the active section and returns its
// index so a later Patch can rewrite it once a value isn't known yet — used
// for the procedure prologue's `subq $<frameSize>, %rsp`, whose frame size
// isn't known until the whole procedure body has been walked.
func (c *Context) InsertPlaceholder(line string) int {
	if c.procedureMode {
		c.procedureSection = append(c.procedureSection, line)
		return len(c.procedureSection) - 1
	}
	c.textSection = append(c.textSection, line)
	return len(c.textSection) - 1
}

// Patch rewrites the line previously returned by InsertPlaceholder. It must
// be called before the matching EnterProcedureMode/ExitProcedureMode pair
// ends, while the placeholder is still in the active section.
func (c *Context) Patch(index int, line string) {
	if c.procedureMode {
		c.procedureSection[index] = line
		return
	}
	c.textSection[index] = line
}

// InsertGlobalArray reserves size zeroed bytes for a global array.
func (c *Context) InsertGlobalArray(name string, size uint) {
	c.dataSection = append(c.dataSection, fmt.Sprintf(".align 8\n%s:\n.zero %d", name, size))
}

// InsertGlobalVariable reserves size bytes initialized to value, size/8
// quadwords at a time.
func (c *Context) InsertGlobalVariable(name string, size uint, value int64, alignment uint) {
	if size%8 != 0 {
		panic("codegen: global variable size must be a multiple of 8")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, ".align %d\n%s:", alignment, name)
	for i := uint(0); i < size; i += 8 {
		fmt.Fprintf(&sb, "\n.quad %d", value)
	}
	c.dataSection = append(c.dataSection, sb.String())
}

// Render produces the complete assembly text: .data then .text. Within
// .text, the entry point (preamble through its exit syscall, plus the
// runtime helpers appended after it) comes first, followed by every
// procedure body in the order its EXIT_PROC was reached.
func (c *Context) Render() string {
	var sb strings.Builder
	sb.WriteString(".data\n")
	for _, line := range c.dataSection {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteString(".text\n")
	for _, line := range c.textSection {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	for _, line := range c.proceduresSection {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}
