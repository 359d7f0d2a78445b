// Package tac implements three-address code: the flat quadruple list the
// front end lowers to, plus the address-naming helpers every later
// stage (blocker, reach, liveness, codegen) relies on to classify operands.
package tac

import (
	"fmt"
	"strconv"
	"strings"

	"pl0c/internal/compctx"
	"pl0c/internal/diag"
	"pl0c/internal/symtab"
)

// Op is the three-address-code operation enumeration. Switch arms over it
// are listed explicitly rather than as case ranges.
type Op int

const (
	NOP Op = iota
	ENTER_PROC
	EXIT_PROC

	NEGATE
	UNCOND_JMP
	READ
	WRITE
	LABEL
	CALL
	RETVAL
	PROC_PARAM

	JMP_E
	JMP_L
	JMP_G
	JMP_LE
	JMP_GE
	JMP_NE
	JMP_ZERO

	ASSIGN
	ADD
	SUB
	MULT
	DIV
	LESS_THAN
	GREATER_THAN
	GE_THAN
	LE_THAN
	EQUALS
	NOT_EQUALS
	ARRAY_INDEX

	VADD
	VSUB
	VASSIGN
	VLOAD
	VSTORE
)

var opNames = map[Op]string{
	NOP: "NOP", ENTER_PROC: "ENTER_PROC", EXIT_PROC: "EXIT_PROC",
	NEGATE: "NEGATE", UNCOND_JMP: "UNCOND_JMP", READ: "READ", WRITE: "WRITE",
	LABEL: "LABEL", CALL: "CALL", RETVAL: "RETVAL", PROC_PARAM: "PROC_PARAM",
	JMP_E: "JMP_E", JMP_L: "JMP_L", JMP_G: "JMP_G", JMP_LE: "JMP_LE",
	JMP_GE: "JMP_GE", JMP_NE: "JMP_NE", JMP_ZERO: "JMP_ZERO",
	ASSIGN: "ASSIGN", ADD: "ADD", SUB: "SUB", MULT: "MULT", DIV: "DIV",
	LESS_THAN: "LESS_THAN", GREATER_THAN: "GREATER_THAN", GE_THAN: "GE_THAN",
	LE_THAN: "LE_THAN", EQUALS: "EQUALS", NOT_EQUALS: "NOT_EQUALS",
	ARRAY_INDEX: "ARRAY_INDEX",
	VADD:        "VADD", VSUB: "VSUB", VASSIGN: "VASSIGN", VLOAD: "VLOAD", VSTORE: "VSTORE",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "INVALID_OP"
}

// TransfersControl reports whether an instruction of this op transfers
// control (conditional/unconditional jump, or call).
func (o Op) TransfersControl() bool {
	switch o {
	case UNCOND_JMP, CALL, JMP_E, JMP_L, JMP_G, JMP_LE, JMP_GE, JMP_NE, JMP_ZERO:
		return true
	default:
		return false
	}
}

// IsConditionalJump reports whether this op is one of the JMP_* comparison
// jumps (excludes UNCOND_JMP).
func (o Op) IsConditionalJump() bool {
	switch o {
	case JMP_E, JMP_L, JMP_G, JMP_LE, JMP_GE, JMP_NE, JMP_ZERO:
		return true
	default:
		return false
	}
}

// IsComparison reports whether this op computes a boolean comparison result.
func (o Op) IsComparison() bool {
	switch o {
	case LESS_THAN, GREATER_THAN, GE_THAN, LE_THAN, EQUALS, NOT_EQUALS:
		return true
	default:
		return false
	}
}

// IsBinary reports whether this op is one of the two-operand, one-result
// arithmetic/comparison/indexing forms.
func (o Op) IsBinary() bool {
	switch o {
	case ASSIGN, ADD, SUB, MULT, DIV, LESS_THAN, GREATER_THAN, GE_THAN, LE_THAN, EQUALS, NOT_EQUALS, ARRAY_INDEX:
		return true
	default:
		return false
	}
}

// IsVector reports whether this op is one of the vectorizer's instruction
// forms.
func (o Op) IsVector() bool {
	switch o {
	case VADD, VSUB, VASSIGN, VLOAD, VSTORE:
		return true
	default:
		return false
	}
}

// HasResult reports whether this op's Result field names a value the
// instruction defines. VSTORE is absent: its Result slot carries the value
// being stored (a use, not a definition).
func (o Op) HasResult() bool {
	switch o {
	case ASSIGN, ADD, SUB, MULT, DIV, LESS_THAN, GREATER_THAN, GE_THAN, LE_THAN,
		EQUALS, NOT_EQUALS, ARRAY_INDEX, NEGATE, VADD, VSUB, VASSIGN, VLOAD:
		return true
	default:
		return false
	}
}

// IsProcedureCall reports whether this op is a CALL.
func (o Op) IsProcedureCall() bool { return o == CALL }

// IsReadOrWrite reports whether this op is one of the language's inlined I/O
// operations.
func (o Op) IsReadOrWrite() bool { return o == READ || o == WRITE }

// IsProcedureFrameMarker reports whether this op delimits a procedure body
// (used by Instruction.IsSimple).
func (o Op) IsProcedureFrameMarker() bool { return o == ENTER_PROC || o == EXIT_PROC }

// Address-naming helpers.

// IsLabel reports whether name is a TAC label name ("$L" prefix).
func IsLabel(name string) bool {
	return strings.HasPrefix(name, "$L")
}

// IsTemporary reports whether name is a compiler temporary ("$t" prefix).
func IsTemporary(name string) bool {
	return strings.HasPrefix(name, "$t")
}

// IsUserDefinedVar reports whether name is non-empty and has no "$" prefix —
// i.e. it is not a label, a temporary or an interned constant name, but a
// source identifier or literal text.
func IsUserDefinedVar(name string) bool {
	return name != "" && !strings.HasPrefix(name, "$")
}

// ExtractLabel strips the "$L" prefix from a TAC label name.
func ExtractLabel(name string) string {
	return strings.TrimPrefix(name, "$L")
}

// Instruction is a single TAC quadruple.
type Instruction struct {
	ID     uint64
	Op     Op
	Arg1   string
	Arg2   string
	Result string
	Scope  *symtab.Table
}

func (i Instruction) String() string {
	return fmt.Sprintf("(%d) %s %s %s -> %s", i.ID, i.Op, i.Arg1, i.Arg2, i.Result)
}

// NewID reassigns a fresh, distinct id to this instruction — used when
// duplicating instructions (e.g. the strip miner) so clones remain distinct
// from their source.
func (i *Instruction) NewID(ctx *compctx.Context) {
	i.ID = ctx.NextTACID()
}

// IsSimple reports whether the instruction is eligible for liveness
// bookkeeping: it has at least one non-empty operand and is neither a label,
// a control transfer, nor a procedure-frame marker.
func (i Instruction) IsSimple() bool {
	if i.Op == LABEL || i.Op.TransfersControl() || i.Op.IsProcedureFrameMarker() {
		return false
	}
	return i.Arg1 != "" || i.Arg2 != "" || i.Result != ""
}

// IsOperandConstant reports whether value names a compile-time constant
// within this instruction's scope.
func (i Instruction) IsOperandConstant(value string) bool {
	_, ok := i.ConstantValue(value)
	return ok
}

// ConstantValue resolves an operand's compile-time integer value: literal
// decimal text, an interned integer-literal name, or a "const" declaration,
// looked up through this instruction's scope.
func (i Instruction) ConstantValue(value string) (int64, bool) {
	if value == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n, true
	}
	if i.Scope == nil {
		return 0, false
	}
	e, _, ok := i.Scope.Lookup(value)
	if !ok {
		return 0, false
	}
	switch e.Kind {
	case symtab.KindLiteral:
		return e.LitInt, true
	case symtab.KindVariable:
		if e.IsConstant {
			return e.IntValue, true
		}
	}
	return 0, false
}

// Generator constructs TAC instructions with fresh labels and temporaries.
type Generator struct {
	ctx          *compctx.Context
	tempCounter  uint64
	labelCounter uint64
	Code         []Instruction
}

// NewGenerator constructs a Generator sharing ctx's id counters.
func NewGenerator(ctx *compctx.Context) *Generator {
	return &Generator{ctx: ctx}
}

// NewLabel returns a fresh auto-generated label name ("$LNO<n>").
func (g *Generator) NewLabel() string {
	id := g.labelCounter
	g.labelCounter++
	return fmt.Sprintf("$LNO%d", id)
}

// CustomLabel formats name as a TAC label (used for procedure entry points:
// "$L<procname>").
func (g *Generator) CustomLabel(name string) string {
	return "$L" + name
}

func (g *Generator) newTemp() string {
	id := g.tempCounter
	g.tempCounter++
	return fmt.Sprintf("$t%d", id)
}

func (g *Generator) record(inst Instruction) Instruction {
	if inst.Op.HasResult() && inst.Result != "" && inst.Scope != nil {
		g.ctx.RecordDefinition(inst.Result, inst.ID)
	}
	g.Code = append(g.Code, inst)
	return inst
}

// MakeFrameMarker builds an ENTER_PROC/EXIT_PROC/NOP instruction naming the
// enclosing procedure (empty for NOP).
func (g *Generator) MakeFrameMarker(scope *symtab.Table, op Op, procName string) Instruction {
	if op != NOP && op != ENTER_PROC && op != EXIT_PROC {
		panic(diag.Bug("tac: MakeFrameMarker given non-nullary op %s", op))
	}
	return g.record(Instruction{ID: g.ctx.NextTACID(), Op: op, Arg1: procName, Scope: scope})
}

// MakeLabel builds a LABEL instruction. If name is empty a fresh
// auto-generated label is used.
func (g *Generator) MakeLabel(scope *symtab.Table, name string) Instruction {
	if name == "" {
		name = g.NewLabel()
	}
	return g.record(Instruction{ID: g.ctx.NextTACID(), Op: LABEL, Arg1: name, Scope: scope})
}

// MakeJump builds an unconditional jump, or a conditional jump that tests
// the flags left by a preceding comparison (JMP_E, JMP_L, and the rest of
// the JMP_* family other than JMP_ZERO).
func (g *Generator) MakeJump(scope *symtab.Table, op Op, target string) Instruction {
	if op != UNCOND_JMP && (!op.IsConditionalJump() || op == JMP_ZERO) {
		panic(diag.Bug("tac: MakeJump given non-jump op %s", op))
	}
	return g.record(Instruction{ID: g.ctx.NextTACID(), Op: op, Arg1: target, Scope: scope})
}

// MakeJumpZero builds the canonical "jump to target if tested is zero" form
// every loop/if condition is first generated as: the
// jump target is kept in Arg1 (so control-flow linking treats every
// TransfersControl instruction uniformly) and the tested boolean temporary
// is kept in Arg2. The preprocessor later folds the preceding comparison
// and this instruction into a single negated conditional jump.
func (g *Generator) MakeJumpZero(scope *symtab.Table, tested, target string) Instruction {
	return g.record(Instruction{ID: g.ctx.NextTACID(), Op: JMP_ZERO, Arg1: target, Arg2: tested, Scope: scope})
}

// MakeCall builds a CALL to calleeName, rewriting it to its label form
// ("$L<name>").
func (g *Generator) MakeCall(scope *symtab.Table, calleeName string) Instruction {
	return g.record(Instruction{ID: g.ctx.NextTACID(), Op: CALL, Arg1: "$L" + calleeName, Scope: scope})
}

// MakeUnaryNamed builds a RETVAL, PROC_PARAM, READ, or WRITE instruction
// naming the relevant variable in Arg1.
func (g *Generator) MakeUnaryNamed(scope *symtab.Table, op Op, name string) Instruction {
	switch op {
	case RETVAL, PROC_PARAM, READ, WRITE:
	default:
		panic(diag.Bug("tac: MakeUnaryNamed given unsupported op %s", op))
	}
	return g.record(Instruction{ID: g.ctx.NextTACID(), Op: op, Arg1: name, Scope: scope})
}

// MakeNegate builds an in-place NEGATE: result == arg1.
func (g *Generator) MakeNegate(scope *symtab.Table, operand string) Instruction {
	return g.record(Instruction{ID: g.ctx.NextTACID(), Op: NEGATE, Arg1: operand, Result: operand, Scope: scope})
}

// MakeAssign builds a two-address ASSIGN: result := arg1.
func (g *Generator) MakeAssign(scope *symtab.Table, result, arg1 string) Instruction {
	return g.record(Instruction{ID: g.ctx.NextTACID(), Op: ASSIGN, Arg1: arg1, Result: result, Scope: scope})
}

// MakeDeclaration builds an ASSIGN with empty operands: a declaration that
// only reserves storage for result.
func (g *Generator) MakeDeclaration(scope *symtab.Table, result string) Instruction {
	return g.record(Instruction{ID: g.ctx.NextTACID(), Op: ASSIGN, Result: result, Scope: scope})
}

// MakeBinary builds result := arg1 op arg2 for any op other than ASSIGN,
// binding result to a fresh temporary.
func (g *Generator) MakeBinary(scope *symtab.Table, op Op, arg1, arg2 string) Instruction {
	if op == ASSIGN || !op.IsBinary() {
		panic(diag.Bug("tac: MakeBinary given non-binary op %s", op))
	}
	return g.record(Instruction{ID: g.ctx.NextTACID(), Op: op, Arg1: arg1, Arg2: arg2, Result: g.newTemp(), Scope: scope})
}

// MakeVector builds a vector instruction (VADD, VSUB, VASSIGN, VLOAD,
// VSTORE) with an explicit result — the vectorizer controls
// result naming itself rather than always minting a fresh temporary.
// VLOAD/VSTORE carry (array base, index) in arg1/arg2; a VSTORE's result
// slot names the value being stored rather than a definition.
func (g *Generator) MakeVector(scope *symtab.Table, op Op, arg1, arg2, result string) Instruction {
	if !op.IsVector() {
		panic(diag.Bug("tac: MakeVector given non-vector op %s", op))
	}
	return g.record(Instruction{ID: g.ctx.NextTACID(), Op: op, Arg1: arg1, Arg2: arg2, Result: result, Scope: scope})
}
