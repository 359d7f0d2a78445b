// Package ast implements the parsed program tree the supplemental front end
// (internal/lexer, internal/parser) builds and internal/tac consumes.
//
// The original's class hierarchy dispatching typeChecker/getChildren/
// generateCode virtual methods is replaced with a tagged sum over node
// kinds plus three pattern-matching functions — Node/Kind/TypeCheck/
// Children/GenerateCode below.
// Fields are grouped by which Kind populates them, the same convention
// internal/symtab.Entry uses for its own tagged union replacement.
package ast

import (
	"fmt"

	"pl0c/internal/diag"
	"pl0c/internal/symtab"
	"pl0c/internal/tac"
)

// Kind tags which variant of Node is populated.
type Kind int

const (
	KindProgram Kind = iota
	KindVarDecl
	KindConstDecl
	KindProcDecl
	KindBlockStmt
	KindAssign
	KindIndexAssign
	KindCallStmt
	KindReadStmt
	KindWriteStmt
	KindReturnStmt
	KindIfStmt
	KindWhileStmt
	KindBinaryExpr
	KindUnaryExpr
	KindOddExpr
	KindIdentExpr
	KindNumberExpr
	KindIndexExpr
)

// CompareOp names the six comparison operators ("the six
// comparison operators map to a fixed cmpOpMap/treeTo3acOpMap pair").
type CompareOp string

const (
	CmpEQ CompareOp = "="
	CmpNE CompareOp = "#"
	CmpLT CompareOp = "<"
	CmpGT CompareOp = ">"
	CmpLE CompareOp = "<="
	CmpGE CompareOp = ">="
)

// CompareOpToTACOp is the comparison-operator to TAC op table.
var CompareOpToTACOp = map[CompareOp]tac.Op{
	CmpEQ: tac.EQUALS,
	CmpNE: tac.NOT_EQUALS,
	CmpLT: tac.LESS_THAN,
	CmpGT: tac.GREATER_THAN,
	CmpLE: tac.LE_THAN,
	CmpGE: tac.GE_THAN,
}

var arithOpToTACOp = map[string]tac.Op{
	"+": tac.ADD,
	"-": tac.SUB,
	"*": tac.MULT,
	"/": tac.DIV,
}

// Node is one AST node. Only the fields documented for Kind are meaningful.
type Node struct {
	Kind Kind
	Line int
	Col  int

	// KindProgram, KindBlockStmt: ordered child statements/declarations.
	Stmts []*Node

	// KindVarDecl
	Name      string
	IsArray   bool
	ArraySize uint64

	// KindConstDecl
	ConstValue int64

	// KindProcDecl
	Params     []string
	ReturnName string
	HasReturn  bool
	Body       *Node // *KindBlockStmt
	// ProcScope is the nested scope TypeCheck creates for this procedure's
	// params/body and GenerateCode reuses; populated by the TypeCheck pass
	// that must run before GenerateCode.
	ProcScope *symtab.Table

	// KindAssign, KindIndexAssign: target name (+ Index for IndexAssign) and
	// the value expression.
	Target string
	Index  *Node
	Value  *Node

	// KindCallStmt
	Callee string
	Args   []*Node

	// KindReadStmt, KindWriteStmt, KindReturnStmt
	Expr *Node

	// KindIfStmt, KindWhileStmt
	Cond *Node
	Then *Node

	// KindBinaryExpr
	Op    string
	Left  *Node
	Right *Node

	// KindUnaryExpr ("-x"), KindOddExpr ("odd x")
	Operand *Node

	// KindIdentExpr, KindIndexExpr
	Ident      string
	ArrayIndex *Node

	// KindNumberExpr
	NumberValue int64
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Node(kind=%d name=%q line=%d)", n.Kind, n.Name, n.Line)
}

// Children returns n's direct subtree — a fixed-arity slice per Kind,
// replacing the original's virtual getChildren.
func Children(n *Node) []*Node {
	switch n.Kind {
	case KindProgram, KindBlockStmt:
		return n.Stmts
	case KindProcDecl:
		return []*Node{n.Body}
	case KindAssign:
		return []*Node{n.Value}
	case KindIndexAssign:
		return []*Node{n.Index, n.Value}
	case KindCallStmt:
		return n.Args
	case KindReadStmt:
		return nil
	case KindWriteStmt, KindReturnStmt:
		return []*Node{n.Expr}
	case KindIfStmt:
		return []*Node{n.Cond, n.Then}
	case KindWhileStmt:
		return []*Node{n.Cond, n.Then}
	case KindBinaryExpr:
		return []*Node{n.Left, n.Right}
	case KindUnaryExpr, KindOddExpr:
		return []*Node{n.Operand}
	case KindIndexExpr:
		return []*Node{n.ArrayIndex}
	default:
		return nil
	}
}

// TypeCheck validates n against scope and returns its static type — Void for
// statements and declarations, Int for every expression (the language has no
// other scalar type in active use; the Float/NoType variants exist
// for the symbol table's generality but nothing in this surface produces
// them). Errors are semantic diagnostics.
func TypeCheck(n *Node, scope *symtab.Table) (symtab.Type, error) {
	switch n.Kind {
	case KindProgram, KindBlockStmt:
		for _, s := range n.Stmts {
			if _, err := TypeCheck(s, scope); err != nil {
				return symtab.Void, err
			}
		}
		return symtab.Void, nil

	case KindVarDecl:
		scope.Insert(n.Name, symtab.NewVariable(symtab.Int, false, n.IsArray, n.ArraySize))
		return symtab.Void, nil

	case KindConstDecl:
		e := symtab.NewVariable(symtab.Int, true, false, 0)
		e.IntValue = n.ConstValue
		e.IsAssigned = true
		scope.Insert(n.Name, e)
		return symtab.Void, nil

	case KindProcDecl:
		argTypes := make([]symtab.Type, len(n.Params))
		for i := range argTypes {
			argTypes[i] = symtab.Int
		}
		retType := symtab.Void
		if n.HasReturn {
			retType = symtab.Int
		}
		scope.Insert(n.Name, symtab.NewProcedure(n.Name, argTypes, n.Params, retType, n.ReturnName))

		nested := symtab.NewScope(scope)
		for _, p := range n.Params {
			nested.Insert(p, symtab.NewVariable(symtab.Int, false, false, 0))
		}
		if n.HasReturn {
			nested.Insert(n.ReturnName, symtab.NewVariable(symtab.Int, false, false, 0))
		}
		n.ProcScope = nested
		return TypeCheck(n.Body, nested)

	case KindAssign:
		e, _, ok := scope.Lookup(n.Target)
		if !ok {
			return symtab.Void, diag.NewSemantic("", n.Line, n.Col, "assignment to undefined variable %q", n.Target)
		}
		if e.Kind == symtab.KindVariable && e.VarType == symtab.Void {
			return symtab.Void, diag.NewSemantic("", n.Line, n.Col, "cannot assign to void variable %q", n.Target)
		}
		if e.Kind == symtab.KindVariable && e.IsConstant {
			return symtab.Void, diag.NewSemantic("", n.Line, n.Col, "cannot assign to constant %q", n.Target)
		}
		if _, err := TypeCheck(n.Value, scope); err != nil {
			return symtab.Void, err
		}
		return symtab.Void, nil

	case KindIndexAssign:
		if _, _, ok := scope.Lookup(n.Target); !ok {
			return symtab.Void, diag.NewSemantic("", n.Line, n.Col, "assignment to undefined array %q", n.Target)
		}
		if _, err := TypeCheck(n.Index, scope); err != nil {
			return symtab.Void, err
		}
		if _, err := TypeCheck(n.Value, scope); err != nil {
			return symtab.Void, err
		}
		return symtab.Void, nil

	case KindCallStmt:
		e, _, ok := scope.Lookup(n.Callee)
		if !ok || e.Kind != symtab.KindProcedure {
			return symtab.Void, diag.NewSemantic("", n.Line, n.Col, "call to unknown procedure %q", n.Callee)
		}
		if len(n.Args) != len(e.ArgTypes) {
			return symtab.Void, diag.NewSemantic("", n.Line, n.Col, "procedure %q expects %d arguments, got %d", n.Callee, len(e.ArgTypes), len(n.Args))
		}
		for _, a := range n.Args {
			if _, err := TypeCheck(a, scope); err != nil {
				return symtab.Void, err
			}
		}
		return symtab.Void, nil

	case KindReadStmt:
		if _, _, ok := scope.Lookup(n.Name); !ok {
			return symtab.Void, diag.NewSemantic("", n.Line, n.Col, "read into undefined variable %q", n.Name)
		}
		return symtab.Void, nil

	case KindWriteStmt, KindReturnStmt:
		if _, err := TypeCheck(n.Expr, scope); err != nil {
			return symtab.Void, err
		}
		return symtab.Void, nil

	case KindIfStmt, KindWhileStmt:
		if _, err := TypeCheck(n.Cond, scope); err != nil {
			return symtab.Void, err
		}
		return TypeCheck(n.Then, scope)

	case KindBinaryExpr:
		if _, err := TypeCheck(n.Left, scope); err != nil {
			return symtab.Void, err
		}
		if _, err := TypeCheck(n.Right, scope); err != nil {
			return symtab.Void, err
		}
		return symtab.Int, nil

	case KindUnaryExpr, KindOddExpr:
		return TypeCheck(n.Operand, scope)

	case KindIdentExpr:
		if _, _, ok := scope.Lookup(n.Ident); !ok {
			return symtab.Void, diag.NewSemantic("", n.Line, n.Col, "use of undefined variable %q", n.Ident)
		}
		return symtab.Int, nil

	case KindIndexExpr:
		if _, _, ok := scope.Lookup(n.Ident); !ok {
			return symtab.Void, diag.NewSemantic("", n.Line, n.Col, "use of undefined array %q", n.Ident)
		}
		return TypeCheck(n.ArrayIndex, scope)

	case KindNumberExpr:
		return symtab.Int, nil

	default:
		panic(diag.Bug("ast: TypeCheck reached unhandled kind %d", n.Kind))
	}
}

// GenerateCode lowers n to TAC via gen, appending to gen.Code, and returns
// the address holding n's result ("" for statements/declarations that
// produce none). Traversal is postfix: operands are generated, then the
// node's own instruction.
func GenerateCode(n *Node, gen *tac.Generator, scope *symtab.Table) string {
	switch n.Kind {
	case KindProgram, KindBlockStmt:
		for _, s := range n.Stmts {
			GenerateCode(s, gen, scope)
		}
		return ""

	case KindVarDecl:
		gen.MakeDeclaration(scope, n.Name)
		return ""

	case KindConstDecl:
		return ""

	case KindProcDecl:
		gen.MakeLabel(scope, gen.CustomLabel(n.Name))
		gen.MakeFrameMarker(n.ProcScope, tac.ENTER_PROC, n.Name)
		for _, p := range n.Params {
			gen.MakeUnaryNamed(n.ProcScope, tac.PROC_PARAM, p)
		}
		GenerateCode(n.Body, gen, n.ProcScope)
		gen.MakeFrameMarker(n.ProcScope, tac.EXIT_PROC, n.Name)
		return ""

	case KindAssign:
		value := GenerateCode(n.Value, gen, scope)
		gen.MakeAssign(scope, n.Target, value)
		return ""

	case KindIndexAssign:
		index := GenerateCode(n.Index, gen, scope)
		addr := gen.MakeBinary(scope, tac.ARRAY_INDEX, n.Target, index)
		value := GenerateCode(n.Value, gen, scope)
		gen.MakeAssign(scope, addr.Result, value)
		return ""

	case KindCallStmt:
		for _, a := range n.Args {
			v := GenerateCode(a, gen, scope)
			gen.MakeUnaryNamed(scope, tac.PROC_PARAM, v)
		}
		gen.MakeCall(scope, n.Callee)
		return ""

	case KindReadStmt:
		gen.MakeUnaryNamed(scope, tac.READ, n.Name)
		return ""

	case KindWriteStmt:
		v := GenerateCode(n.Expr, gen, scope)
		gen.MakeUnaryNamed(scope, tac.WRITE, v)
		return ""

	case KindReturnStmt:
		v := GenerateCode(n.Expr, gen, scope)
		gen.MakeAssign(scope, n.Target, v)
		gen.MakeUnaryNamed(scope, tac.RETVAL, n.Target)
		return ""

	case KindIfStmt:
		tested := GenerateCode(n.Cond, gen, scope)
		exitLabel := gen.NewLabel()
		gen.MakeJumpZero(scope, tested, exitLabel)
		GenerateCode(n.Then, gen, scope)
		gen.MakeLabel(scope, exitLabel)
		return ""

	case KindWhileStmt:
		headerLabel := gen.NewLabel()
		gen.MakeLabel(scope, headerLabel)
		tested := GenerateCode(n.Cond, gen, scope)
		exitLabel := gen.NewLabel()
		gen.MakeJumpZero(scope, tested, exitLabel)
		GenerateCode(n.Then, gen, scope)
		gen.MakeJump(scope, tac.UNCOND_JMP, headerLabel)
		gen.MakeLabel(scope, exitLabel)
		return ""

	case KindBinaryExpr:
		left := GenerateCode(n.Left, gen, scope)
		right := GenerateCode(n.Right, gen, scope)
		op, ok := arithOpToTACOp[n.Op]
		if !ok {
			op, ok = CompareOpToTACOp[CompareOp(n.Op)]
		}
		if !ok {
			panic(diag.Bug("ast: GenerateCode reached unknown binary operator %q", n.Op))
		}
		return gen.MakeBinary(scope, op, left, right).Result

	case KindUnaryExpr:
		v := GenerateCode(n.Operand, gen, scope)
		return gen.MakeNegate(scope, v).Result

	case KindOddExpr:
		// "odd x" lowers to (x # ((x/2)*2)) — true when x is not the double
		// of its own halved value.
		v := GenerateCode(n.Operand, gen, scope)
		two := scope.LookupOrInsertIntConstant(2)
		halved := gen.MakeBinary(scope, tac.DIV, v, two)
		doubled := gen.MakeBinary(scope, tac.MULT, halved.Result, two)
		return gen.MakeBinary(scope, tac.NOT_EQUALS, v, doubled.Result).Result

	case KindIdentExpr:
		return n.Ident

	case KindIndexExpr:
		index := GenerateCode(n.ArrayIndex, gen, scope)
		return gen.MakeBinary(scope, tac.ARRAY_INDEX, n.Ident, index).Result

	case KindNumberExpr:
		return scope.LookupOrInsertIntConstant(n.NumberValue)

	default:
		panic(diag.Bug("ast: GenerateCode reached unhandled kind %d", n.Kind))
	}
}
