package tac

import (
	"testing"

	"pl0c/internal/compctx"
)

func TestOpPredicates(t *testing.T) {
	cases := []struct {
		op                                                            Op
		transfers, conditional, comparison, binary, vector, hasResult bool
	}{
		{NOP, false, false, false, false, false, false},
		{ENTER_PROC, false, false, false, false, false, false},
		{UNCOND_JMP, true, false, false, false, false, false},
		{CALL, true, false, false, false, false, false},
		{JMP_ZERO, true, true, false, false, false, false},
		{JMP_GE, true, true, false, false, false, false},
		{LESS_THAN, false, false, true, true, false, true},
		{ASSIGN, false, false, false, true, false, true},
		{ADD, false, false, false, true, false, true},
		{ARRAY_INDEX, false, false, false, true, false, true},
		{VADD, false, false, false, false, true, true},
		{NEGATE, false, false, false, false, false, true},
		{LABEL, false, false, false, false, false, false},
	}
	for _, c := range cases {
		if got := c.op.TransfersControl(); got != c.transfers {
			t.Errorf("%s.TransfersControl() = %v, want %v", c.op, got, c.transfers)
		}
		if got := c.op.IsConditionalJump(); got != c.conditional {
			t.Errorf("%s.IsConditionalJump() = %v, want %v", c.op, got, c.conditional)
		}
		if got := c.op.IsComparison(); got != c.comparison {
			t.Errorf("%s.IsComparison() = %v, want %v", c.op, got, c.comparison)
		}
		if got := c.op.IsBinary(); got != c.binary {
			t.Errorf("%s.IsBinary() = %v, want %v", c.op, got, c.binary)
		}
		if got := c.op.IsVector(); got != c.vector {
			t.Errorf("%s.IsVector() = %v, want %v", c.op, got, c.vector)
		}
		if got := c.op.HasResult(); got != c.hasResult {
			t.Errorf("%s.HasResult() = %v, want %v", c.op, got, c.hasResult)
		}
	}
}

func TestOpFrameMarkerAndReadWrite(t *testing.T) {
	if !ENTER_PROC.IsProcedureFrameMarker() || !EXIT_PROC.IsProcedureFrameMarker() {
		t.Fatal("expected ENTER_PROC and EXIT_PROC to be frame markers")
	}
	if ADD.IsProcedureFrameMarker() {
		t.Fatal("expected ADD not to be a frame marker")
	}
	if !READ.IsReadOrWrite() || !WRITE.IsReadOrWrite() {
		t.Fatal("expected READ and WRITE to report IsReadOrWrite")
	}
	if !CALL.IsProcedureCall() {
		t.Fatal("expected CALL.IsProcedureCall() to be true")
	}
}

func TestAddressNamingHelpers(t *testing.T) {
	if !IsLabel("$LNO0") || IsLabel("x") {
		t.Fatal("IsLabel misclassified")
	}
	if !IsTemporary("$t3") || IsTemporary("x") {
		t.Fatal("IsTemporary misclassified")
	}
	if !IsUserDefinedVar("x") || IsUserDefinedVar("$t0") || IsUserDefinedVar("") {
		t.Fatal("IsUserDefinedVar misclassified")
	}
	if ExtractLabel("$LNO0") != "NO0" {
		t.Fatalf("ExtractLabel = %q, want NO0", ExtractLabel("$LNO0"))
	}
}

func TestInstructionIsSimple(t *testing.T) {
	assign := Instruction{Op: ASSIGN, Arg1: "1", Result: "x"}
	if !assign.IsSimple() {
		t.Fatal("expected an ASSIGN with operands to be simple")
	}
	label := Instruction{Op: LABEL, Arg1: "$Lfoo"}
	if label.IsSimple() {
		t.Fatal("expected a LABEL to never be simple")
	}
	jump := Instruction{Op: UNCOND_JMP, Arg1: "$Lfoo"}
	if jump.IsSimple() {
		t.Fatal("expected a control transfer to never be simple")
	}
	empty := Instruction{Op: NOP}
	if empty.IsSimple() {
		t.Fatal("expected an instruction with no operands to never be simple")
	}
}

func TestInstructionIsOperandConstant(t *testing.T) {
	inst := Instruction{Op: ADD}
	if !inst.IsOperandConstant("16") {
		t.Fatal("expected an integer literal to be constant")
	}
	if inst.IsOperandConstant("x") {
		t.Fatal("expected an unscoped variable name not to be constant")
	}
	if inst.IsOperandConstant("") {
		t.Fatal("expected empty operand not to be constant")
	}
}

func TestGeneratorMakeBinaryAssignsFreshTemp(t *testing.T) {
	gen := NewGenerator(compctx.New())
	i1 := gen.MakeBinary(nil, ADD, "x", "1")
	i2 := gen.MakeBinary(nil, ADD, "x", "1")
	if i1.Result == i2.Result {
		t.Fatalf("expected distinct temporaries, got %q twice", i1.Result)
	}
	if !IsTemporary(i1.Result) {
		t.Fatalf("expected MakeBinary's result to be a temporary, got %q", i1.Result)
	}
}

func TestGeneratorMakeBinaryPanicsOnAssign(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected MakeBinary(ASSIGN,...) to panic")
		}
	}()
	NewGenerator(compctx.New()).MakeBinary(nil, ASSIGN, "x", "1")
}

func TestGeneratorMakeCallRewritesToLabelForm(t *testing.T) {
	gen := NewGenerator(compctx.New())
	inst := gen.MakeCall(nil, "p")
	if inst.Arg1 != "$Lp" {
		t.Fatalf("MakeCall Arg1 = %q, want $Lp", inst.Arg1)
	}
	if inst.Op != CALL {
		t.Fatalf("MakeCall Op = %s, want CALL", inst.Op)
	}
}

func TestGeneratorMakeLabelAutoGeneratesWhenEmpty(t *testing.T) {
	gen := NewGenerator(compctx.New())
	a := gen.MakeLabel(nil, "")
	b := gen.MakeLabel(nil, "")
	if a.Arg1 == b.Arg1 {
		t.Fatalf("expected distinct auto-generated labels, got %q twice", a.Arg1)
	}
	named := gen.MakeLabel(nil, "$Lcustom")
	if named.Arg1 != "$Lcustom" {
		t.Fatalf("MakeLabel with an explicit name = %q, want $Lcustom", named.Arg1)
	}
}

func TestGeneratorMakeVectorRejectsNonVectorOp(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected MakeVector(ADD,...) to panic")
		}
	}()
	NewGenerator(compctx.New()).MakeVector(nil, ADD, "a", "i", "$t0")
}

func TestGeneratorMakeAssignBuildsTwoAddressForm(t *testing.T) {
	gen := NewGenerator(compctx.New())
	inst := gen.MakeAssign(nil, "x", "1")
	if inst.Result != "x" || inst.Arg1 != "1" || inst.Op != ASSIGN {
		t.Fatalf("unexpected instruction: %+v", inst)
	}
}
