package codegen

import (
	"fmt"
	"strconv"

	"pl0c/internal/block"
	"pl0c/internal/liveness"
	"pl0c/internal/preprocess"
	"pl0c/internal/symtab"
	"pl0c/internal/tac"
)

// tacToMnemonic maps a TAC op to its x86-64 AT&T mnemonic. Every fused
// conditional jump tests the negation of its source comparison
// (preprocess.jumpPolarity), so "while i < n" loops emit jge, "<=" loops
// emit jg, and so on.
var tacToMnemonic = map[tac.Op]string{
	tac.UNCOND_JMP: "jmp",
	tac.CALL:       "call",
	tac.JMP_E:      "je",
	tac.JMP_L:      "jl",
	tac.JMP_G:      "jg",
	tac.JMP_LE:     "jle",
	tac.JMP_GE:     "jge",
	tac.JMP_NE:     "jne",
	tac.JMP_ZERO:   "jz",
	tac.ASSIGN:     "movq",
	tac.ADD:        "addq",
	tac.SUB:        "subq",
	tac.MULT:       "imulq",
}

// comparisonToSet maps a comparison op to the set* instruction that
// materializes its boolean result into a byte register.
var comparisonToSet = map[tac.Op]string{
	tac.LESS_THAN:    "setl",
	tac.GREATER_THAN: "setg",
	tac.GE_THAN:      "setge",
	tac.LE_THAN:      "setle",
	tac.EQUALS:       "sete",
	tac.NOT_EQUALS:   "setne",
}

// Generator lowers a program's basic blocks into x86-64 assembly text.
type Generator struct {
	regs    *AllocationTable
	addr    *Table
	globals *GlobalTable
	stack   *StackTable
	ctx     *Context

	frameSizePatch []int

	// paramDeclsRemaining counts how many of the PROC_PARAM instructions
	// immediately following the current ENTER_PROC are formal-parameter
	// declarations (a procedure body opens with ENTER_PROC then one PROC_PARAM per
	// parameter) rather than argument pushes at a call site — both reuse the
	// same TAC op.
	paramDeclsRemaining int
}

// New constructs a Generator with every table empty and the entry point
// seeded.
func New() *Generator {
	return &Generator{
		regs:    NewAllocationTable(),
		addr:    NewTable(),
		globals: NewGlobalTable(),
		stack:   NewStackTable(),
		ctx:     NewContext(),
	}
}

// Generate lowers every block (in arena order) into assembly and returns
// the rendered .data/.text text. The entry point gets a base pointer and a
// frame of its own — temporaries spilled at global scope need %rbp-relative
// slots just as procedure locals do — and the exit(0) syscall is appended
// only after every entry-point instruction has been emitted: it must end
// the program's own control flow, not precede it.
func (g *Generator) Generate(blocks []*block.Block) string {
	g.ctx.InsertText("\tmovq %rsp, %rbp")
	entryFrame := g.ctx.InsertPlaceholder("\tsubq $0, %rsp")

	// Strip-miner clones (nonzero minor id) are reachable only through the
	// vector loop's exit jump, never by fall-through, so they render after
	// the exit syscall: emitting them in plain arena order would leave them
	// physically adjacent to the program's last block, which would fall
	// straight into the tail loop.
	var clones []*block.Block
	for _, b := range blocks {
		if b.Minor != 0 {
			clones = append(clones, b)
			continue
		}
		g.generateFromBlock(b)
	}
	g.ctx.InsertExit()
	for _, b := range clones {
		g.generateFromBlock(b)
	}

	g.ctx.Patch(entryFrame, fmt.Sprintf("\tsubq $%d, %%rsp", g.stack.FrameSize()))
	g.generateRuntimeHelpers()
	return g.ctx.Render()
}

// generateRuntimeHelpers emits the minimal stdin/stdout integer routines
// READ and WRITE statements call into. They're simple enough to hand-write
// once rather than synthesize from TAC (the language defines READ/WRITE
// statements, not a runtime library). Codegen saves every in-use
// general-purpose register around the call sites, so the helpers are free to
// clobber GPRs.
func (g *Generator) generateRuntimeHelpers() {
	g.ctx.Comment("runtime: read a signed integer from stdin into %rax")
	g.ctx.InsertText(readIntLabel + ":")
	g.ctx.InsertText("\tsubq $32, %rsp")
	g.ctx.InsertText("\tmovq $0, %rax")
	g.ctx.InsertText("\tmovq $0, %rdi")
	g.ctx.InsertText("\tleaq 8(%rsp), %rsi")
	g.ctx.InsertText("\tmovq $24, %rdx")
	g.ctx.InsertText("\tsyscall")
	g.ctx.InsertText("\tleaq 8(%rsp), %rsi")
	g.ctx.InsertText("\tcall " + asciiToIntLabel)
	g.ctx.InsertText("\taddq $32, %rsp")
	g.ctx.InsertText("\tret")

	g.ctx.Comment("runtime: write the signed integer in %rdi to stdout")
	g.ctx.InsertText(writeIntLabel + ":")
	g.ctx.InsertText("\tsubq $40, %rsp")
	g.ctx.InsertText("\tleaq 8(%rsp), %rsi")
	g.ctx.InsertText("\tcall " + intToASCIILabel)
	// intToASCII leaves the index of the first digit in %rcx; the buffer
	// tail (offset 31) holds the terminating newline.
	g.ctx.InsertText("\tleaq 8(%rsp), %rsi")
	g.ctx.InsertText("\taddq %rcx, %rsi")
	g.ctx.InsertText("\tmovq $32, %rdx")
	g.ctx.InsertText("\tsubq %rcx, %rdx")
	g.ctx.InsertText("\tmovq $1, %rax")
	g.ctx.InsertText("\tmovq $1, %rdi")
	g.ctx.InsertText("\tsyscall")
	g.ctx.InsertText("\taddq $40, %rsp")
	g.ctx.InsertText("\tret")

	g.ctx.Comment("runtime: parse a decimal ASCII buffer at %rsi (optional leading '-') into %rax")
	g.ctx.InsertText(asciiToIntLabel + ":")
	g.ctx.InsertText("\tmovq $0, %rax")
	g.ctx.InsertText("\tmovq $0, %rcx")
	g.ctx.InsertText("\tmovq $1, %r8")     // sign multiplier
	g.ctx.InsertText("\tcmpb $45, (%rsi)") // '-'
	g.ctx.InsertText("\tjne " + asciiToIntLabel + "_loop")
	g.ctx.InsertText("\tmovq $-1, %r8")
	g.ctx.InsertText("\tincq %rcx")
	g.ctx.InsertText(asciiToIntLabel + "_loop:")
	g.ctx.InsertText("\tmovzbq (%rsi,%rcx,1), %rdx")
	g.ctx.InsertText("\tcmpq $48, %rdx") // anything below '0' terminates the digit run
	g.ctx.InsertText("\tjl " + asciiToIntLabel + "_done")
	g.ctx.InsertText("\tcmpq $57, %rdx") // '9'
	g.ctx.InsertText("\tjg " + asciiToIntLabel + "_done")
	g.ctx.InsertText("\tsubq $48, %rdx")
	g.ctx.InsertText("\timulq $10, %rax")
	g.ctx.InsertText("\taddq %rdx, %rax")
	g.ctx.InsertText("\tincq %rcx")
	g.ctx.InsertText("\tjmp " + asciiToIntLabel + "_loop")
	g.ctx.InsertText(asciiToIntLabel + "_done:")
	g.ctx.InsertText("\timulq %r8, %rax")
	g.ctx.InsertText("\tret")

	g.ctx.Comment("runtime: format %rdi as decimal ASCII into the 32-byte buffer at %rsi; first-digit index returned in %rcx")
	g.ctx.InsertText(intToASCIILabel + ":")
	g.ctx.InsertText("\tmovq %rdi, %rax")
	g.ctx.InsertText("\tmovq $10, %r9")
	g.ctx.InsertText("\tmovq $31, %rcx") // digits fill backward from the buffer tail
	g.ctx.InsertText("\tmovb $10, 31(%rsi)")
	g.ctx.InsertText("\tmovq $0, %r8") // sign flag
	g.ctx.InsertText("\ttestq %rax, %rax")
	g.ctx.InsertText("\tjge " + intToASCIILabel + "_loop")
	g.ctx.InsertText("\tmovq $1, %r8")
	g.ctx.InsertText("\tnegq %rax")
	g.ctx.InsertText(intToASCIILabel + "_loop:")
	g.ctx.InsertText("\tdecq %rcx")
	g.ctx.InsertText("\tcqto")
	g.ctx.InsertText("\tidivq %r9")
	g.ctx.InsertText("\taddq $48, %rdx")
	g.ctx.InsertText("\tmovb %dl, (%rsi,%rcx,1)")
	g.ctx.InsertText("\ttestq %rax, %rax")
	g.ctx.InsertText("\tjnz " + intToASCIILabel + "_loop")
	g.ctx.InsertText("\ttestq %r8, %r8")
	g.ctx.InsertText("\tjz " + intToASCIILabel + "_done")
	g.ctx.InsertText("\tdecq %rcx")
	g.ctx.InsertText("\tmovb $45, (%rsi,%rcx,1)") // '-'
	g.ctx.InsertText(intToASCIILabel + "_done:")
	g.ctx.InsertText("\tret")
}

func (g *Generator) generateFromBlock(b *block.Block) {
	lv := liveness.Compute(b)
	// Register contents never survive a block boundary: every named variable
	// is written back to its memory home as it is defined, so both tables
	// restart empty (temporaries never outlive a block).
	g.regs.Clear()
	g.addr.ClearRegisters()
	// A procedure's own LABEL shares this block with its ENTER_PROC (the
	// blocker lets ENTER_PROC fall into the label's block rather than start
	// a new one — internal/blocker.isLeader), so procedure mode must already
	// be active before the label itself is emitted, not only once the
	// ENTER_PROC instruction is reached a few lines later.
	if b.HasEnterProcedure() {
		g.ctx.EnterProcedureMode()
	}
	for _, inst := range b.Instructions {
		g.generateFrom3AC(inst, lv)
	}
}

func (g *Generator) generateFrom3AC(inst tac.Instruction, lv *liveness.Table) {
	switch {
	case inst.Op == tac.NOP:
		return
	case inst.Op == tac.ENTER_PROC:
		g.generateEnterProc(inst)
	case inst.Op == tac.EXIT_PROC:
		g.generateExitProc()
	case inst.Op == tac.LABEL:
		g.generateLabel(inst.Arg1)
	case inst.Op == tac.UNCOND_JMP:
		g.ctx.InsertText("\tjmp " + asmLabel(inst.Arg1))
	case inst.Op.IsConditionalJump():
		g.generateConditional(inst, lv)
	case inst.Op == tac.CALL:
		g.generateCall(inst)
	case inst.Op == tac.RETVAL:
		g.generateRetval(inst, lv)
	case inst.Op == tac.PROC_PARAM:
		if g.paramDeclsRemaining > 0 {
			g.paramDeclsRemaining--
		} else {
			g.generateProcParam(inst, lv)
		}
	case inst.Op == tac.READ:
		g.generateRead(inst)
	case inst.Op == tac.WRITE:
		g.generateWrite(inst, lv)
	case inst.Op == tac.NEGATE:
		g.generateNegate(inst, lv)
	case inst.Op == tac.ARRAY_INDEX:
		g.generateArrayIndex(inst, lv)
	case inst.Op == tac.ASSIGN:
		g.generateAssign(inst, lv)
	case inst.Op.IsVector():
		g.generateVector(inst, lv)
	case inst.Op.IsComparison():
		g.generateComparison(inst, lv)
	case inst.Op.IsBinary():
		g.convertGeneral(inst, lv)
	default:
		panic(fmt.Sprintf("codegen: no emission rule for op %s", inst.Op))
	}
	g.freeRegisters(inst, lv)
}

// asmLabel turns a TAC label name ("$LNO3", "$Lmain") into a valid assembly
// label, since '$' is not a legal label character.
func asmLabel(name string) string {
	return "L_" + tac.ExtractLabel(name)
}

func (g *Generator) generateLabel(name string) {
	g.ctx.InsertText(asmLabel(name) + ":")
}

func (g *Generator) generateEnterProc(inst tac.Instruction) {
	// Procedure mode is already active by the time this instruction is
	// reached — generateFromBlock turns it on for the whole block as soon as
	// it sees the block contains an ENTER_PROC, since that block's own LABEL
	// must render into the procedure section too.
	g.ctx.Comment("enter " + inst.Arg1)
	g.ctx.InsertText("\tpushq %rbp")
	g.ctx.InsertText("\tmovq %rsp, %rbp")
	g.stack.NewBaseAddress()
	g.frameSizePatch = append(g.frameSizePatch, g.ctx.InsertPlaceholder("\tsubq $0, %rsp"))
	g.regs.Clear()
	g.addr.ClearRegisters()

	names := procParamNames(inst.Scope, inst.Arg1)
	g.paramDeclsRemaining = len(names)
	for i, name := range names {
		// Args were pushed by the caller in declaration order immediately
		// before `call`, so the first-declared parameter sits at the
		// highest address above the saved %rbp/return-address pair.
		offset := 16 + 8*(len(names)-1-i)
		g.stack.Bind(name, offset)
		g.addr.Insert(name, NewLocation(LTMemoryStack).SetStack(offset))
	}
}

// procParamNames looks up procName's formal parameter names via its own
// symbol-table entry, found by walking outward from scope (a procedure's
// own ENTER_PROC instruction carries its body scope, whose parent scope is
// where TypeCheck inserted the procedure's KindProcedure entry under its
// own name).
func procParamNames(scope *symtab.Table, procName string) []string {
	if scope == nil {
		return nil
	}
	e, _, ok := scope.Lookup(procName)
	if !ok || e.Kind != symtab.KindProcedure {
		return nil
	}
	return e.ArgNames
}

func (g *Generator) generateExitProc() {
	frameSize := g.stack.FrameSize()
	patchIdx := g.frameSizePatch[len(g.frameSizePatch)-1]
	g.frameSizePatch = g.frameSizePatch[:len(g.frameSizePatch)-1]
	g.ctx.Patch(patchIdx, fmt.Sprintf("\tsubq $%d, %%rsp", frameSize))

	g.ctx.InsertText("\tmovq %rbp, %rsp")
	g.ctx.InsertText("\tpopq %rbp")
	g.ctx.InsertText("\tret")
	g.stack.ResetToPreviousBaseAddress()
	g.ctx.ExitProcedureMode()
}

// generateConditional emits the cmp+jcc pair for a fused comparison jump,
// or a test+jz for an unfused JMP_ZERO.
func (g *Generator) generateConditional(inst tac.Instruction, lv *liveness.Table) {
	if inst.Op == tac.JMP_ZERO {
		reg := g.getRegister(lv, inst.Arg2, inst.ID, GPR, false, inst.Scope)
		g.ctx.InsertText("\ttestq " + reg.Name() + ", " + reg.Name())
		g.ctx.InsertText("\t" + tacToMnemonic[tac.JMP_ZERO] + " " + asmLabel(inst.Arg1))
		return
	}
	a, b := preprocess.CompareOperands(inst)
	regA := g.getRegister(lv, a, inst.ID, GPR, false, inst.Scope)
	operandB := g.operandText(lv, b, inst.ID, inst.Scope)
	g.ctx.InsertText("\tcmpq " + operandB + ", " + regA.Name())
	g.ctx.InsertText("\t" + tacToMnemonic[inst.Op] + " " + asmLabel(inst.Arg1))
}

// generateCall emits a bare call: the pushed PROC_PARAM arguments sit
// directly below the return address the call instruction pushes, at the
// offsets generateEnterProc computed, so nothing else may be pushed between
// the last argument and the call. Caller-saved register preservation is
// only needed around the WRITE runtime call, not general CALL.
func (g *Generator) generateCall(inst tac.Instruction) {
	g.ctx.InsertText("\tcall " + asmLabel(inst.Arg1))
	if n := len(procParamNames(inst.Scope, tac.ExtractLabel(inst.Arg1))); n > 0 {
		// The caller owns the pushed arguments; drop them once the callee
		// returns.
		g.ctx.InsertText(fmt.Sprintf("\taddq $%d, %%rsp", 8*n))
	}
}

// pushRegisters saves every in-use general-purpose register. The vector
// registers are exempt: nothing the runtime helpers (the only call sites)
// execute touches them.
func (g *Generator) pushRegisters() []*Register {
	var saved []*Register
	for _, r := range g.regs.InUseRegisters() {
		if r.IsVector() {
			continue
		}
		g.ctx.InsertText("\tpushq " + r.Name())
		saved = append(saved, r)
	}
	return saved
}

func (g *Generator) popRegisters(saved []*Register) {
	for i := len(saved) - 1; i >= 0; i-- {
		g.ctx.InsertText("\tpopq " + saved[i].Name())
	}
}

func (g *Generator) generateRetval(inst tac.Instruction, lv *liveness.Table) {
	operand := g.operandText(lv, inst.Arg1, inst.ID, inst.Scope)
	g.ctx.InsertText("\tmovq " + operand + ", %rax")
}

// generateProcParam pushes one argument value at a call site (the
// paramDeclsRemaining counter routes the same TAC op's use as a formal-
// parameter declaration to generateEnterProc's lookup instead). The pushed
// value needs no entry of its own in the address/stack tables: it belongs to
// the callee's frame, not a named local of the caller's.
func (g *Generator) generateProcParam(inst tac.Instruction, lv *liveness.Table) {
	operand := g.operandText(lv, inst.Arg1, inst.ID, inst.Scope)
	g.ctx.InsertText("\tpushq " + operand)
}

// runtime helper labels for the language's inlined read/write statements —
// minimal stdin/stdout integer routines, emitted once at the end of the
// program.
const (
	readIntLabel    = "read_pl_0"
	writeIntLabel   = "write_pl_0"
	asciiToIntLabel = "L_runtime_ascii_to_int"
	intToASCIILabel = "L_runtime_int_to_ascii"
)

// generateRead preserves in-use registers across the runtime call, stores
// the value it returns in %rax straight to the variable's memory home, then
// restores — the store has to land before the pop so a saved %rax isn't
// restored over the result.
func (g *Generator) generateRead(inst tac.Instruction) {
	saved := g.pushRegisters()
	g.ctx.InsertText("\tcall " + readIntLabel)
	g.writeBack(inst.Arg1, g.registerNamed("rax"))
	g.popRegisters(saved)
}

// generateWrite preserves every in-use general-purpose register across the
// runtime call (push them, call the helper, pop them back; vector registers
// are exempt, see pushRegisters): unlike a
// user procedure CALL, the caller has no say over what the runtime
// clobbers.
func (g *Generator) generateWrite(inst tac.Instruction, lv *liveness.Table) {
	operand := g.operandText(lv, inst.Arg1, inst.ID, inst.Scope)
	saved := g.pushRegisters()
	g.ctx.InsertText("\tmovq " + operand + ", %rdi")
	g.ctx.InsertText("\tcall " + writeIntLabel)
	g.popRegisters(saved)
}

func (g *Generator) generateNegate(inst tac.Instruction, lv *liveness.Table) {
	reg := g.forceRegister(lv, inst.Arg1, inst.ID, GPR, false, inst.Scope)
	g.ctx.InsertText("\tnegq " + reg.Name())
	g.storeVariable(inst.Result, reg)
}

func (g *Generator) generateArrayIndex(inst tac.Instruction, lv *liveness.Table) {
	base := g.getRegister(lv, inst.Arg1, inst.ID, GPR, true, inst.Scope)
	index := g.getRegister(lv, inst.Arg2, inst.ID, GPR, false, inst.Scope)
	result := g.allocateRegister(GPR)
	g.ctx.InsertText(fmt.Sprintf("\tleaq (%s,%s,8), %s", base.Name(), index.Name(), result.Name()))
	g.regs.SetValue(result, inst.Result)
	g.addr.Insert(inst.Result, NewLocation(LTRegister).SetReg(result).SetIsRegAddress(true))
}

func (g *Generator) generateAssign(inst tac.Instruction, lv *liveness.Table) {
	if inst.Arg1 == "" {
		g.generateDeclaration(inst.Result, inst.Scope)
		return
	}
	operand := g.operandText(lv, inst.Arg1, inst.ID, inst.Scope)
	if g.isAddressRegister(inst.Result) {
		// result names an ARRAY_INDEX-computed pointer still resident in a
		// register (the result := base[idx] lowering of an array-element
		// store): write through it rather than spilling the pointer itself
		// to a fresh stack slot. A memory-resident value stages through a
		// register first, acquired before the pointer register is looked up
		// so the acquisition cannot spill it.
		if isMemoryOperand(operand) {
			tmp := g.allocateRegister(GPR)
			g.ctx.InsertText("\tmovq " + operand + ", " + tmp.Name())
			operand = tmp.Name()
		}
		base := g.addr.RegisterOf(inst.Result)
		g.ctx.InsertText("\tmovq " + operand + ", " + base.NameAsMemory())
		return
	}
	if n, ok := resolveImmediate(inst.Scope, inst.Arg1); ok && !tac.IsTemporary(inst.Result) && fitsImm32(n) {
		g.storeImmediate(inst.Result, n)
		return
	}
	reg := g.allocateRegister(GPR)
	g.ctx.InsertText("\tmovq " + operand + ", " + reg.Name())
	g.storeVariable(inst.Result, reg)
}

// isMemoryOperand reports whether an already-rendered operand refers to
// memory (x86 rejects memory-to-memory moves).
func isMemoryOperand(operand string) bool {
	return len(operand) > 0 && operand[0] != '%' && operand[0] != '$'
}

func fitsImm32(n int64) bool { return n == int64(int32(n)) }

// isAddressRegister reports whether variable currently lives in a register
// holding an address (an ARRAY_INDEX result) rather than a plain value.
func (g *Generator) isAddressRegister(variable string) bool {
	return g.addr.Contains(variable) && g.addr.IsInRegister(variable) && g.addr.Get(variable).IsRegAddress()
}

// declarationShape reports how many bytes a declared variable's storage
// should reserve, and whether it is an array: an array's element count
// times its element width, or 8 bytes for a scalar.
func declarationShape(scope *symtab.Table, variable string) (size uint, isArray bool) {
	if scope == nil {
		return 8, false
	}
	e, _, ok := scope.Lookup(variable)
	if !ok || e.Kind != symtab.KindVariable {
		return 8, false
	}
	return uint(e.TypeSizeBytes()), e.IsArray
}

// generateDeclaration reserves storage for a variable with no initializer:
// a global gets zero-initialized .data space, a local gets a stack slot.
// Arrays reserve their full element-count*element-size extent (a global
// array renders as .align 8 then <name>: .zero <size_bytes>) rather than
// one scalar slot.
func (g *Generator) generateDeclaration(variable string, scope *symtab.Table) {
	size, isArray := declarationShape(scope, variable)
	if g.stack.InGlobalScope() {
		if isArray {
			g.globals.InsertArray(variable, size)
			g.ctx.InsertGlobalArray(variable, size)
		} else {
			g.globals.InsertVariable(variable, size)
			g.ctx.InsertGlobalVariable(variable, size, 0, 8)
		}
		g.addr.Insert(variable, NewLocation(LTMemoryGlobal).SetImmValueOrGlobal(variable))
		return
	}
	offset := g.stack.Allocate(variable, size)
	g.addr.Insert(variable, NewLocation(LTMemoryStack).SetStack(offset))
}

// generateComparison materializes a comparison's boolean result into a
// fresh register via cmp+set*. Reachable only when a comparison's value
// escapes the compare-then-branch shape the preprocessor fuses.
func (g *Generator) generateComparison(inst tac.Instruction, lv *liveness.Table) {
	regA := g.getRegister(lv, inst.Arg1, inst.ID, GPR, false, inst.Scope)
	operandB := g.operandText(lv, inst.Arg2, inst.ID, inst.Scope)
	// The result register is zeroed ahead of the cmp: the xor this rewrites
	// into clobbers the flags set* reads.
	dst := g.allocateRegister(GPR)
	g.ctx.InsertText("\tmovq $0, " + dst.Name())
	g.ctx.InsertText("\tcmpq " + operandB + ", " + regA.Name())
	g.ctx.InsertText("\t" + comparisonToSet[inst.Op] + " " + byteAlias(dst))
	g.storeVariable(inst.Result, dst)
}

// byteAlias returns the low-byte name of a general-purpose register, the
// operand form set* requires.
func byteAlias(reg *Register) string {
	switch n := reg.Name(); n {
	case "%rax":
		return "%al"
	case "%rbx":
		return "%bl"
	case "%rcx":
		return "%cl"
	case "%rdx":
		return "%dl"
	case "%rsi":
		return "%sil"
	case "%rdi":
		return "%dil"
	default:
		return n + "b" // %r8..%r15 -> %r8b..%r15b
	}
}

// convertGeneral lowers ADD/SUB/MULT/DIV into "load arg1, apply op with
// arg2".
func (g *Generator) convertGeneral(inst tac.Instruction, lv *liveness.Table) {
	if inst.Op == tac.DIV {
		g.generateDivision(inst, lv)
		return
	}
	reg := g.forceRegister(lv, inst.Arg1, inst.ID, GPR, false, inst.Scope)
	operandB := g.operandText(lv, inst.Arg2, inst.ID, inst.Scope)
	g.ctx.InsertText("\t" + tacToMnemonic[inst.Op] + " " + operandB + ", " + reg.Name())
	g.storeVariable(inst.Result, reg)
}

// generateDivision reserves %rax/%rdx (idiv's implicit operand pair),
// forces the divisor into a register of its own (idiv takes no immediates),
// and moves the quotient back out.
func (g *Generator) generateDivision(inst tac.Instruction, lv *liveness.Table) {
	g.spillRegisterIfUsed(g.registerNamed("rax"))
	g.spillRegisterIfUsed(g.registerNamed("rdx"))
	reg := g.forceRegister(lv, inst.Arg1, inst.ID, GPR, false, inst.Scope)
	divisor := g.forceRegister(lv, inst.Arg2, inst.ID, GPR, false, inst.Scope)
	g.ctx.InsertText("\tmovq " + reg.Name() + ", %rax")
	g.ctx.InsertText("\tcqto")
	g.ctx.InsertText("\tidivq " + divisor.Name())
	g.ctx.InsertText("\tmovq %rax, " + reg.Name())
	g.storeVariable(inst.Result, reg)
}

func (g *Generator) spillRegisterIfUsed(reg *Register) {
	if g.regs.VariableIn(reg) != "" {
		g.spill(reg)
	}
}

// generateVector lowers the vectorizer's wide instruction forms onto ymm
// registers. VLOAD/VSTORE carry (base, index) in Arg1/Arg2 and use the
// base + index*8 addressing form; VSTORE's Result slot names the value
// being stored.
func (g *Generator) generateVector(inst tac.Instruction, lv *liveness.Table) {
	switch inst.Op {
	case tac.VLOAD:
		base := g.getRegister(lv, inst.Arg1, inst.ID, GPR, true, inst.Scope)
		index := g.getRegister(lv, inst.Arg2, inst.ID, GPR, false, inst.Scope)
		dst := g.allocateRegister(AVX)
		g.ctx.InsertText(fmt.Sprintf("\tvmovdqu (%s,%s,8), %s", base.Name(), index.Name(), dst.Name()))
		g.regs.SetValue(dst, inst.Result)
		g.addr.Insert(inst.Result, NewLocation(LTRegister).SetReg(dst))
	case tac.VSTORE:
		val := g.getRegister(lv, inst.Result, inst.ID, AVX, false, inst.Scope)
		base := g.getRegister(lv, inst.Arg1, inst.ID, GPR, true, inst.Scope)
		index := g.getRegister(lv, inst.Arg2, inst.ID, GPR, false, inst.Scope)
		g.ctx.InsertText(fmt.Sprintf("\tvmovdqu %s, (%s,%s,8)", val.Name(), base.Name(), index.Name()))
	case tac.VASSIGN:
		src := g.getRegister(lv, inst.Arg1, inst.ID, AVX, false, inst.Scope)
		dst := g.allocateRegister(AVX)
		g.ctx.InsertText(fmt.Sprintf("\tvmovdqa %s, %s", src.Name(), dst.Name()))
		g.regs.SetValue(dst, inst.Result)
		g.addr.Insert(inst.Result, NewLocation(LTRegister).SetReg(dst))
	case tac.VADD, tac.VSUB:
		a := g.getRegister(lv, inst.Arg1, inst.ID, AVX, false, inst.Scope)
		b := g.getRegister(lv, inst.Arg2, inst.ID, AVX, false, inst.Scope)
		dst := g.allocateRegister(AVX)
		op := "vpaddq"
		if inst.Op == tac.VSUB {
			op = "vpsubq"
		}
		g.ctx.InsertText(fmt.Sprintf("\t%s %s, %s, %s", op, b.Name(), a.Name(), dst.Name()))
		g.regs.SetValue(dst, inst.Result)
		g.addr.Insert(inst.Result, NewLocation(LTRegister).SetReg(dst))
	}
}

// operandText renders value as an instruction operand without necessarily
// forcing it into a register: immediates, register-resident values (an
// address temporary renders as its dereference), and already-addressable
// memory locations are used directly.
func (g *Generator) operandText(lv *liveness.Table, value string, tid uint64, scope *symtab.Table) string {
	if value == "" {
		return "$0"
	}
	if n, ok := resolveImmediate(scope, value); ok && fitsImm32(n) {
		return "$" + strconv.FormatInt(n, 10)
	}
	if g.addr.Contains(value) && g.addr.IsInRegister(value) {
		return g.addr.Get(value).Address(false)
	}
	reg := g.getRegister(lv, value, tid, GPR, false, scope)
	return reg.Name()
}

func parseImmediate(value string) (int64, bool) {
	n, err := strconv.ParseInt(value, 10, 64)
	return n, err == nil
}

// resolveImmediate reports the compile-time integer value of an operand, if
// it has one: a literal decimal text ("7"), or a name interned by
// symtab.Table.LookupOrInsertIntConstant or a "const" declaration, looked up
// in the instruction's own scope.
func resolveImmediate(scope *symtab.Table, value string) (int64, bool) {
	if n, ok := parseImmediate(value); ok {
		return n, true
	}
	if scope == nil {
		return 0, false
	}
	e, _, ok := scope.Lookup(value)
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

// getRegister returns a register already holding variable if one of the
// right class and address-ness exists, else loads variable into one.
func (g *Generator) getRegister(lv *liveness.Table, variable string, tid uint64, class RegisterClass, address bool, scope *symtab.Table) *Register {
	if g.addr.Contains(variable) && g.addr.IsInRegister(variable) {
		loc := g.addr.Get(variable)
		if loc.Register().IsVector() == (class == AVX) && loc.IsRegAddress() == address {
			return loc.Register()
		}
	}
	return g.forceRegister(lv, variable, tid, class, address, scope)
}

// forceRegister always loads variable into a fresh register, spilling
// another variable out if none are free.
func (g *Generator) forceRegister(lv *liveness.Table, variable string, tid uint64, class RegisterClass, address bool, scope *symtab.Table) *Register {
	reg := g.allocateRegister(class)
	g.generateMovToRegisterIfInMemory(variable, reg, address, scope)
	g.regs.SetValue(reg, variable)
	if reg.IsVector() && !tac.IsTemporary(variable) {
		// A broadcast copy of a named scalar; its memory home stays the
		// authoritative location for scalar reads.
		return reg
	}
	g.addr.Insert(variable, NewLocation(LTRegister).SetReg(reg).SetIsRegAddress(address))
	return reg
}

func (g *Generator) allocateRegister(class RegisterClass) *Register {
	if g.regs.HasUnused(class) {
		return g.regs.Unused(class)
	}
	victim := g.regs.InUse(class)
	g.spill(victim)
	return victim
}

func (g *Generator) spill(reg *Register) {
	variable := g.regs.VariableIn(reg)
	if variable != "" {
		g.writeBack(variable, reg)
	}
	g.regs.Free(reg)
}

// generateMovToRegisterIfInMemory materializes variable into reg: an
// immediate moves in directly, a memory-resident value loads with movq (or
// leaq when its address is wanted), and a vector destination broadcasts
// (or reloads a spilled vector slot wholesale).
func (g *Generator) generateMovToRegisterIfInMemory(variable string, reg *Register, address bool, scope *symtab.Table) {
	if reg.IsVector() {
		g.generateFillVectorRegister(variable, reg, scope)
		return
	}
	if n, ok := resolveImmediate(scope, variable); ok {
		if fitsImm32(n) {
			g.ctx.InsertText(fmt.Sprintf("\tmovq $%d, %s", n, reg.Name()))
		} else {
			g.ctx.InsertText(fmt.Sprintf("\tmovabsq $%d, %s", n, reg.Name()))
		}
		return
	}
	if !g.addr.Contains(variable) {
		if g.stack.InStack(variable) {
			g.addr.Insert(variable, NewLocation(LTMemoryStack).SetStack(g.stack.AddressOf(variable)))
		} else {
			g.insertGlobal(variable)
		}
	}
	loc := g.addr.Get(variable)
	if address && loc.InMemory() {
		g.ctx.Comment("load " + variable + " (address)")
		g.ctx.InsertText("\tleaq " + loc.Address(false) + ", " + reg.Name())
		return
	}
	g.ctx.Comment("load " + variable)
	g.ctx.InsertText("\tmovq " + loc.Address(false) + ", " + reg.Name())
}

// generateFillVectorRegister fills every 64-bit lane of a ymm register with
// variable's scalar value (a broadcast), or reloads a previously spilled
// vector slot in full. Immediates are parked in a synthesized .data slot so
// vpbroadcastq has a memory operand to widen.
func (g *Generator) generateFillVectorRegister(variable string, reg *Register, scope *symtab.Table) {
	if n, ok := resolveImmediate(scope, variable); ok {
		slot := g.ensureImmediateSlot(n)
		g.ctx.InsertText("\tvpbroadcastq " + slot + "(%rip), " + reg.Name())
		return
	}
	if g.addr.Contains(variable) {
		loc := g.addr.Get(variable)
		switch {
		case loc.InRegister() && !loc.Register().IsVector():
			g.ctx.InsertText("\tvmovq " + loc.Register().Name() + ", " + reg.XMMAlias())
			g.ctx.InsertText("\tvpbroadcastq " + reg.XMMAlias() + ", " + reg.Name())
			return
		case loc.InRegister():
			g.ctx.InsertText("\tvmovdqa " + loc.Register().Name() + ", " + reg.Name())
			return
		case loc.InMemory() && loc.Wide():
			g.ctx.InsertText("\tvmovdqu " + loc.Address(false) + ", " + reg.Name())
			return
		case loc.InMemory():
			g.ctx.InsertText("\tvpbroadcastq " + loc.Address(false) + ", " + reg.Name())
			return
		}
	}
	g.insertGlobal(variable)
	g.ctx.InsertText("\tvpbroadcastq " + variable + "(%rip), " + reg.Name())
}

// ensureImmediateSlot interns a compile-time constant in the .data section
// (once per distinct value) and returns its symbol, following the original's
// large-immediates table.
func (g *Generator) ensureImmediateSlot(n int64) string {
	name := LargeImmediateName(immediateSuffix(n))
	if !g.globals.IsGlobal(name) {
		g.globals.InsertVariable(name, 8)
		g.ctx.InsertGlobalVariable(name, 8, n, 8)
	}
	return name
}

func immediateSuffix(n int64) string {
	if n < 0 {
		return "_neg" + strconv.FormatInt(-n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// insertGlobal records a variable codegen has not seen before as living in
// global memory — the front end only emits declarations for variables it
// has already resolved through the symbol table, so any miss here is a
// global referenced before its own ASSIGN-declaration block ran.
func (g *Generator) insertGlobal(variable string) {
	if !g.globals.IsGlobal(variable) {
		g.globals.InsertVariable(variable, 8)
		g.ctx.InsertGlobalVariable(variable, 8, 0, 8)
	}
	g.addr.Insert(variable, NewLocation(LTMemoryGlobal).SetImmValueOrGlobal(variable))
}

func (g *Generator) registerNamed(name string) *Register {
	for _, r := range generalPurposeRegisters {
		if r.name == name {
			return r
		}
	}
	panic("codegen: no such register " + name)
}

// storeVariable records that reg now holds variable and, for named
// variables, writes the value through to its memory home. Temporaries stay
// register-resident — they never outlive a block — unless register
// pressure later spills them.
func (g *Generator) storeVariable(variable string, reg *Register) {
	if prev := g.regs.VariableIn(reg); prev != "" && prev != variable &&
		g.addr.IsInRegister(prev) && g.addr.RegisterOf(prev) == reg {
		g.addr.Delete(prev)
	}
	g.regs.SetValue(reg, variable)
	if tac.IsTemporary(variable) {
		g.addr.Insert(variable, NewLocation(LTRegister).SetReg(reg))
		return
	}
	g.writeBack(variable, reg)
}

// writeBack emits the store of reg's contents to variable's memory home
// (global slot, existing stack slot, or a freshly allocated one) and points
// the address table back at memory. The register-allocation table is left
// alone — callers decide whether reg keeps holding the variable.
func (g *Generator) writeBack(variable string, reg *Register) {
	if g.addr.IsInRegister(variable) {
		if old := g.addr.RegisterOf(variable); old != reg {
			g.regs.Free(old)
		}
	}
	if reg.IsVector() {
		g.writeBackVector(variable, reg)
		return
	}
	if g.isGlobal(variable) && !tac.IsTemporary(variable) {
		if !g.globals.IsGlobal(variable) {
			g.globals.InsertVariable(variable, 8)
			g.ctx.InsertGlobalVariable(variable, 8, 0, 8)
		}
		g.ctx.InsertText("\tmovq " + reg.Name() + ", " + variable + "(%rip)")
		g.addr.Insert(variable, NewLocation(LTMemoryGlobal).SetImmValueOrGlobal(variable))
		return
	}
	var offset int
	if g.stack.InStack(variable) {
		offset = g.stack.AddressOf(variable)
	} else {
		offset = g.stack.Allocate(variable, 8)
	}
	g.ctx.InsertText(fmt.Sprintf("\tmovq %s, %d(%%rbp)", reg.Name(), offset))
	g.addr.Insert(variable, NewLocation(LTMemoryStack).SetStack(offset))
}

// writeBackVector spills a full ymm register to a 32-byte stack slot,
// marking the slot wide so a reload restores all four lanes instead of
// broadcasting the first.
func (g *Generator) writeBackVector(variable string, reg *Register) {
	var offset int
	if g.stack.InStack(variable) {
		offset = g.stack.AddressOf(variable)
	} else {
		offset = g.stack.Allocate(variable, 32)
	}
	g.ctx.InsertText(fmt.Sprintf("\tvmovdqu %s, %d(%%rbp)", reg.Name(), offset))
	g.addr.Insert(variable, NewLocation(LTMemoryStack).SetStack(offset).SetWide(true))
}

// storeImmediate writes a compile-time constant straight to variable's
// memory home, skipping the intermediate register a register-resident
// operand would need.
func (g *Generator) storeImmediate(variable string, n int64) {
	if g.addr.IsInRegister(variable) {
		g.regs.Free(g.addr.RegisterOf(variable))
	}
	imm := "$" + strconv.FormatInt(n, 10)
	if g.isGlobal(variable) {
		if !g.globals.IsGlobal(variable) {
			g.globals.InsertVariable(variable, 8)
			g.ctx.InsertGlobalVariable(variable, 8, 0, 8)
		}
		g.ctx.InsertText("\tmovq " + imm + ", " + variable + "(%rip)")
		g.addr.Insert(variable, NewLocation(LTMemoryGlobal).SetImmValueOrGlobal(variable))
		return
	}
	var offset int
	if g.stack.InStack(variable) {
		offset = g.stack.AddressOf(variable)
	} else {
		offset = g.stack.Allocate(variable, 8)
	}
	g.ctx.InsertText(fmt.Sprintf("\tmovq %s, %d(%%rbp)", imm, offset))
	g.addr.Insert(variable, NewLocation(LTMemoryStack).SetStack(offset))
}

func (g *Generator) isGlobal(variable string) bool {
	if g.globals.IsGlobal(variable) {
		return true
	}
	return g.stack.InGlobalScope() && !g.stack.InStack(variable)
}

// freeRegisters releases registers holding values liveness says are dead
// with no further use past this instruction.
func (g *Generator) freeRegisters(inst tac.Instruction, lv *liveness.Table) {
	snap := lv.At(inst.ID)
	if snap == nil {
		return
	}
	operands := []string{inst.Arg1, inst.Arg2}
	if inst.Op == tac.VSTORE {
		operands = append(operands, inst.Result)
	}
	for _, operand := range operands {
		if operand == "" || tac.IsLabel(operand) {
			continue
		}
		if !g.addr.IsInRegister(operand) {
			continue
		}
		if !snap.IsLive(operand) && !snap.HasNextUse(operand) {
			g.regs.Free(g.addr.RegisterOf(operand))
			g.addr.Delete(operand)
		}
	}
}

// TypeSizeBytes returns the storage width of a symbol table type. The
// declaration path does not call it: declarationShape sizes storage through
// symtab.Entry.TypeSizeBytes, which also accounts for arrays.
func TypeSizeBytes(t symtab.Type) uint64 { return t.SizeBytes() }
