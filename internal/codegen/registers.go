// Package codegen lowers three-address code into x86-64 AT&T-syntax
// assembly: register allocation, address/stack/global bookkeeping, and
// per-instruction emission rules.
package codegen

import "strings"

// RegisterClass distinguishes the two register families codegen draws from.
// AVX registers exist solely to back the vectorizer's wide VADD/VSUB/VLOAD/
// VSTORE/VASSIGN instructions.
type RegisterClass int

const (
	GPR RegisterClass = iota
	AVX
)

// Register is an immutable x86-64 register name, compared by identity
// (the ~32 system registers are a fixed, immutable set of values rather
// than heap-allocated, reference-counted objects).
type Register struct {
	name string
}

func (r *Register) Name() string         { return "%" + r.name }
func (r *Register) NameAsMemory() string { return "(%" + r.name + ")" }

// IsVector reports whether this is an AVX ymm register.
func (r *Register) IsVector() bool { return strings.HasPrefix(r.name, "ymm") }

// XMMAlias returns the 128-bit alias of a ymm register, used as the
// staging register for GPR-to-vector broadcasts.
func (r *Register) XMMAlias() string { return "%xmm" + strings.TrimPrefix(r.name, "ymm") }

// generalPurposeRegisters and vectorRegisters are allocated once and never
// mutated; every Register pointer handed out by the allocation table points
// into these slices, so pointer equality is name equality.
var generalPurposeRegisters = []*Register{
	{"r15"}, {"r14"}, {"r13"}, {"r12"}, {"r11"}, {"r10"}, {"r9"}, {"r8"},
	{"rdi"}, {"rsi"}, {"rdx"}, {"rcx"}, {"rax"},
}

var vectorRegisters = []*Register{
	{"ymm15"}, {"ymm14"}, {"ymm13"}, {"ymm12"}, {"ymm11"}, {"ymm10"}, {"ymm9"}, {"ymm8"},
	{"ymm7"}, {"ymm6"}, {"ymm5"}, {"ymm4"}, {"ymm3"}, {"ymm2"}, {"ymm1"}, {"ymm0"},
}

func registerSet(class RegisterClass) []*Register {
	switch class {
	case GPR:
		return generalPurposeRegisters
	case AVX:
		return vectorRegisters
	default:
		panic("codegen: invalid register class")
	}
}

// AllocationTable tracks which registers currently hold which variable, and
// which are free.
type AllocationTable struct {
	contents map[*Register]string
}

// NewAllocationTable constructs an empty table — every register free.
func NewAllocationTable() *AllocationTable {
	return &AllocationTable{contents: make(map[*Register]string)}
}

// SetValue records that reg now holds value.
func (t *AllocationTable) SetValue(reg *Register, value string) {
	t.contents[reg] = value
}

// HasUnused reports whether any register of class is currently free.
func (t *AllocationTable) HasUnused(class RegisterClass) bool {
	return len(registerSet(class)) != len(t.inUse(class))
}

// Unused returns a free register of class, or nil if none remain.
func (t *AllocationTable) Unused(class RegisterClass) *Register {
	for _, r := range registerSet(class) {
		if _, ok := t.contents[r]; !ok {
			return r
		}
	}
	return nil
}

// InUse returns a register of class currently holding a value, or nil if
// none are in use.
func (t *AllocationTable) InUse(class RegisterClass) *Register {
	for _, r := range registerSet(class) {
		if _, ok := t.contents[r]; ok {
			return r
		}
	}
	return nil
}

func (t *AllocationTable) inUse(class RegisterClass) []*Register {
	var result []*Register
	for _, r := range registerSet(class) {
		if _, ok := t.contents[r]; ok {
			result = append(result, r)
		}
	}
	return result
}

// VariableIn returns the variable currently held in reg.
func (t *AllocationTable) VariableIn(reg *Register) string { return t.contents[reg] }

// Free releases reg.
func (t *AllocationTable) Free(reg *Register) { delete(t.contents, reg) }

// Clear releases every register.
func (t *AllocationTable) Clear() { t.contents = make(map[*Register]string) }

// InUseRegisters returns every register currently holding a value, across
// both classes, in allocation-set order (general-purpose r15 through rax,
// then ymm15 through ymm0) — used to save/restore live registers around
// the runtime I/O calls.
func (t *AllocationTable) InUseRegisters() []*Register {
	var result []*Register
	for _, set := range [][]*Register{generalPurposeRegisters, vectorRegisters} {
		for _, r := range set {
			if _, ok := t.contents[r]; ok {
				result = append(result, r)
			}
		}
	}
	return result
}
