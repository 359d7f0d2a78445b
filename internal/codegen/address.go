package codegen

import "fmt"

// LocationType classifies where a variable's current value lives.
type LocationType int

const (
	LTDummy LocationType = iota
	LTRegister
	LTMemoryGlobal
	LTMemoryStack
	LTImmediate
)

// largeImmediatesPrefix names the synthetic global symbol a compile-time
// constant is parked in when an instruction needs it in memory rather than
// as an immediate operand (the vector broadcast path: vpbroadcastq has no
// immediate form).
const largeImmediatesPrefix = "LIM"

// LargeImmediateName derives the synthetic global name for a parked
// immediate from the text of its value.
func LargeImmediateName(previousName string) string {
	return largeImmediatesPrefix + previousName
}

// Location records where one variable's current value is: a register, a
// stack slot, a spot in the .data section, or an immediate constant.
type Location struct {
	Type LocationType

	stackOffset  int
	reg          *Register
	immOrGlobal  string
	regIsAddress bool
	// wide marks a memory slot holding a full 256-bit vector value (a
	// spilled ymm register) rather than one 8-byte scalar.
	wide bool
}

// NewLocation constructs a Location of the given type; offsets/registers
// are filled in afterward via the setter methods.
func NewLocation(t LocationType) Location { return Location{Type: t} }

func (l Location) InMemory() bool    { return l.Type == LTMemoryStack || l.Type == LTMemoryGlobal }
func (l Location) InRegister() bool  { return l.Type == LTRegister }
func (l Location) IsImmediate() bool { return l.Type == LTImmediate }

func (l Location) SetStack(offset int) Location              { l.stackOffset = offset; return l }
func (l Location) SetReg(reg *Register) Location             { l.reg = reg; return l }
func (l Location) SetImmValueOrGlobal(value string) Location { l.immOrGlobal = value; return l }
func (l Location) SetIsRegAddress(v bool) Location           { l.regIsAddress = v; return l }
func (l Location) SetWide(v bool) Location                   { l.wide = v; return l }

func (l Location) StackOffset() int         { return l.stackOffset }
func (l Location) Register() *Register      { return l.reg }
func (l Location) ImmValueOrGlobal() string { return l.immOrGlobal }
func (l Location) IsRegAddress() bool       { return l.regIsAddress }
func (l Location) Wide() bool               { return l.wide }

// Address renders the AT&T-syntax operand text for this location.
// forceRegValue treats a register location as a memory dereference even
// when it was not flagged as one (used when an instruction needs the
// pointee rather than the pointer itself).
func (l Location) Address(forceRegValue bool) string {
	switch l.Type {
	case LTRegister:
		if l.regIsAddress || forceRegValue {
			return l.reg.NameAsMemory()
		}
		return l.reg.Name()
	case LTMemoryGlobal:
		return l.immOrGlobal + "(%rip)"
	case LTMemoryStack:
		return fmt.Sprintf("%d(%%rbp)", l.stackOffset)
	case LTImmediate:
		return "$" + l.immOrGlobal
	default:
		panic("codegen: invalid location type")
	}
}

// Table tracks where the most recent version of every variable lives:
// either in a register, or in memory (global or stack).
type Table struct {
	entries map[string]Location
}

// NewTable constructs an empty address table.
func NewTable() *Table { return &Table{entries: make(map[string]Location)} }

// Get fetches variable's current location. Panics if absent — callers are
// expected to have checked Contains first.
func (t *Table) Get(variable string) Location {
	loc, ok := t.entries[variable]
	if !ok {
		panic("codegen: address table has no location for " + variable)
	}
	return loc
}

func (t *Table) IsInRegister(variable string) bool {
	loc, ok := t.entries[variable]
	return ok && loc.Type == LTRegister
}

func (t *Table) RegisterOf(variable string) *Register {
	return t.Get(variable).reg
}

// Insert associates variable with location, replacing any prior one.
func (t *Table) Insert(variable string, location Location) {
	t.entries[variable] = location
}

func (t *Table) Contains(variable string) bool {
	_, ok := t.entries[variable]
	return ok
}

// Delete forgets variable's location entirely (its register was repurposed
// and no memory home is known here).
func (t *Table) Delete(variable string) {
	delete(t.entries, variable)
}

// VarLocation pairs a variable name with its current location.
type VarLocation struct {
	Variable string
	Location Location
}

// InRegisters returns every variable/location pair currently backed by a
// register.
func (t *Table) InRegisters() []VarLocation {
	var result []VarLocation
	for v, loc := range t.entries {
		if loc.InRegister() {
			result = append(result, VarLocation{v, loc})
		}
	}
	return result
}

// ClearRegisters drops every register-backed entry, used when entering a
// fresh basic block whose register contents can't be assumed live.
func (t *Table) ClearRegisters() {
	for v, loc := range t.entries {
		if loc.InRegister() {
			delete(t.entries, v)
		}
	}
}
