package codegen

// globalAttributes records the size of one global variable or array.
type globalAttributes struct {
	sizeBytes uint
}

// GlobalTable records which names live in the .data section, so codegen can
// tell a global reference from a stack or register one.
type GlobalTable struct {
	entries map[string]globalAttributes
}

// NewGlobalTable constructs an empty global table.
func NewGlobalTable() *GlobalTable { return &GlobalTable{entries: make(map[string]globalAttributes)} }

// InsertVariable records name as a scalar global of the given size.
func (g *GlobalTable) InsertVariable(name string, size uint) {
	g.entries[name] = globalAttributes{sizeBytes: size}
}

// InsertArray records name as a global array occupying size bytes.
func (g *GlobalTable) InsertArray(name string, size uint) {
	g.entries[name] = globalAttributes{sizeBytes: size}
}

// IsGlobal reports whether name was declared in global scope.
func (g *GlobalTable) IsGlobal(name string) bool {
	_, ok := g.entries[name]
	return ok
}
