package trace

// Trace identifies one captured frame: a raw instruction address and its
// position within the stack it was captured from.
type Trace struct {
	Addr uint64
	Idx  int
}

func New(addr uint64, idx int) Trace {
	return Trace{Addr: addr, Idx: idx}
}

// SourceLoc is a source location. Any field may be empty/zero meaning
// the backend could not determine it.
type SourceLoc struct {
	Filename string
	Function string
	Line     int
	Col      int
}

func (s SourceLoc) Empty() bool {
	return s == SourceLoc{}
}

// ResolvedTrace is a Trace augmented with whatever the backend could
// recover. ObjectFunction comes from the nearest exported/dynamic symbol
// and is populated independently of Source: a trace with an empty
// Source.Filename but a non-empty ObjectFunction is a valid partial
// result, not an error.
type ResolvedTrace struct {
	Trace

	// ObjectFilename is the loaded binary or library containing Addr.
	ObjectFilename string

	// ObjectFunction is the function in the object containing Addr. It is
	// not necessarily Source.Function, which can be a function inlined
	// into ObjectFunction.
	ObjectFunction string

	// Source is the precise location from debug info, when available.
	Source SourceLoc

	// Inliners is the chain of inline expansions between ObjectFunction
	// and Source, one entry per expansion.
	Inliners []SourceLoc
}

func NewResolved(t Trace) ResolvedTrace {
	return ResolvedTrace{Trace: t}
}
