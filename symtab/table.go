package symtab

import "sort"

// Sym is one function symbol: a start address, the function's size in
// bytes (0 when the symbol table does not record one), and a (possibly
// mangled) name.
type Sym struct {
	Start uint64
	Size  uint64
	Name  string
}

// SymbolTab resolves addresses against a sorted slice of symbols using
// nearest-at-or-below lookup. Symbols must be sorted by Start; NewSymbolTab
// takes care of that.
type SymbolTab struct {
	symbols []Sym
}

func NewSymbolTab(symbols []Sym) *SymbolTab {
	sort.Slice(symbols, func(i, j int) bool {
		if symbols[i].Start == symbols[j].Start {
			return symbols[i].Name < symbols[j].Name
		}
		return symbols[i].Start < symbols[j].Start
	})
	return &SymbolTab{symbols: symbols}
}

func (t *SymbolTab) Len() int {
	return len(t.symbols)
}

// Resolve returns the symbol containing addr, i.e. the one with the
// greatest Start that is <= addr. A symbol with a recorded size only
// covers [Start, Start+Size), so an address in the gap after a function
// is not blamed on it. The zero Sym means no match.
func (t *SymbolTab) Resolve(addr uint64) Sym {
	if len(t.symbols) == 0 {
		return Sym{}
	}
	if addr < t.symbols[0].Start {
		return Sym{}
	}
	i := sort.Search(len(t.symbols), func(i int) bool {
		return addr < t.symbols[i].Start
	})
	i--
	s := t.symbols[i]
	if s.Size > 0 && addr >= s.Start+s.Size {
		return Sym{}
	}
	return s
}
