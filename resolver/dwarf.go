//go:build !windows

package resolver

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/backward-go/backward/demangle"
	"github.com/backward-go/backward/symtab"
	"github.com/backward-go/backward/trace"
)

// Dwarf resolves source locations from DWARF debug info, layered on the
// symbolic backend. For each address it recovers the line table row,
// the fully qualified function name and the chain of inlined calls.
// Objects without DWARF fall back to the Go runtime line table when
// they have one, and to the symbolic result otherwise.
type Dwarf struct {
	logger    log.Logger
	symbolic  *Symbolic
	demangler *demangle.Demangler
	options   Options

	// nil value means the object was tried and has no usable DWARF
	infos map[string]*dwarfInfo
}

func NewDwarf(options Options) *Dwarf {
	return &Dwarf{
		logger:    options.logger(),
		symbolic:  NewSymbolic(options),
		demangler: options.demangler(),
		options:   options,
		infos:     make(map[string]*dwarfInfo),
	}
}

func (r *Dwarf) LoadAddresses(addrs []uint64) {
	r.symbolic.LoadAddresses(addrs)
}

func (r *Dwarf) Resolve(t trace.ResolvedTrace) trace.ResolvedTrace {
	t = r.symbolic.Resolve(t)
	obj, _ := r.symbolic.Registry().FindObject(t.Addr)
	if obj == nil {
		return t
	}

	info := r.infoFor(obj)
	if info == nil {
		return r.resolveGo(obj, t)
	}

	moduleAddr := obj.ModuleAddress(t.Addr)
	for _, pc := range r.lookupPCs(moduleAddr) {
		if done := r.resolvePC(info, obj, pc, &t); done {
			break
		}
	}
	return t
}

// lookupPCs returns the addresses to try, in order. A return address
// points one past the call, so the adjusted address is tried first and
// the exact one kept as fallback.
func (r *Dwarf) lookupPCs(addr uint64) []uint64 {
	if r.options.AdjustReturnAddresses && addr > 0 {
		return []uint64{addr - 1, addr}
	}
	return []uint64{addr}
}

func (r *Dwarf) resolvePC(info *dwarfInfo, obj *symtab.ObjectFile, pc uint64, t *trace.ResolvedTrace) bool {
	cu := info.findCU(pc)
	if cu == nil {
		return false
	}
	root, err := info.tree(cu)
	if err != nil {
		level.Debug(r.logger).Log("msg", "unreadable compile unit", "f", obj.FilePath(), "err", err)
		return false
	}

	chain := functionChain(root, pc)
	row, haveLine := info.findLine(cu, pc)

	if len(chain) == 0 && !haveLine {
		return false
	}

	if haveLine {
		t.Source.Filename = row.file
		t.Source.Line = row.line
	}
	if len(chain) > 0 {
		innermost := chain[len(chain)-1]
		if name := info.functionName(innermost, r.demangler); name != "" {
			t.Source.Function = name
		}
		if t.ObjectFunction == "" {
			if linkage := info.linkageName(innermost); linkage != "" {
				t.ObjectFunction = r.demangler.Demangle(linkage)
			}
		}
		if !haveLine {
			t.Source.Filename, t.Source.Line = info.declLocation(cu, innermost)
		}
		t.Inliners = info.inliners(cu, chain, r.demangler)
	}
	return true
}

// resolveGo fills in file and line from the pclntab of a Go binary.
func (r *Dwarf) resolveGo(obj *symtab.ObjectFile, t trace.ResolvedTrace) trace.ResolvedTrace {
	tab, err := obj.GoLineTable()
	if err != nil {
		return t
	}
	for _, pc := range r.lookupPCs(obj.ModuleAddress(t.Addr)) {
		file, line, fn := tab.PCToLine(pc)
		if file == "" && fn == nil {
			continue
		}
		t.Source.Filename = file
		t.Source.Line = line
		if fn != nil {
			t.Source.Function = fn.Name
			if t.ObjectFunction == "" {
				t.ObjectFunction = fn.Name
			}
		}
		break
	}
	return t
}

func (r *Dwarf) infoFor(obj *symtab.ObjectFile) *dwarfInfo {
	path := obj.FilePath()
	if info, ok := r.infos[path]; ok {
		return info
	}
	var info *dwarfInfo
	data, err := obj.DWARF()
	if err != nil {
		level.Debug(r.logger).Log("msg", "no debug info", "f", path, "err", err)
	} else {
		info = newDwarfInfo(data)
	}
	r.infos[path] = info
	return info
}

func (r *Dwarf) Close() {
	r.symbolic.Close()
}
