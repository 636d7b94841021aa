package resolver

import (
	"debug/pe"
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/backward-go/backward/demangle"
	"github.com/backward-go/backward/symtab"
	"github.com/backward-go/backward/trace"
)

// PEModule is one PE image loaded into the process. A zero Base means
// the image's preferred base from its optional header, i.e. loaded
// without relocation.
type PEModule struct {
	Path string
	Base uint64
}

type peObject struct {
	module  PEModule
	size    uint64
	symbols *symtab.SymbolTab
}

// PE resolves addresses against COFF symbol tables. Unlike the ELF
// backends every module is opened and indexed at construction, so a
// resolver built early keeps working for modules unloaded later. No
// line info.
type PE struct {
	logger    log.Logger
	demangler *demangle.Demangler
	objects   []peObject
}

func NewPE(modules []PEModule, options Options) *PE {
	r := &PE{
		logger:    options.logger(),
		demangler: options.demangler(),
	}
	for _, m := range modules {
		obj, err := loadPE(m)
		if err != nil {
			level.Error(r.logger).Log("msg", "failed to load PE module", "f", m.Path, "err", err)
			continue
		}
		r.objects = append(r.objects, obj)
	}
	sort.Slice(r.objects, func(i, j int) bool {
		return r.objects[i].module.Base < r.objects[j].module.Base
	})
	return r
}

func loadPE(m PEModule) (peObject, error) {
	f, err := pe.Open(m.Path)
	if err != nil {
		return peObject{}, err
	}
	defer f.Close()

	obj := peObject{module: m}
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		obj.size = uint64(oh.SizeOfImage)
		if obj.module.Base == 0 {
			obj.module.Base = oh.ImageBase
		}
	case *pe.OptionalHeader32:
		obj.size = uint64(oh.SizeOfImage)
		if obj.module.Base == 0 {
			obj.module.Base = uint64(oh.ImageBase)
		}
	}

	const imageSymDtypeFunction = 2
	var syms []symtab.Sym
	for _, s := range f.Symbols {
		if s.SectionNumber <= 0 || int(s.SectionNumber) > len(f.Sections) {
			continue
		}
		if (s.Type >> 4) != imageSymDtypeFunction {
			continue
		}
		sect := f.Sections[s.SectionNumber-1]
		// relative virtual address within the image
		syms = append(syms, symtab.Sym{
			Start: uint64(sect.VirtualAddress) + uint64(s.Value),
			Name:  s.Name,
		})
	}
	obj.symbols = symtab.NewSymbolTab(syms)
	return obj, nil
}

func (r *PE) LoadAddresses([]uint64) {}

func (r *PE) Resolve(t trace.ResolvedTrace) trace.ResolvedTrace {
	obj := r.find(t.Addr)
	if obj == nil {
		return t
	}
	t.ObjectFilename = obj.module.Path
	rva := t.Addr - obj.module.Base
	if sym := obj.symbols.Resolve(rva); sym.Name != "" {
		t.ObjectFunction = r.demangler.Demangle(sym.Name)
		if t.Source.Function == "" {
			t.Source.Function = t.ObjectFunction
		}
	}
	return t
}

func (r *PE) find(addr uint64) *peObject {
	i := sort.Search(len(r.objects), func(i int) bool {
		return addr < r.objects[i].module.Base
	})
	i--
	if i < 0 {
		return nil
	}
	obj := &r.objects[i]
	if obj.size > 0 && addr >= obj.module.Base+obj.size {
		return nil
	}
	return obj
}
