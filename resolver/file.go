//go:build !windows

package resolver

import (
	"debug/elf"
	"path"

	"github.com/backward-go/backward/symtab"
	"github.com/backward-go/backward/trace"
)

// File resolves link-time virtual addresses inside a single object
// file, without any process mapping involved. This is the addr2line
// workflow: the addresses are the ones a linker map or an objdump
// listing shows.
type File struct {
	dw       *Dwarf
	filePath string

	loaded bool
	obj    *symtab.ObjectFile
}

func NewFile(filePath string, options Options) *File {
	return &File{
		dw:       NewDwarf(options),
		filePath: filePath,
	}
}

func (r *File) LoadAddresses([]uint64) {}

func (r *File) Resolve(t trace.ResolvedTrace) trace.ResolvedTrace {
	obj := r.object()
	if obj == nil || obj.Err() != nil {
		return t
	}
	t.ObjectFilename = r.filePath
	if name := obj.Resolve(t.Addr); name != "" {
		t.ObjectFunction = r.dw.demangler.Demangle(name)
	}
	if t.Source.Function == "" {
		t.Source.Function = t.ObjectFunction
	}

	info := r.dw.infoFor(obj)
	if info == nil {
		return r.dw.resolveGo(obj, t)
	}
	for _, pc := range r.dw.lookupPCs(obj.ModuleAddress(t.Addr)) {
		if done := r.dw.resolvePC(info, obj, pc, &t); done {
			break
		}
	}
	return t
}

// object opens the file on first use, with a synthetic mapping placing
// it at its own link-time addresses so the load bias is zero.
func (r *File) object() *symtab.ObjectFile {
	if r.loaded {
		return r.obj
	}
	r.loaded = true

	f, err := elf.Open(path.Join(fsRoot(r.dw.options.FS), r.filePath))
	if err != nil {
		return nil
	}
	module := &symtab.Module{EndAddr: ^uint64(0), Path: r.filePath}
	for _, prog := range f.Progs {
		if prog.Type == elf.PT_LOAD && (prog.Flags&elf.PF_X != 0) {
			module.StartAddr = prog.Vaddr
			module.Offset = prog.Off
			break
		}
	}
	_ = f.Close()

	r.obj = symtab.NewObjectFile(r.dw.logger, module, r.dw.options.FS, r.filePath, r.filePath, symtab.ObjectOptions{
		Metrics: r.dw.options.Metrics,
	})
	return r.obj
}

func (r *File) Close() {
	if r.obj != nil {
		r.obj.Close()
	}
	r.dw.Close()
}

func fsRoot(fs string) string {
	if fs == "" {
		return "/"
	}
	return fs
}
