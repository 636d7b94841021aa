package symtab

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"debug/gosym"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ulikunitz/xz"

	"github.com/backward-go/backward/handle"
	"github.com/backward-go/backward/metrics"
)

var (
	errBaseNotFound = fmt.Errorf("elf base not found")
	errNoSymbols    = fmt.Errorf("no symbols found")
)

type ObjectOptions struct {
	Cache   *SymbolCache
	Metrics *metrics.Metrics // may be nil for tests
}

// ObjectFile is the per-loaded-object cache entry: an opened ELF file,
// its merged function symbol table, and lazily parsed debug data. An
// object is opened and parsed at most once; open or parse failures are
// remembered so subsequent addresses in the same object do not retry.
type ObjectFile struct {
	logger   log.Logger
	fs       string
	filePath string // display path, from the module list
	openPath string // path to open, may differ for the main executable
	module   *Module
	options  ObjectOptions

	loaded bool
	err    error
	base   uint64

	elfFile *elf.File
	symbols *SymbolTab
	buildID BuildID

	debugPath string

	dwarfLoaded bool
	dwarfData   *dwarf.Data
	dwarfErr    error

	goTabLoaded bool
	goTab       *gosym.Table
	goTabErr    error

	debugFile *elf.File
}

func NewObjectFile(logger log.Logger, module *Module, fs, filePath, openPath string, options ObjectOptions) *ObjectFile {
	if openPath == "" {
		openPath = filePath
	}
	return &ObjectFile{
		logger:   logger,
		fs:       fs,
		filePath: filePath,
		openPath: openPath,
		module:   module,
		options:  options,
	}
}

func (o *ObjectFile) FilePath() string {
	return o.filePath
}

func (o *ObjectFile) Err() error {
	if !o.loaded {
		o.load()
	}
	return o.err
}

// Base is the load bias of the object: the difference between the
// mapped addresses and the file's virtual addresses.
func (o *ObjectFile) Base() uint64 {
	return o.base
}

// ModuleAddress converts a process virtual address to a file-relative
// one.
func (o *ObjectFile) ModuleAddress(addr uint64) uint64 {
	return addr - o.base
}

func (o *ObjectFile) load() {
	if o.loaded {
		return
	}
	o.loaded = true

	fsPath := path.Join(fsRoot(o.fs), o.openPath)
	f, err := elf.Open(fsPath)
	if err != nil {
		o.err = err
		o.onLoadError()
		return
	}
	// released into the object only when every load step succeeded
	eh := handle.New(f, func(f *elf.File) { _ = f.Close() })
	defer eh.Close()

	if !o.findBase(f) {
		o.err = errBaseNotFound
		return
	}

	buildID, err := ReadBuildID(f)
	if err != nil && !errors.Is(err, ErrNoBuildIDSection) {
		o.err = err
		o.onLoadError()
		return
	}
	o.buildID = buildID

	if o.options.Cache != nil {
		if tab := o.options.Cache.GetByBuildID(buildID); tab != nil {
			o.symbols = tab
			o.elfFile = eh.Release()
			return
		}
	}
	fileInfo, err := os.Stat(fsPath)
	if err != nil {
		o.err = err
		o.onLoadError()
		return
	}
	stat := statFromFileInfo(fileInfo)
	if o.options.Cache != nil {
		if tab := o.options.Cache.GetByStat(stat); tab != nil {
			o.symbols = tab
			o.elfFile = eh.Release()
			return
		}
	}

	symbols, err := o.buildSymbolTable(f)
	if err != nil && !errors.Is(err, errNoSymbols) {
		o.err = err
		o.onLoadError()
		return
	}
	if symbols == nil {
		symbols = NewSymbolTab(nil)
	}
	level.Debug(o.logger).Log("msg", "loaded symbol table", "f", fsPath, "symbols", symbols.Len())

	o.symbols = symbols
	o.elfFile = eh.Release()
	if o.options.Cache != nil && symbols.Len() > 0 {
		if buildID.Empty() {
			o.options.Cache.CacheByStat(stat, symbols)
		} else {
			o.options.Cache.CacheByBuildID(buildID, symbols)
		}
	}
}

func (o *ObjectFile) findBase(f *elf.File) bool {
	if f.FileHeader.Type == elf.ET_EXEC {
		o.base = 0
		return true
	}
	if o.module == nil {
		return false
	}
	for _, prog := range f.Progs {
		if prog.Type == elf.PT_LOAD && (prog.Flags&elf.PF_X != 0) {
			if o.module.Offset == prog.Off {
				o.base = o.module.StartAddr - prog.Vaddr
				return true
			}
		}
	}
	return false
}

func (o *ObjectFile) buildSymbolTable(f *elf.File) (*SymbolTab, error) {
	syms := collectFuncSymbols(f)
	if len(syms) == 0 {
		mini, err := o.miniDebugSymbols(f)
		if err != nil {
			return nil, errNoSymbols
		}
		syms = mini
	}
	if len(syms) == 0 {
		return nil, errNoSymbols
	}
	return NewSymbolTab(syms), nil
}

func collectFuncSymbols(f *elf.File) []Sym {
	var res []Sym
	add := func(symbols []elf.Symbol, err error) {
		if err != nil {
			return
		}
		for _, s := range symbols {
			if s.Value == 0 || elf.ST_TYPE(s.Info) != elf.STT_FUNC {
				continue
			}
			res = append(res, Sym{Start: s.Value, Size: s.Size, Name: s.Name})
		}
	}
	add(f.Symbols())
	add(f.DynamicSymbols())
	return res
}

// miniDebugSymbols extracts function symbols from the xz-compressed ELF
// embedded in .gnu_debugdata (MiniDebugInfo), present on distributions
// that strip .symtab from shipped binaries.
func (o *ObjectFile) miniDebugSymbols(f *elf.File) ([]Sym, error) {
	section := f.Section(".gnu_debugdata")
	if section == nil {
		return nil, errNoSymbols
	}
	data, err := section.Data()
	if err != nil {
		return nil, err
	}
	reader, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var uncompressed bytes.Buffer
	if _, err := io.Copy(&uncompressed, reader); err != nil {
		return nil, err
	}
	mini, err := elf.NewFile(bytes.NewReader(uncompressed.Bytes()))
	if err != nil {
		return nil, err
	}
	if o.options.Metrics != nil {
		o.options.Metrics.DebugFilesFound.WithLabelValues("embedded").Inc()
	}
	return collectFuncSymbols(mini), nil
}

// Resolve returns the nearest function symbol name at or below the
// given process virtual address, or "" when unknown.
func (o *ObjectFile) Resolve(addr uint64) string {
	if !o.loaded {
		o.load()
	}
	if o.err != nil || o.symbols == nil {
		return ""
	}
	return o.symbols.Resolve(addr - o.base).Name
}

// DWARF returns the object's debug data, following a split debug file
// when the sections were stripped from the main binary. Malformed debug
// data is reported as an error, never as a panic.
func (o *ObjectFile) DWARF() (_ *dwarf.Data, err error) {
	if !o.loaded {
		o.load()
	}
	if o.err != nil {
		return nil, o.err
	}
	if o.dwarfLoaded {
		return o.dwarfData, o.dwarfErr
	}
	o.dwarfLoaded = true

	defer func() {
		// debug/dwarf is known to panic on some malformed DWARF 5 data
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing DWARF: %v", r)
			o.dwarfData, o.dwarfErr = nil, err
		}
	}()

	if o.hasDebugInfo(o.elfFile) {
		o.dwarfData, o.dwarfErr = o.elfFile.DWARF()
		return o.dwarfData, o.dwarfErr
	}

	debugPath := o.findDebugFile(o.elfFile)
	if debugPath == "" {
		o.dwarfErr = fmt.Errorf("no debug info in %s", o.filePath)
		return nil, o.dwarfErr
	}
	df, err := elf.Open(path.Join(fsRoot(o.fs), debugPath))
	if err != nil {
		o.dwarfErr = err
		return nil, o.dwarfErr
	}
	o.debugFile = df
	o.debugPath = debugPath
	level.Debug(o.logger).Log("msg", "using split debug file", "f", o.debugPath)
	o.dwarfData, o.dwarfErr = df.DWARF()
	return o.dwarfData, o.dwarfErr
}

func (o *ObjectFile) hasDebugInfo(f *elf.File) bool {
	return f.Section(".debug_info") != nil || f.Section(".zdebug_info") != nil
}

// GoLineTable returns the Go runtime's pclntab line table for Go
// binaries, used for file/line resolution when no DWARF is present.
func (o *ObjectFile) GoLineTable() (*gosym.Table, error) {
	if !o.loaded {
		o.load()
	}
	if o.err != nil {
		return nil, o.err
	}
	if o.goTabLoaded {
		return o.goTab, o.goTabErr
	}
	o.goTabLoaded = true

	pclnSection := o.elfFile.Section(".gopclntab")
	textSection := o.elfFile.Section(".text")
	if pclnSection == nil || textSection == nil {
		o.goTabErr = fmt.Errorf("no .gopclntab in %s", o.filePath)
		return nil, o.goTabErr
	}
	pclntab, err := pclnSection.Data()
	if err != nil {
		o.goTabErr = err
		return nil, o.goTabErr
	}
	var symtabData []byte
	if s := o.elfFile.Section(".gosymtab"); s != nil {
		symtabData, _ = s.Data()
	}
	lt := gosym.NewLineTable(pclntab, textSection.Addr)
	o.goTab, o.goTabErr = gosym.NewTable(symtabData, lt)
	return o.goTab, o.goTabErr
}

// findDebugFile searches for a split debug file in the order gdb uses:
// https://sourceware.org/gdb/onlinedocs/gdb/Separate-Debug-Files.html
//
//	/usr/lib/debug/.build-id/ab/cdef1234.debug
//	/usr/bin/ls.debug
//	/usr/bin/.debug/ls.debug
//	/usr/lib/debug/usr/bin/ls.debug
func (o *ObjectFile) findDebugFile(f *elf.File) string {
	if debugFile := o.findDebugFileWithBuildID(); debugFile != "" {
		if o.options.Metrics != nil {
			o.options.Metrics.DebugFilesFound.WithLabelValues("by_build_id").Inc()
		}
		return debugFile
	}
	if debugFile := o.findDebugFileWithDebugLink(f); debugFile != "" {
		if o.options.Metrics != nil {
			o.options.Metrics.DebugFilesFound.WithLabelValues("by_debuglink").Inc()
		}
		return debugFile
	}
	return ""
}

func (o *ObjectFile) findDebugFileWithBuildID() string {
	id := o.buildID.ID
	if len(id) < 3 || !o.buildID.GNU() {
		return ""
	}
	debugFile := fmt.Sprintf("/usr/lib/debug/.build-id/%s/%s.debug", id[:2], id[2:])
	if _, err := os.Stat(path.Join(fsRoot(o.fs), debugFile)); err == nil {
		return debugFile
	}
	return ""
}

func (o *ObjectFile) findDebugFileWithDebugLink(f *elf.File) string {
	section := f.Section(".gnu_debuglink")
	if section == nil {
		return ""
	}
	data, err := section.Data()
	if err != nil || len(data) < 6 {
		return ""
	}
	debugLink := cString(data)

	fs := fsRoot(o.fs)
	for _, dir := range []string{
		path.Dir(o.filePath),
		path.Join(path.Dir(o.filePath), ".debug"),
		path.Join("/usr/lib/debug", path.Dir(o.filePath)),
	} {
		debugFile := path.Join(dir, debugLink)
		if _, err := os.Stat(path.Join(fs, debugFile)); err == nil {
			return debugFile
		}
	}
	return ""
}

func cString(bs []byte) string {
	i := bytes.IndexByte(bs, 0)
	if i < 0 {
		return string(bs)
	}
	return string(bs[:i])
}

func (o *ObjectFile) Close() {
	if o.elfFile != nil {
		_ = o.elfFile.Close()
		o.elfFile = nil
	}
	if o.debugFile != nil {
		_ = o.debugFile.Close()
		o.debugFile = nil
	}
}

func (o *ObjectFile) onLoadError() {
	level.Error(o.logger).Log("msg", "failed to load object file", "err", o.err,
		"f", o.openPath,
		"fs", o.fs)
	if o.options.Metrics != nil {
		o.options.Metrics.ObjectErrors.WithLabelValues(errorType(o.err)).Inc()
	}
}

func errorType(err error) string {
	if errors.Is(err, os.ErrNotExist) {
		return "ErrNotExist"
	}
	if errors.Is(err, os.ErrPermission) {
		return "ErrPermission"
	}
	if errors.Is(err, os.ErrClosed) {
		return "ErrClosed"
	}
	if errors.Is(err, os.ErrInvalid) {
		return "ErrInvalid"
	}
	return "Other"
}
