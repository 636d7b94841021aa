//go:build windows

package resolver

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// New returns the COFF symbol resolver over every module mapped into
// the current process. Modules are enumerated and indexed eagerly at
// construction, so a resolver built early keeps working for DLLs
// unloaded later.
func New(options Options) TraceResolver {
	return WithMetrics(NewPE(processModules(), options), options.Metrics)
}

// processModules lists the loaded modules of the current process with
// their load bases.
func processModules() []PEModule {
	proc := windows.CurrentProcess()

	handles := make([]windows.Handle, 256)
	handleSize := uint32(unsafe.Sizeof(handles[0]))
	var needed uint32
	if err := windows.EnumProcessModules(proc, &handles[0], uint32(len(handles))*handleSize, &needed); err != nil {
		return nil
	}
	if n := int(needed / handleSize); n > len(handles) {
		handles = make([]windows.Handle, n)
		if err := windows.EnumProcessModules(proc, &handles[0], needed, &needed); err != nil {
			return nil
		}
	}
	handles = handles[:needed/handleSize]

	var modules []PEModule
	var name [windows.MAX_PATH]uint16
	for _, h := range handles {
		if err := windows.GetModuleFileNameEx(proc, h, &name[0], uint32(len(name))); err != nil {
			continue
		}
		var info windows.ModuleInfo
		if err := windows.GetModuleInformation(proc, h, &info, uint32(unsafe.Sizeof(info))); err != nil {
			continue
		}
		modules = append(modules, PEModule{
			Path: windows.UTF16ToString(name[:]),
			Base: uint64(info.BaseOfDll),
		})
	}
	return modules
}
