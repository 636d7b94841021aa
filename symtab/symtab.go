// Package symtab maps addresses in the current process to the objects
// they live in and the function symbols they belong to. It reads the
// process's executable mappings, opens the backing ELF files, and keeps
// parsed symbol tables shared across objects that refer to the same
// file.
package symtab

// Module is one executable mapping of the current process: the address
// range it occupies, the file offset it was mapped from, and the backing
// file path.
type Module struct {
	StartAddr uint64
	EndAddr   uint64
	Offset    uint64
	Path      string
}

func (m *Module) contains(addr uint64) bool {
	return addr >= m.StartAddr && addr < m.EndAddr
}

func fsRoot(fs string) string {
	if fs == "" {
		return "/"
	}
	return fs
}
