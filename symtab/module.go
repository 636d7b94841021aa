//go:build !windows

package symtab

import (
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/prometheus/procfs"
	"golang.org/x/exp/slices"
)

// ModuleList enumerates the executable mappings of the current process,
// sorted by start address. fs is the filesystem root ("" means "/"),
// injectable so tests can point it at a fake /proc tree.
type ModuleList struct {
	fs      string
	modules []Module
}

func NewModuleList(fs string) (*ModuleList, error) {
	procRoot := path.Join(fsRoot(fs), "proc")
	pfs, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, fmt.Errorf("open procfs at %s: %w", procRoot, err)
	}
	self, err := pfs.Self()
	if err != nil {
		return nil, fmt.Errorf("procfs self: %w", err)
	}
	maps, err := self.ProcMaps()
	if err != nil {
		return nil, fmt.Errorf("read proc maps: %w", err)
	}
	modules := make([]Module, 0, len(maps))
	for _, m := range maps {
		if m.Perms == nil || !m.Perms.Execute {
			continue
		}
		if m.Pathname == "" || m.Pathname[0] == '[' {
			// anonymous or special mappings (vdso, stack) carry no object file
			continue
		}
		modules = append(modules, Module{
			StartAddr: uint64(m.StartAddr),
			EndAddr:   uint64(m.EndAddr),
			Offset:    uint64(m.Offset),
			Path:      m.Pathname,
		})
	}
	slices.SortFunc(modules, func(a, b Module) int {
		switch {
		case a.StartAddr < b.StartAddr:
			return -1
		case a.StartAddr > b.StartAddr:
			return 1
		default:
			return 0
		}
	})
	return &ModuleList{fs: fs, modules: modules}, nil
}

// Find returns the module whose range contains addr, or nil.
func (l *ModuleList) Find(addr uint64) *Module {
	i := sort.Search(len(l.modules), func(i int) bool {
		return addr < l.modules[i].EndAddr
	})
	if i >= len(l.modules) || !l.modules[i].contains(addr) {
		return nil
	}
	return &l.modules[i]
}

func (l *ModuleList) Modules() []Module {
	return l.modules
}

// ExecPath resolves the path to open for the main executable. The module
// path recorded in the maps file is the path the program was started
// with, which may since have been deleted or replaced; /proc/self/exe
// always refers to the mapped file. The original path is preferred
// because split debug files are searched relative to it.
func (l *ModuleList) ExecPath(m *Module) string {
	selfExe := path.Join(fsRoot(l.fs), "proc/self/exe")
	target, err := os.Readlink(selfExe)
	if err != nil || target != m.Path {
		return m.Path
	}
	onDisk, err := os.Stat(path.Join(fsRoot(l.fs), m.Path))
	if err != nil {
		return selfExe
	}
	mapped, err := os.Stat(selfExe)
	if err != nil {
		return m.Path
	}
	if statFromFileInfo(onDisk) == statFromFileInfo(mapped) {
		// same inode: the on-disk file is still the mapped executable
		return m.Path
	}
	return selfExe
}
