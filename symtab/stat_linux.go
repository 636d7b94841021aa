//go:build linux

package symtab

import (
	"os"
	"syscall"
)

// Stat identifies a file by device and inode. Two paths with equal Stat
// refer to the same on-disk file, which is how we detect that a mapped
// executable was replaced or deleted after exec.
type Stat struct {
	Dev   uint64
	Inode uint64
}

func statFromFileInfo(file os.FileInfo) Stat {
	sys := file.Sys()
	sysStat, ok := sys.(*syscall.Stat_t)
	if !ok || sysStat == nil {
		return Stat{}
	}
	return Stat{
		Dev:   sysStat.Dev,
		Inode: sysStat.Ino,
	}
}
