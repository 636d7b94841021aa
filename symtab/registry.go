//go:build !windows

package symtab

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Registry maps process addresses to the objects they belong to. The
// module list is read lazily on the first lookup; if reading it fails,
// the registry stays empty and every lookup misses. Object files are
// opened once per path and kept until Close.
type Registry struct {
	logger  log.Logger
	fs      string
	options ObjectOptions

	initialized bool
	modules     *ModuleList
	objects     map[string]*ObjectFile
}

func NewRegistry(logger log.Logger, fs string, options ObjectOptions) *Registry {
	return &Registry{
		logger:  logger,
		fs:      fs,
		options: options,
		objects: make(map[string]*ObjectFile),
	}
}

// Refresh drops the cached module list so the next lookup re-reads the
// maps file. Needed after dlopen loads a new shared object.
func (r *Registry) Refresh() {
	r.initialized = false
	r.modules = nil
}

// FindObject returns the object file containing addr and the mapping it
// came from, or (nil, nil) when the address belongs to no known module.
func (r *Registry) FindObject(addr uint64) (*ObjectFile, *Module) {
	if !r.initialized {
		r.initialized = true
		modules, err := NewModuleList(r.fs)
		if err != nil {
			level.Error(r.logger).Log("msg", "failed to read process mappings", "err", err)
		} else {
			r.modules = modules
		}
	}
	if r.modules == nil {
		return nil, nil
	}
	m := r.modules.Find(addr)
	if m == nil {
		return nil, nil
	}
	obj, ok := r.objects[m.Path]
	if !ok {
		openPath := r.modules.ExecPath(m)
		obj = NewObjectFile(log.With(r.logger, "module", m.Path), m, r.fs, m.Path, openPath, r.options)
		r.objects[m.Path] = obj
	}
	return obj, m
}

func (r *Registry) Close() {
	for _, obj := range r.objects {
		obj.Close()
	}
	r.objects = make(map[string]*ObjectFile)
}
