//go:build !windows

package resolver

import (
	"github.com/go-kit/log"

	"github.com/backward-go/backward/demangle"
	"github.com/backward-go/backward/symtab"
	"github.com/backward-go/backward/trace"
)

// Symbolic resolves addresses against the export and debug symbol
// tables of the objects mapped into the current process, the way dladdr
// does. It recovers the object path and function name; source locations
// stay empty. Richer backends run this first and overwrite what they
// can improve.
type Symbolic struct {
	logger    log.Logger
	registry  *symtab.Registry
	demangler *demangle.Demangler
}

func NewSymbolic(options Options) *Symbolic {
	logger := options.logger()
	cache, err := symtab.NewSymbolCache(options.CacheOptions)
	if err != nil {
		// only reachable with a negative cache size
		cache = nil
	}
	return &Symbolic{
		logger: logger,
		registry: symtab.NewRegistry(logger, options.FS, symtab.ObjectOptions{
			Cache:   cache,
			Metrics: options.Metrics,
		}),
		demangler: options.demangler(),
	}
}

// LoadAddresses warms the object registry so every object touched by
// the batch is opened and indexed before the per-address calls.
func (r *Symbolic) LoadAddresses(addrs []uint64) {
	for _, addr := range addrs {
		if obj, _ := r.registry.FindObject(addr); obj != nil {
			_ = obj.Err()
		}
	}
}

func (r *Symbolic) Resolve(t trace.ResolvedTrace) trace.ResolvedTrace {
	obj, _ := r.registry.FindObject(t.Addr)
	if obj == nil {
		return t
	}
	t.ObjectFilename = obj.FilePath()
	if name := obj.Resolve(t.Addr); name != "" {
		t.ObjectFunction = r.demangler.Demangle(name)
	}
	if t.Source.Function == "" {
		t.Source.Function = t.ObjectFunction
	}
	return t
}

// Registry exposes the object registry to backends layered on top.
func (r *Symbolic) Registry() *symtab.Registry {
	return r.registry
}

func (r *Symbolic) Close() {
	r.registry.Close()
}
