//go:build linux

package resolver

// New returns the richest resolver the platform supports: ELF objects
// with DWARF line and inline info, pclntab fallback for Go binaries,
// export symbols for everything else.
func New(options Options) TraceResolver {
	return WithMetrics(NewDwarf(options), options.Metrics)
}
