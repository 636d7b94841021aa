//go:build darwin

package resolver

// New returns the textual-frame resolver. Without an OS frame producer
// wired in (there is no backtrace_symbols without cgo) it resolves
// nothing, but callers that capture frame strings themselves can feed
// them through NewBacktraceSymbols directly.
func New(options Options) TraceResolver {
	return WithMetrics(NewBacktraceSymbols(nil, ParseDarwinFrame, options), options.Metrics)
}
