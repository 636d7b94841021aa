// Package resolver maps process addresses captured from a call stack to
// source locations. Resolution never fails: every backend fills in the
// fields it can recover and leaves the rest empty, so a trace with only
// an object path, or nothing at all, is a valid result.
package resolver

import (
	"github.com/go-kit/log"
	ilt "github.com/ianlancetaylor/demangle"

	"github.com/backward-go/backward/demangle"
	"github.com/backward-go/backward/metrics"
	"github.com/backward-go/backward/symtab"
	"github.com/backward-go/backward/trace"
)

// TraceResolver is one symbolication backend. LoadAddresses announces
// the whole batch up front, which lets batch-oriented backends do their
// work once; Resolve then fills in a single trace. Implementations are
// not thread-safe, callers serialize.
type TraceResolver interface {
	LoadAddresses(addrs []uint64)
	Resolve(t trace.ResolvedTrace) trace.ResolvedTrace
}

type Options struct {
	Logger  log.Logger
	Metrics *metrics.Metrics

	// FS is the filesystem root, "" meaning "/". Tests point it at a
	// fake tree with its own proc/ directory.
	FS string

	// AdjustReturnAddresses makes lookups use addr-1 first. Addresses
	// collected from a stack unwind point one past the call
	// instruction, and looking up the return address verbatim can blame
	// the line after the call.
	AdjustReturnAddresses bool

	DemangleOptions []ilt.Option
	CacheOptions    symtab.CacheOptions
}

func DefaultOptions() Options {
	return Options{
		Logger:                log.NewNopLogger(),
		AdjustReturnAddresses: true,
		CacheOptions:          symtab.DefaultCacheOptions,
	}
}

func (o *Options) logger() log.Logger {
	if o.Logger == nil {
		return log.NewNopLogger()
	}
	return o.Logger
}

func (o *Options) demangler() *demangle.Demangler {
	return demangle.New(o.DemangleOptions...)
}

// Noop resolves nothing. It is the backend of last resort on platforms
// without a supported object file format.
type Noop struct{}

func (Noop) LoadAddresses([]uint64) {}

func (Noop) Resolve(t trace.ResolvedTrace) trace.ResolvedTrace { return t }

// WithMetrics counts resolution outcomes of the wrapped backend. Only
// the outermost backend is wrapped, so layered backends count once.
func WithMetrics(inner TraceResolver, m *metrics.Metrics) TraceResolver {
	if m == nil {
		return inner
	}
	return &counted{inner: inner, metrics: m}
}

type counted struct {
	inner   TraceResolver
	metrics *metrics.Metrics
}

func (c *counted) LoadAddresses(addrs []uint64) {
	c.inner.LoadAddresses(addrs)
}

func (c *counted) Resolve(t trace.ResolvedTrace) trace.ResolvedTrace {
	t = c.inner.Resolve(t)
	countOutcome(c.metrics, t)
	return t
}

func countOutcome(m *metrics.Metrics, t trace.ResolvedTrace) {
	if m == nil {
		return
	}
	switch {
	case t.Source.Filename != "" && t.Source.Function != "":
		m.ResolvedTraces.WithLabelValues("full").Inc()
	case t.ObjectFunction != "" || t.Source.Function != "":
		m.ResolvedTraces.WithLabelValues("symbol_only").Inc()
	case t.ObjectFilename != "":
		m.ResolvedTraces.WithLabelValues("object_only").Inc()
	default:
		m.ResolvedTraces.WithLabelValues("unknown").Inc()
	}
}
