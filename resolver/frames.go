package resolver

import (
	"strconv"
	"strings"

	"github.com/backward-go/backward/demangle"
	"github.com/backward-go/backward/trace"
)

// Frame is an object location recovered from one textual backtrace
// frame.
type Frame struct {
	Object   string
	Function string
	Offset   uint64
	Addr     uint64
}

// ParseGNUFrame parses the glibc backtrace_symbols format:
//
//	/lib/libc.so.6(__libc_start_main+0xf3) [0x7f2d1a3b4d90]
//
// The symbol and offset are optional; the parenthesized part may be
// empty for stripped objects.
func ParseGNUFrame(s string) (Frame, bool) {
	var f Frame
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "]") {
		open := strings.LastIndex(s, "[")
		if open < 0 {
			return Frame{}, false
		}
		addr, err := parseHex(strings.TrimSpace(s[open+1 : len(s)-1]))
		if err != nil {
			return Frame{}, false
		}
		f.Addr = addr
		s = strings.TrimSpace(s[:open])
	}
	if strings.HasSuffix(s, ")") {
		open := strings.LastIndex(s, "(")
		if open < 0 {
			return Frame{}, false
		}
		inner := s[open+1 : len(s)-1]
		f.Object = s[:open]
		if inner != "" {
			if plus := strings.LastIndex(inner, "+"); plus >= 0 {
				f.Function = inner[:plus]
				if off, err := parseHex(inner[plus+1:]); err == nil {
					f.Offset = off
				}
			} else {
				f.Function = inner
			}
		}
	} else {
		f.Object = s
	}
	if f.Object == "" && f.Addr == 0 {
		return Frame{}, false
	}
	return f, true
}

// ParseDarwinFrame parses the macOS backtrace_symbols format:
//
//	4   My App Binary   0x00007fff6c0e13d5 _ZN3foo3barEv + 29
//
// Fields are scanned from both ends so module names containing spaces
// survive: the frame index from the left, the offset, symbol and
// address from the right, the module being whatever is left between.
func ParseDarwinFrame(s string) (Frame, bool) {
	var f Frame
	s = strings.TrimSpace(s)

	// frame index
	sp := strings.IndexAny(s, " \t")
	if sp < 0 {
		return Frame{}, false
	}
	if _, err := strconv.Atoi(s[:sp]); err != nil {
		return Frame{}, false
	}
	s = strings.TrimSpace(s[sp:])

	// "symbol + offset" tail
	plus := strings.LastIndex(s, " + ")
	if plus < 0 {
		return Frame{}, false
	}
	off, err := strconv.ParseUint(strings.TrimSpace(s[plus+3:]), 10, 64)
	if err != nil {
		return Frame{}, false
	}
	f.Offset = off
	s = strings.TrimSpace(s[:plus])

	// symbol, then address before it
	symStart := strings.LastIndexAny(s, " \t")
	if symStart < 0 {
		return Frame{}, false
	}
	f.Function = s[symStart+1:]
	s = strings.TrimSpace(s[:symStart])

	addrStart := strings.LastIndexAny(s, " \t")
	if addrStart < 0 {
		return Frame{}, false
	}
	addr, err := parseHex(s[addrStart+1:])
	if err != nil {
		return Frame{}, false
	}
	f.Addr = addr
	f.Object = strings.TrimSpace(s[:addrStart])
	return f, true
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, 64)
}

// FrameProducer turns a batch of addresses into textual backtrace
// frames, one per address. The OS backtrace_symbols call on platforms
// that have it; injectable for tests.
type FrameProducer func(addrs []uint64) []string

// FrameParser parses one frame line. ParseGNUFrame or ParseDarwinFrame.
type FrameParser func(s string) (Frame, bool)

// BacktraceSymbols resolves object file and function from textual
// frames produced for the whole batch at once. Positional: the frame
// for a trace is picked by its index in the batch. Source locations
// stay empty.
type BacktraceSymbols struct {
	produce   FrameProducer
	parse     FrameParser
	demangler *demangle.Demangler

	addrs  []uint64
	frames []string
}

func NewBacktraceSymbols(produce FrameProducer, parse FrameParser, options Options) *BacktraceSymbols {
	return &BacktraceSymbols{
		produce:   produce,
		parse:     parse,
		demangler: options.demangler(),
	}
}

func (r *BacktraceSymbols) LoadAddresses(addrs []uint64) {
	r.addrs = addrs
	r.frames = nil
	if r.produce == nil || len(addrs) == 0 {
		return
	}
	r.frames = r.produce(addrs)
}

func (r *BacktraceSymbols) Resolve(t trace.ResolvedTrace) trace.ResolvedTrace {
	if t.Idx < 0 || t.Idx >= len(r.frames) || t.Idx >= len(r.addrs) {
		return t
	}
	if r.addrs[t.Idx] != t.Addr {
		return t
	}
	frame, ok := r.parse(r.frames[t.Idx])
	if !ok {
		return t
	}
	t.ObjectFilename = frame.Object
	if frame.Function != "" {
		t.ObjectFunction = r.demangler.Demangle(frame.Function)
		if t.Source.Function == "" {
			t.Source.Function = t.ObjectFunction
		}
	}
	return t
}
