//go:build !windows

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/backward-go/backward/demangle"
	"github.com/backward-go/backward/resolver"
	"github.com/backward-go/backward/trace"
)

var obj = flag.String("obj", "", "object file to resolve addresses in; empty means the current process mappings")
var demangleMode = flag.String("demangle", "full", "demangling mode: none|simplified|templates|full")
var noAdjust = flag.Bool("no-adjust", false, "look addresses up verbatim instead of as return addresses")
var verbose = flag.Bool("v", false, "debug logging")

func main() {
	flag.Parse()
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	if !*verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	addrs, err := parseAddrs(flag.Args())
	if err != nil {
		_ = level.Error(logger).Log("err", err)
		fmt.Fprintf(os.Stderr, "usage: addr2loc [-obj file] addr...\n")
		os.Exit(1)
	}

	options := resolver.DefaultOptions()
	options.Logger = logger
	options.AdjustReturnAddresses = !*noAdjust
	options.DemangleOptions = demangle.ConvertOptions(*demangleMode)

	var r resolver.TraceResolver
	if *obj != "" {
		r = resolver.NewFile(*obj, options)
	} else {
		r = resolver.New(options)
	}

	r.LoadAddresses(addrs)
	for i, addr := range addrs {
		printTrace(r.Resolve(trace.NewResolved(trace.New(addr, i))))
	}
}

func parseAddrs(args []string) ([]uint64, error) {
	if len(args) == 0 {
		return nil, errors.New("no addresses given")
	}
	addrs := make([]uint64, 0, len(args))
	for _, arg := range args {
		addr, err := strconv.ParseUint(strings.TrimPrefix(arg, "0x"), 16, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad address %q", arg)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func printTrace(t trace.ResolvedTrace) {
	fmt.Printf("0x%016x", t.Addr)
	if t.ObjectFilename != "" {
		fmt.Printf("  %s", t.ObjectFilename)
	}
	fmt.Println()
	fmt.Printf("    %s\n", orUnknown(t.Source.Function))
	fmt.Printf("    %s\n", location(t.Source))
	for _, inl := range t.Inliners {
		fmt.Printf("    inlined by %s at %s\n", orUnknown(inl.Function), location(inl))
	}
}

func location(loc trace.SourceLoc) string {
	if loc.Filename == "" {
		return "??:0"
	}
	s := fmt.Sprintf("%s:%d", loc.Filename, loc.Line)
	if loc.Col > 0 {
		s += fmt.Sprintf(":%d", loc.Col)
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "??"
	}
	return s
}
