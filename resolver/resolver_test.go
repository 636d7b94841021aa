//go:build !windows

package resolver

import (
	"os"
	"path"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/backward-go/backward/metrics"
	"github.com/backward-go/backward/trace"
)

const testMaps = `00400000-00452000 r-xp 00000000 08:02 173521      /usr/bin/dbus-daemon
7fffb2d48000-7fffb2d49000 r-xp 00000000 00:00 0    [vdso]
`

func fakeProcRoot(t *testing.T, maps string) string {
	t.Helper()
	root := t.TempDir()
	pidDir := path.Join(root, "proc", "239")
	require.NoError(t, os.MkdirAll(pidDir, 0o755))
	require.NoError(t, os.WriteFile(path.Join(pidDir, "maps"), []byte(maps), 0o644))
	require.NoError(t, os.Symlink("239", path.Join(root, "proc", "self")))
	return root
}

func TestSymbolicPartialResult(t *testing.T) {
	options := DefaultOptions()
	options.FS = fakeProcRoot(t, testMaps)
	r := NewSymbolic(options)
	defer r.Close()

	r.LoadAddresses([]uint64{0x00400500})

	// the object cannot be opened under the fake root, but the module
	// path is still known
	res := r.Resolve(trace.NewResolved(trace.New(0x00400500, 0)))
	require.Equal(t, "/usr/bin/dbus-daemon", res.ObjectFilename)
	require.Equal(t, "", res.ObjectFunction)
	require.True(t, res.Source.Empty())

	// unmapped address resolves to nothing, not an error
	res = r.Resolve(trace.NewResolved(trace.New(0xdead0000, 1)))
	require.Equal(t, "", res.ObjectFilename)
}

type fixedResolver struct {
	out trace.ResolvedTrace
}

func (f *fixedResolver) LoadAddresses([]uint64) {}

func (f *fixedResolver) Resolve(t trace.ResolvedTrace) trace.ResolvedTrace {
	out := f.out
	out.Trace = t.Trace
	return out
}

func TestWithMetricsOutcomes(t *testing.T) {
	testcases := []struct {
		name    string
		out     trace.ResolvedTrace
		outcome string
	}{
		{
			name: "full",
			out: trace.ResolvedTrace{
				ObjectFilename: "/bin/a",
				ObjectFunction: "f",
				Source:         trace.SourceLoc{Filename: "a.cpp", Function: "f", Line: 1},
			},
			outcome: "full",
		},
		{
			name:    "symbol_only",
			out:     trace.ResolvedTrace{ObjectFilename: "/bin/a", ObjectFunction: "f"},
			outcome: "symbol_only",
		},
		{
			name:    "object_only",
			out:     trace.ResolvedTrace{ObjectFilename: "/bin/a"},
			outcome: "object_only",
		},
		{
			name:    "unknown",
			out:     trace.ResolvedTrace{},
			outcome: "unknown",
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			m := metrics.New(nil)
			r := WithMetrics(&fixedResolver{out: tc.out}, m)
			r.Resolve(trace.NewResolved(trace.New(0x1000, 0)))
			require.Equal(t, float64(1),
				testutil.ToFloat64(m.ResolvedTraces.WithLabelValues(tc.outcome)))
		})
	}
}

func TestWithMetricsNilPassthrough(t *testing.T) {
	inner := &fixedResolver{}
	require.Same(t, TraceResolver(inner), WithMetrics(inner, nil))
}
