package resolver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/backward-go/backward/trace"
)

func TestParseGNUFrame(t *testing.T) {
	testcases := []struct {
		in       string
		ok       bool
		expected Frame
	}{
		{
			in: "/lib/x86_64-linux-gnu/libc.so.6(__libc_start_main+0xf3) [0x7f2d1a3b4d90]",
			ok: true,
			expected: Frame{
				Object:   "/lib/x86_64-linux-gnu/libc.so.6",
				Function: "__libc_start_main",
				Offset:   0xf3,
				Addr:     0x7f2d1a3b4d90,
			},
		},
		{
			in:       "./a.out(_ZN9wikipedia7article6formatEv+0x12) [0x400a2c]",
			ok:       true,
			expected: Frame{Object: "./a.out", Function: "_ZN9wikipedia7article6formatEv", Offset: 0x12, Addr: 0x400a2c},
		},
		{
			// stripped object, empty symbol part
			in:       "/usr/lib/libfoo.so() [0x7f0000001000]",
			ok:       true,
			expected: Frame{Object: "/usr/lib/libfoo.so", Addr: 0x7f0000001000},
		},
		{
			// no symbol part at all
			in:       "/usr/lib/libfoo.so [0x7f0000001000]",
			ok:       true,
			expected: Frame{Object: "/usr/lib/libfoo.so", Addr: 0x7f0000001000},
		},
		{
			// symbol without offset
			in:       "./a.out(main) [0x400a2c]",
			ok:       true,
			expected: Frame{Object: "./a.out", Function: "main", Addr: 0x400a2c},
		},
		{in: "", ok: false},
		{in: "[0xzz]", ok: false},
	}
	for _, tc := range testcases {
		t.Run(tc.in, func(t *testing.T) {
			f, ok := ParseGNUFrame(tc.in)
			require.Equal(t, tc.ok, ok)
			if ok {
				require.Equal(t, tc.expected, f)
			}
		})
	}
}

func TestParseDarwinFrame(t *testing.T) {
	testcases := []struct {
		in       string
		ok       bool
		expected Frame
	}{
		{
			in: "4   libdyld.dylib                       0x00007fff6c0e13d5 start + 1",
			ok: true,
			expected: Frame{
				Object:   "libdyld.dylib",
				Function: "start",
				Offset:   1,
				Addr:     0x7fff6c0e13d5,
			},
		},
		{
			// module name with spaces
			in: "2   My App Binary                       0x0000000102b3c480 _ZN3foo3barEv + 29",
			ok: true,
			expected: Frame{
				Object:   "My App Binary",
				Function: "_ZN3foo3barEv",
				Offset:   29,
				Addr:     0x102b3c480,
			},
		},
		{in: "not a frame", ok: false},
		{in: "7 module 0x1000 symbol", ok: false}, // no offset tail
		{in: "", ok: false},
	}
	for _, tc := range testcases {
		t.Run(tc.in, func(t *testing.T) {
			f, ok := ParseDarwinFrame(tc.in)
			require.Equal(t, tc.ok, ok)
			if ok {
				require.Equal(t, tc.expected, f)
			}
		})
	}
}

func TestBacktraceSymbolsPositional(t *testing.T) {
	addrs := []uint64{0x400a2c, 0x400b00}
	frames := []string{
		"./a.out(_ZN9wikipedia7article6formatEv+0x12) [0x400a2c]",
		"./a.out(main+0x30) [0x400b00]",
	}
	var producedFor [][]uint64
	r := NewBacktraceSymbols(func(a []uint64) []string {
		producedFor = append(producedFor, a)
		return frames
	}, ParseGNUFrame, DefaultOptions())

	r.LoadAddresses(addrs)
	require.Len(t, producedFor, 1)

	res := r.Resolve(trace.NewResolved(trace.New(addrs[0], 0)))
	require.Equal(t, "./a.out", res.ObjectFilename)
	require.Equal(t, "wikipedia::article::format()", res.ObjectFunction)
	require.Equal(t, "wikipedia::article::format()", res.Source.Function)

	res = r.Resolve(trace.NewResolved(trace.New(addrs[1], 1)))
	require.Equal(t, "main", res.ObjectFunction)

	// address not matching the loaded batch resolves to nothing
	res = r.Resolve(trace.NewResolved(trace.New(0xdead, 0)))
	require.Equal(t, trace.NewResolved(trace.New(0xdead, 0)), res)
}

func TestBacktraceSymbolsNilProducer(t *testing.T) {
	r := NewBacktraceSymbols(nil, ParseGNUFrame, DefaultOptions())
	r.LoadAddresses([]uint64{0x1000})
	res := r.Resolve(trace.NewResolved(trace.New(0x1000, 0)))
	require.Equal(t, "", res.ObjectFilename)
	require.Equal(t, "", res.ObjectFunction)
}

func TestParseHex(t *testing.T) {
	for in, expected := range map[string]uint64{
		"0x400a2c": 0x400a2c,
		"400a2c":   0x400a2c,
		"0":        0,
	} {
		v, err := parseHex(in)
		require.NoError(t, err, fmt.Sprintf("in %q", in))
		require.Equal(t, expected, v)
	}
	_, err := parseHex("zz")
	require.Error(t, err)
}
