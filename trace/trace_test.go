package trace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceLocEquality(t *testing.T) {
	a := SourceLoc{Filename: "a.c", Function: "f", Line: 10, Col: 3}
	b := SourceLoc{Filename: "a.c", Function: "f", Line: 10, Col: 3}
	require.Equal(t, a, b)
	require.True(t, a == b)

	b.Line = 11
	require.False(t, a == b)
}

func TestSourceLocEmpty(t *testing.T) {
	require.True(t, SourceLoc{}.Empty())
	require.False(t, SourceLoc{Line: 1}.Empty())
	require.False(t, SourceLoc{Filename: "x"}.Empty())
}

func TestNewResolved(t *testing.T) {
	rt := NewResolved(New(0xdeadbeef, 3))
	require.Equal(t, uint64(0xdeadbeef), rt.Addr)
	require.Equal(t, 3, rt.Idx)
	require.Empty(t, rt.ObjectFilename)
	require.Empty(t, rt.ObjectFunction)
	require.True(t, rt.Source.Empty())
	require.Nil(t, rt.Inliners)
}
