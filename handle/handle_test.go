package handle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloseFiresOnce(t *testing.T) {
	released := 0
	h := New(42, func(int) { released++ })
	require.False(t, h.IsEmpty())
	h.Close()
	h.Close()
	require.Equal(t, 1, released)
	require.True(t, h.IsEmpty())
}

func TestZeroValueIsEmpty(t *testing.T) {
	released := 0
	h := New(0, func(int) { released++ })
	require.True(t, h.IsEmpty())
	h.Close()
	require.Equal(t, 0, released)
}

func TestRelease(t *testing.T) {
	released := 0
	h := New(7, func(int) { released++ })
	v := h.Release()
	require.Equal(t, 7, v)
	h.Close()
	require.Equal(t, 0, released)
}

func TestReset(t *testing.T) {
	var freed []int
	h := New(1, func(v int) { freed = append(freed, v) })
	h.Reset(2)
	require.Equal(t, []int{1}, freed)
	require.Equal(t, 2, h.Get())
	h.Close()
	require.Equal(t, []int{1, 2}, freed)
}

func TestMoveTo(t *testing.T) {
	released := map[int]int{}
	h := New(1, func(v int) { released[v]++ })
	dst := Empty[int]()
	h.MoveTo(dst)
	require.True(t, h.IsEmpty())
	require.False(t, dst.IsEmpty())
	require.Equal(t, 1, dst.Get())

	// closing the moved-from handle must not fire the release action
	h.Close()
	require.Empty(t, released)

	dst.Close()
	require.Equal(t, map[int]int{1: 1}, released)
}

func TestMoveToReleasesDestination(t *testing.T) {
	var freed []int
	release := func(v int) { freed = append(freed, v) }
	a := New(1, release)
	b := New(2, release)
	a.MoveTo(b)
	require.Equal(t, []int{2}, freed)
	b.Close()
	require.Equal(t, []int{2, 1}, freed)
}
