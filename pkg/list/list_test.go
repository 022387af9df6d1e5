package list

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	t.Run("PushTail", testPushTail)
	t.Run("PopHead", testPopHead)
	t.Run("PopSelf", testPopSelf)
	t.Run("Find", testFind)
}

func collect(l *List[int]) []int {
	out := make([]int, 0)
	l.Map(func(link *Link[int]) {
		out = append(out, link.GetKey())
	})
	return out
}

func testPushTail(t *testing.T) {
	l := NewList[int]()
	require.Empty(t, collect(l))
	l.PushTail(1)
	l.PushTail(2)
	l.PushTail(3)
	require.Equal(t, []int{1, 2, 3}, collect(l))
	require.Equal(t, 3, l.Len())
}

func testPopHead(t *testing.T) {
	l := NewList[int]()
	_, ok := l.PopHead()
	require.False(t, ok)
	l.PushTail(7)
	l.PushTail(8)
	v, ok := l.PopHead()
	require.True(t, ok)
	require.Equal(t, 7, v)
	v, ok = l.PopHead()
	require.True(t, ok)
	require.Equal(t, 8, v)
	require.Equal(t, 0, l.Len())
	// The list is reusable once drained.
	l.PushTail(9)
	require.Equal(t, []int{9}, collect(l))
}

func testPopSelf(t *testing.T) {
	l := NewList[int]()
	a := l.PushTail(1)
	b := l.PushTail(2)
	c := l.PushTail(3)
	b.PopSelf()
	require.Equal(t, []int{1, 3}, collect(l))
	c.PopSelf()
	require.Equal(t, []int{1}, collect(l))
	a.PopSelf()
	require.Empty(t, collect(l))
	require.Equal(t, 0, l.Len())
	// A detached link is a no-op.
	c.PopSelf()
	require.Equal(t, 0, l.Len())
	l.PushTail(4)
	require.Equal(t, []int{4}, collect(l))
}

func testFind(t *testing.T) {
	l := NewList[int]()
	for i := 0; i < 5; i++ {
		l.PushTail(i)
	}
	found := l.Find(func(link *Link[int]) bool { return link.GetKey() == 3 })
	require.NotNil(t, found)
	require.Equal(t, 3, found.GetKey())
	require.Nil(t, l.Find(func(link *Link[int]) bool { return link.GetKey() == 10 }))
	found.PopSelf()
	require.Equal(t, []int{0, 1, 2, 4}, collect(l))
}
