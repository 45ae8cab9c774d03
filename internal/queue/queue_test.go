package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPutTakeFIFOOrder(t *testing.T) {
	q := New[int](4)
	q.Put(1)
	q.Put(2)
	q.Put(3)

	ctx := context.Background()
	for _, want := range []int{1, 2, 3} {
		got, ok := q.Take(ctx)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
}

func TestOfferRejectsWhenFull(t *testing.T) {
	q := New[int](2)
	require.True(t, q.Offer(1))
	require.True(t, q.Offer(2))
	require.False(t, q.Offer(3))
	require.Equal(t, 2, q.Len())
}

func TestTakeBlocksUntilPut(t *testing.T) {
	q := New[string](1)
	ctx := context.Background()

	done := make(chan string, 1)
	go func() {
		v, ok := q.Take(ctx)
		if ok {
			done <- v
		} else {
			done <- "<timeout>"
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Put("hello")

	select {
	case got := <-done:
		require.Equal(t, "hello", got)
	case <-time.After(time.Second):
		t.Fatal("Take did not return after Put")
	}
}

func TestTakeReturnsOnContextCancel(t *testing.T) {
	q := New[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := q.Take(ctx)
	require.False(t, ok)
}

func TestPopFrontEvictsOldest(t *testing.T) {
	q := New[int](2)
	q.Put(1)
	q.Put(2)

	evicted, ok := q.PopFront()
	require.True(t, ok)
	require.Equal(t, 1, evicted)
	require.True(t, q.Offer(3))

	ctx := context.Background()
	v1, _ := q.Take(ctx)
	v2, _ := q.Take(ctx)
	require.Equal(t, []int{2, 3}, []int{v1, v2})
}

func TestDrainMatchFindsAndRemovesOnlyMatch(t *testing.T) {
	type entry struct {
		seq int
		src uint16
	}
	q := New[entry](5)
	q.Put(entry{seq: 1, src: 0xAAAA})
	q.Put(entry{seq: 2, src: 0xBBBB})
	q.Put(entry{seq: 3, src: 0xAAAA})

	found, ok := q.DrainMatch(func(e entry) bool {
		return e.seq == 2 && e.src == 0xBBBB
	})
	require.True(t, ok)
	require.Equal(t, 2, found.seq)
	require.Equal(t, 2, q.Len())

	_, ok = q.DrainMatch(func(e entry) bool { return e.seq == 2 })
	require.False(t, ok)

	remaining := []entry{}
	for {
		e, ok := q.PopFront()
		if !ok {
			break
		}
		remaining = append(remaining, e)
	}
	require.Equal(t, []entry{{1, 0xAAAA}, {3, 0xAAAA}}, remaining)
}

func TestDrainMatchNoMatchLeavesQueueIntact(t *testing.T) {
	q := New[int](3)
	q.Put(10)
	q.Put(20)

	_, ok := q.DrainMatch(func(v int) bool { return v == 99 })
	require.False(t, ok)
	require.Equal(t, 2, q.Len())
}
