package queue

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(i))
	}
	require.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	require.Zero(t, q.Len())
}

func TestPushAll(t *testing.T) {
	q := New[string]()
	require.NoError(t, q.PushAll([]string{"a", "b"}))
	require.NoError(t, q.Push("c"))
	require.Equal(t, []string{"a", "b", "c"}, q.Drain())
}

func TestDrain(t *testing.T) {
	q := New[int]()
	require.Nil(t, q.Drain())

	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	require.Equal(t, []int{1, 2}, q.Drain())
	require.Nil(t, q.Drain())
	require.Zero(t, q.Len())
}

func TestClose(t *testing.T) {
	q := New[int]()
	require.NoError(t, q.Push(7))
	q.Close()
	q.Close()
	require.True(t, q.Closed())

	require.ErrorIs(t, q.Push(8), ErrClosed)
	require.ErrorIs(t, q.PushAll([]int{9}), ErrClosed)

	v, ok := q.Pop()
	require.True(t, ok, "items queued before Close stay available")
	require.Equal(t, 7, v)

	_, ok = q.Pop()
	require.False(t, ok)
}

func TestCloseWakesConsumers(t *testing.T) {
	q := New[int]()

	var wg conc.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Go(func() {
			_, ok := q.Pop()
			assert.False(t, ok)
		})
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()
	wg.Wait()
}

func TestConcurrentProducersConsumers(t *testing.T) {
	const producers, perProducer, consumers = 8, 250, 4
	q := New[int]()

	var (
		mu   sync.Mutex
		seen []int
	)
	var consumerGroup conc.WaitGroup
	for i := 0; i < consumers; i++ {
		consumerGroup.Go(func() {
			for {
				v, ok := q.Pop()
				if !ok {
					return
				}
				mu.Lock()
				seen = append(seen, v)
				mu.Unlock()
			}
		})
	}

	var producerGroup conc.WaitGroup
	for p := 0; p < producers; p++ {
		base := p * perProducer
		producerGroup.Go(func() {
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.Push(base+i))
			}
		})
	}
	producerGroup.Wait()
	q.Close()
	consumerGroup.Wait()

	require.Len(t, seen, producers*perProducer)
	sort.Ints(seen)
	for i, v := range seen {
		require.Equal(t, i, v)
	}
}
