package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type runner struct{ id int32 }

func TestFixedPool_CreatesAtMostCapacity(t *testing.T) {
	var created int32
	p := NewFixed(3, func() interface{} {
		return &runner{id: atomic.AddInt32(&created, 1)}
	})

	out := make([]interface{}, 0, 3)
	for i := 0; i < 3; i++ {
		out = append(out, p.Get())
	}
	require.EqualValues(t, 3, atomic.LoadInt32(&created))

	// All runners are out: the next Get must block until a Put.
	got := make(chan interface{}, 1)
	go func() { got <- p.Get() }()

	select {
	case <-got:
		t.Fatal("Get returned while all runners were checked out")
	case <-time.After(50 * time.Millisecond):
	}

	p.Put(out[0])
	select {
	case el := <-got:
		require.Same(t, out[0], el)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake after Put")
	}

	require.EqualValues(t, 3, atomic.LoadInt32(&created), "no runner created past capacity")
}

func TestFixedPool_ReusesReturnedRunners(t *testing.T) {
	var created int32
	p := NewFixed(1, func() interface{} {
		return &runner{id: atomic.AddInt32(&created, 1)}
	})

	first := p.Get()
	p.Put(first)
	second := p.Get()

	require.Same(t, first, second)
	require.EqualValues(t, 1, atomic.LoadInt32(&created))
}

func TestFixedPool_ConcurrentGetPut(t *testing.T) {
	var created int32
	p := NewFixed(4, func() interface{} {
		return &runner{id: atomic.AddInt32(&created, 1)}
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				el := p.Get()
				p.Put(el)
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, atomic.LoadInt32(&created), int32(4))
}

func TestNewFixed_ZeroCapacityPanics(t *testing.T) {
	require.Panics(t, func() { NewFixed(0, func() interface{} { return nil }) })
}

func TestDynamicPool_GetPut(t *testing.T) {
	p := NewDynamic(func() interface{} { return &runner{} })

	el := p.Get()
	require.NotNil(t, el)
	p.Put(el)
}
