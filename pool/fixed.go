package pool

import "sync"

type fixed struct {
	mu        sync.Mutex
	created   uint
	capacity  uint
	available chan interface{}
	newFn     func() interface{}
}

// NewFixed returns a pool that creates at most capacity runners. Once all
// of them are checked out, Get blocks until one is put back, which caps
// the number of requests executing concurrently.
func NewFixed(capacity uint, newFn func() interface{}) Pool {
	if capacity == 0 {
		panic("pool: NewFixed requires capacity > 0")
	}
	return &fixed{
		capacity:  capacity,
		available: make(chan interface{}, capacity),
		newFn:     newFn,
	}
}

func (p *fixed) Get() interface{} {
	select {
	case el := <-p.available:
		return el
	default:
	}

	p.mu.Lock()
	if p.created < p.capacity {
		p.created++
		p.mu.Unlock()
		return p.newFn()
	}
	p.mu.Unlock()

	return <-p.available
}

func (p *fixed) Put(el interface{}) {
	// The channel holds at most capacity elements; a full channel means
	// a foreign element is being returned, which is dropped.
	select {
	case p.available <- el:
	default:
	}
}
