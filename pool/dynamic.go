package pool

import "sync"

// NewDynamic returns a pool that grows and shrinks with demand. It is a
// wrapper around sync.Pool.
func NewDynamic(newFn func() interface{}) Pool {
	return &sync.Pool{New: newFn}
}
