// Package idpool recycles small integer keys: it hands out the smallest
// currently-unused key on Acquire, and makes a released key available for
// reuse again rather than growing forever. The server package uses this to
// assign each connected client a compact UserKey instead of an
// ever-growing counter. Grounded on shared/src/types/id_pool.rs.
package idpool

import "container/heap"

// Key is a recyclable small integer identifier.
type Key uint32

// Pool allocates the smallest available Key and recycles released ones.
type Pool struct {
	free minKeyHeap
	next Key
}

// New returns an empty pool; the first Acquire returns key 0.
func New() *Pool {
	return &Pool{}
}

// Acquire returns the smallest key not currently in use.
func (p *Pool) Acquire() Key {
	if len(p.free) > 0 {
		return heap.Pop(&p.free).(Key)
	}
	k := p.next
	p.next++
	return k
}

// Release returns k to the pool, making it available to a future Acquire.
func (p *Pool) Release(k Key) {
	heap.Push(&p.free, k)
}

// InUse reports how many keys are currently allocated (acquired but not
// released).
func (p *Pool) InUse() int {
	return int(p.next) - len(p.free)
}

type minKeyHeap []Key

func (h minKeyHeap) Len() int            { return len(h) }
func (h minKeyHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h minKeyHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minKeyHeap) Push(x interface{}) { *h = append(*h, x.(Key)) }
func (h *minKeyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
