package dynakd

// frontierEntry is a pending subtree with a lower bound on the distance from
// the search point to anything inside it.
type frontierEntry struct {
	bound float64
	node  *node
}

// frontierHeap is a min-heap of frontierEntry (smallest bound on top) used as
// the work queue of a best-first search. It lives for one query only and is
// not stable: entries with equal bounds may pop in any order.
type frontierHeap []frontierEntry

func (h frontierHeap) Len() int            { return len(h) }
func (h frontierHeap) Less(i, j int) bool  { return h[i].bound < h[j].bound }
func (h frontierHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *frontierHeap) Push(x interface{}) { *h = append(*h, x.(frontierEntry)) }
func (h *frontierHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = frontierEntry{} // avoid holding a dead subtree reference
	*h = old[:n-1]
	return item
}

// minBound returns the smallest pending lower bound. Callers must check
// Len() > 0 first.
func (h frontierHeap) minBound() float64 { return h[0].bound }
