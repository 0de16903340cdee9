package dynakd

import "container/heap"

// SearchConfig controls a nearest-neighbor query.
// Start with DefaultSearchConfig and override the fields you need.
type SearchConfig struct {
	// MaxDistance bounds the results: only points whose distance under the
	// metric is <= MaxDistance are emitted. Negative means unbounded.
	// Default: -1.
	MaxDistance float64

	// Metric is the distance function for this query. nil selects
	// SquaredEuclideanMetric. Default: nil.
	Metric DistanceMetric
}

// DefaultSearchConfig returns a SearchConfig for an unbounded query under
// the default metric.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{MaxDistance: -1}
}

// Iterator emits the results of a nearest-neighbor query one payload at a
// time in non-decreasing distance order. It searches best-first: subtrees
// are expanded lazily, so asking for few results out of a large k-NN query
// touches only the nodes it must.
//
// An Iterator borrows the tree it came from. Mutating the tree while an
// Iterator is live invalidates it.
type Iterator[P comparable] struct {
	tree      *Tree[P]
	metric    DistanceMetric
	point     []float64
	k         int
	threshold float64

	pending   frontierHeap
	evaluated *IntervalHeap[int]
	remaining int
	lastDist  float64
}

func newIterator[P comparable](t *Tree[P], point []float64, k int, threshold float64, metric DistanceMetric) *Iterator[P] {
	it := &Iterator[P]{
		tree:      t,
		metric:    metric,
		point:     append([]float64(nil), point...),
		k:         k,
		threshold: threshold,
		evaluated: NewIntervalHeap[int](min(k, t.root.size) + 1),
	}
	it.Reset()
	return it
}

// Next returns the next-nearest payload. ok is false once the query is
// exhausted: after min(k, live points) results, or earlier when a maximum
// distance cuts the result set short.
func (it *Iterator[P]) Next() (payload P, ok bool) {
	var zero P
	if it.remaining <= 0 {
		return zero, false
	}
	// expand pending subtrees until the nearest evaluated point provably
	// beats every unexpanded one
	for len(it.pending) > 0 && (it.evaluated.Len() == 0 || it.pending.minBound() < it.evaluated.minKey()) {
		it.expand()
	}
	if it.evaluated.Len() == 0 {
		it.remaining = 0
		return zero, false
	}
	it.lastDist = it.evaluated.minKey()
	idx, _ := it.evaluated.PopMin()
	it.remaining--
	return it.tree.payloads[idx], true
}

// Distance returns the distance of the payload most recently emitted by
// Next, under the query's metric.
func (it *Iterator[P]) Distance() float64 { return it.lastDist }

// Reset rewinds the iterator to its initial state. The search point copy
// and metric are retained; only the heaps are rebuilt.
func (it *Iterator[P]) Reset() {
	it.pending = it.pending[:0]
	heap.Push(&it.pending, frontierEntry{bound: 0, node: it.tree.root})
	it.evaluated.Reset()
	it.remaining = min(it.k, it.tree.root.size)
	it.lastDist = 0
}

// expand pops the nearest pending subtree, descends to its closest leaf
// while enqueueing the far side of every split, and evaluates the leaf's
// points against the current best k.
func (it *Iterator[P]) expand() {
	cursor := heap.Pop(&it.pending).(frontierEntry).node
	for !cursor.isLeaf() {
		var nearer, further *node
		if it.point[cursor.splitDim] > cursor.splitValue {
			nearer, further = cursor.right, cursor.left
		} else {
			nearer, further = cursor.left, cursor.right
		}
		bound := it.metric.DistanceToBox(it.point, further.minBound, further.maxBound)
		if it.threshold < 0 || bound <= it.threshold {
			if it.evaluated.Len() < it.remaining || bound <= it.evaluated.maxKey() {
				heap.Push(&it.pending, frontierEntry{bound: bound, node: further})
			}
		}
		cursor = nearer
	}

	if cursor.singlePoint {
		it.evaluateCoincident(cursor)
		return
	}
	for _, idx := range cursor.slots {
		d := it.metric.Distance(it.point, it.tree.row(idx))
		if it.threshold >= 0 && d > it.threshold {
			continue
		}
		if it.evaluated.Len() < it.remaining {
			it.evaluated.Push(d, idx)
		} else if d < it.evaluated.maxKey() {
			it.evaluated.ReplaceMax(d, idx)
		}
	}
}

// evaluateCoincident handles a leaf whose points all share one location:
// the distance is computed once and every slot admitted with it.
func (it *Iterator[P]) evaluateCoincident(leaf *node) {
	if len(leaf.slots) == 0 {
		return
	}
	d := it.metric.Distance(it.point, it.tree.row(leaf.slots[0]))
	if it.threshold >= 0 && d > it.threshold {
		return
	}
	if it.evaluated.Len() >= it.remaining && d > it.evaluated.maxKey() {
		return
	}
	for _, idx := range leaf.slots {
		if it.evaluated.Len() < it.remaining {
			it.evaluated.Push(d, idx)
		} else {
			it.evaluated.ReplaceMax(d, idx)
		}
	}
}
