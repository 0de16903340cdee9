package dynakd

import (
	"fmt"
	"iter"
	"sort"
)

// Tree is a dynamic KD-tree over points of a fixed dimensionality, each
// carrying a payload of type P. Payloads are compared with == by the
// lookup-by-payload operations (Remove, Move, Point).
//
// Every point gets a stable integer index on insertion. Indices never shift;
// a removed slot becomes a hole that the next insertion may refill. Points
// and payloads live in two flat parallel arrays, so nodes reference points
// by index only.
//
// The tree is not safe for concurrent mutation. See the package docs.
type Tree[P comparable] struct {
	dims   int
	bucket int
	root   *node

	points   []float64 // flat row-major, dims values per slot
	payloads []P
	holes    []int // vacated slots, ascending; highest is reused first

	removals int
}

// New returns an empty tree over dims-dimensional points with the given
// leaf bucket capacity.
func New[P comparable](dims, bucketCapacity int) (*Tree[P], error) {
	if dims < 1 {
		return nil, fmt.Errorf("%w: dimensionality must be >= 1, got %d", ErrInvalidDimension, dims)
	}
	if bucketCapacity < 1 {
		return nil, fmt.Errorf("%w: bucket capacity must be >= 1, got %d", ErrInvalidCapacity, bucketCapacity)
	}
	return &Tree[P]{
		dims:   dims,
		bucket: bucketCapacity,
		root:   newLeafNode(dims, bucketCapacity),
	}, nil
}

// Dims returns the tree's dimensionality.
func (t *Tree[P]) Dims() int { return t.dims }

// Len returns the number of live points.
func (t *Tree[P]) Len() int { return len(t.payloads) - len(t.holes) }

// RemovalCount returns how many removals and cross-leaf moves have happened
// since the last Regen. Stale bounding boxes accumulate at the same rate,
// so this is the natural input to a rebuild heuristic.
func (t *Tree[P]) RemovalCount() int { return t.removals }

// Add copies point into the tree and associates it with payload, assigning
// the payload a stable index. The highest-numbered hole is reused if one
// exists.
func (t *Tree[P]) Add(point []float64, payload P) error {
	if len(point) != t.dims {
		return fmt.Errorf("%w: point has %d dimensions, want %d", ErrDimensionMismatch, len(point), t.dims)
	}
	var idx int
	if len(t.holes) > 0 {
		idx = t.holes[len(t.holes)-1]
		t.holes = t.holes[:len(t.holes)-1]
		copy(t.points[idx*t.dims:(idx+1)*t.dims], point)
		t.payloads[idx] = payload
	} else {
		idx = len(t.payloads)
		t.points = append(t.points, point...)
		t.payloads = append(t.payloads, payload)
	}
	t.root.addPoint(idx, t.points)
	return nil
}

// Remove removes the first live point whose payload equals payload and
// reports whether one was found.
func (t *Tree[P]) Remove(payload P) bool {
	idx, ok := t.indexOf(payload)
	if !ok {
		return false
	}
	t.removeAt(idx)
	return true
}

// RemoveAt removes the point at the given stable index.
func (t *Tree[P]) RemoveAt(index int) error {
	if err := t.checkIndex(index); err != nil {
		return err
	}
	t.removeAt(index)
	return nil
}

// Move overwrites the coordinates of the point whose payload equals payload
// and relocates it inside the tree, re-using its stable index. It reports
// whether the payload was found. A relocation that crosses leaves counts
// toward RemovalCount.
func (t *Tree[P]) Move(point []float64, payload P) (bool, error) {
	if len(point) != t.dims {
		return false, fmt.Errorf("%w: point has %d dimensions, want %d", ErrDimensionMismatch, len(point), t.dims)
	}
	idx, ok := t.indexOf(payload)
	if !ok {
		return false, nil
	}
	old := append([]float64(nil), t.row(idx)...)
	copy(t.points[idx*t.dims:(idx+1)*t.dims], point)
	if !t.root.movePoint(old, idx, t.points) {
		t.removals++
	}
	return true, nil
}

// Point returns a copy of the coordinates of the first live point whose
// payload equals payload.
func (t *Tree[P]) Point(payload P) ([]float64, bool) {
	idx, ok := t.indexOf(payload)
	if !ok {
		return nil, false
	}
	return append([]float64(nil), t.row(idx)...), true
}

// PointAt returns a copy of the coordinates at the given stable index.
func (t *Tree[P]) PointAt(index int) ([]float64, error) {
	if err := t.checkIndex(index); err != nil {
		return nil, err
	}
	return append([]float64(nil), t.row(index)...), nil
}

// PayloadAt returns the payload at the given stable index.
func (t *Tree[P]) PayloadAt(index int) (P, error) {
	if err := t.checkIndex(index); err != nil {
		var zero P
		return zero, err
	}
	return t.payloads[index], nil
}

// All iterates over live (index, payload) pairs in ascending index order.
func (t *Tree[P]) All() iter.Seq2[int, P] {
	return func(yield func(int, P) bool) {
		for i := range t.payloads {
			if t.isHole(i) {
				continue
			}
			if !yield(i, t.payloads[i]) {
				return
			}
		}
	}
}

// Regen rebuilds the tree from its live points and resets RemovalCount.
// Stable indices are preserved. This is the remedy for the imbalance and
// stale bounding boxes left behind by removals and cross-leaf moves.
func (t *Tree[P]) Regen() {
	t.root.clear()
	t.removals = 0
	for i := range t.payloads {
		if t.isHole(i) {
			continue
		}
		t.root.addPoint(i, t.points)
	}
}

// NearestNeighbors returns an iterator over the k points nearest to point
// under cfg's metric, closest first. See SearchConfig for bounding the
// search by a maximum distance or swapping the metric.
func (t *Tree[P]) NearestNeighbors(point []float64, k int, cfg SearchConfig) (*Iterator[P], error) {
	if len(point) != t.dims {
		return nil, fmt.Errorf("%w: search point has %d dimensions, want %d", ErrDimensionMismatch, len(point), t.dims)
	}
	metric := cfg.Metric
	if metric == nil {
		metric = SquaredEuclideanMetric{}
	}
	if d, ok := metric.(dimensioned); ok {
		if err := d.checkDims(t.dims); err != nil {
			return nil, err
		}
	}
	return newIterator(t, point, k, cfg.MaxDistance, metric), nil
}

// row returns the point stored at slot idx. The slice aliases the tree's
// backing array.
func (t *Tree[P]) row(idx int) []float64 {
	return t.points[idx*t.dims : (idx+1)*t.dims]
}

func (t *Tree[P]) isHole(idx int) bool {
	i := sort.SearchInts(t.holes, idx)
	return i < len(t.holes) && t.holes[i] == idx
}

func (t *Tree[P]) checkIndex(index int) error {
	if index < 0 || index >= len(t.payloads) {
		return fmt.Errorf("%w: index %d outside [0, %d)", ErrIndexOutOfRange, index, len(t.payloads))
	}
	if t.isHole(index) {
		return fmt.Errorf("%w: index %d was removed", ErrIndexOutOfRange, index)
	}
	return nil
}

// indexOf finds the first live slot holding payload.
func (t *Tree[P]) indexOf(payload P) (int, bool) {
	for i := range t.payloads {
		if t.isHole(i) {
			continue
		}
		if t.payloads[i] == payload {
			return i, true
		}
	}
	return 0, false
}

// removeAt removes a validated live index, clearing its slots and either
// contracting the used range or registering a hole.
func (t *Tree[P]) removeAt(idx int) {
	t.root.removePoint(idx, t.row(idx))
	t.removals++

	var zero P
	t.payloads[idx] = zero
	clear(t.points[idx*t.dims : (idx+1)*t.dims])

	if idx == len(t.payloads)-1 {
		t.contract(idx)
		return
	}
	i := sort.SearchInts(t.holes, idx)
	t.holes = append(t.holes, 0)
	copy(t.holes[i+1:], t.holes[i:])
	t.holes[i] = idx
}

// contract drops the trailing slot at idx plus any run of holes directly
// below it.
func (t *Tree[P]) contract(idx int) {
	t.payloads = t.payloads[:idx]
	t.points = t.points[:idx*t.dims]
	for len(t.holes) > 0 && t.holes[len(t.holes)-1] == len(t.payloads)-1 {
		t.holes = t.holes[:len(t.holes)-1]
		t.payloads = t.payloads[:len(t.payloads)-1]
		t.points = t.points[:len(t.points)-t.dims]
	}
}
