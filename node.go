package dynakd

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// node is a subtree of the bucketed KD-tree. A leaf owns a slot array of
// stable point indices; an internal node owns a split dimension and value
// and two children. Every node tracks the axis-aligned bounding box of all
// points ever routed through it (boxes are not shrunk on removal) and the
// count of points currently below it.
type node struct {
	dims   int
	bucket int

	// bounding box over the subtree; nil until the first point arrives.
	// A NaN coordinate in any point poisons that dimension's bounds.
	minBound []float64
	maxBound []float64

	// leaf state: stable indices in insertion order. nil for internal nodes.
	slots []int

	// internal state
	splitDim   int
	splitValue float64
	left       *node
	right      *node

	size        int
	singlePoint bool
}

func newLeafNode(dims, bucket int) *node {
	return &node{
		dims:        dims,
		bucket:      bucket,
		slots:       make([]int, 0, bucket),
		singlePoint: true,
	}
}

func (n *node) isLeaf() bool { return n.left == nil }

// row returns point idx from the flat row-major array.
func (n *node) row(pts []float64, idx int) []float64 {
	return pts[idx*n.dims : (idx+1)*n.dims]
}

// addPoint routes stable index idx down to a leaf, extending bounds and
// sizes along the way, and splits the leaf if it fills up.
func (n *node) addPoint(idx int, pts []float64) {
	p := n.row(pts, idx)
	cursor := n
	for !cursor.isLeaf() {
		cursor.extendBounds(p)
		cursor.size++
		if p[cursor.splitDim] > cursor.splitValue {
			cursor = cursor.right
		} else {
			cursor = cursor.left
		}
	}
	cursor.addToLeaf(idx, pts)
}

// addToLeaf appends idx to this leaf's slot array. Must only be called on
// leaves.
func (n *node) addToLeaf(idx int, pts []float64) {
	n.extendBounds(n.row(pts, idx))
	n.size++
	n.slots = append(n.slots, idx)
	if len(n.slots) == cap(n.slots) {
		n.splitOrGrow(pts)
	}
}

// removePoint descends by oldPoint, linearly searches the destination leaf
// for idx, and removes it by shifting the slot array left. Sizes along the
// walked path are decremented; bounding boxes stay as they are. Reports
// whether idx was found.
func (n *node) removePoint(idx int, oldPoint []float64) bool {
	var path []*node
	cursor := n
	for !cursor.isLeaf() {
		path = append(path, cursor)
		if oldPoint[cursor.splitDim] > cursor.splitValue {
			cursor = cursor.right
		} else {
			cursor = cursor.left
		}
	}
	for i, s := range cursor.slots {
		if s == idx {
			copy(cursor.slots[i:], cursor.slots[i+1:])
			cursor.slots = cursor.slots[:len(cursor.slots)-1]
			cursor.size--
			for _, a := range path {
				a.size--
			}
			return true
		}
	}
	return false
}

// movePoint relocates idx after its coordinates in pts changed from oldPoint.
// It descends by the new point, extending bounds along the way. If the point
// lands in the leaf that already holds it, only that leaf's bounds grow and
// movePoint reports true. Otherwise the point is removed along its old path
// and inserted into the destination leaf, and movePoint reports false so the
// container can count the cross-leaf relocation.
func (n *node) movePoint(oldPoint []float64, idx int, pts []float64) bool {
	p := n.row(pts, idx)
	var path []*node
	cursor := n
	for !cursor.isLeaf() {
		cursor.extendBounds(p)
		path = append(path, cursor)
		if p[cursor.splitDim] > cursor.splitValue {
			cursor = cursor.right
		} else {
			cursor = cursor.left
		}
	}
	for _, s := range cursor.slots {
		if s == idx {
			cursor.extendBounds(p)
			return true
		}
	}
	n.removePoint(idx, oldPoint)
	// compensate the decrement the removal applied to shared ancestors
	for _, a := range path {
		a.size++
	}
	cursor.addToLeaf(idx, pts)
	return false
}

// clear resets the node to an empty leaf, dropping any children.
func (n *node) clear() {
	n.minBound = nil
	n.maxBound = nil
	n.slots = make([]int, 0, n.bucket)
	n.left = nil
	n.right = nil
	n.splitDim = 0
	n.splitValue = 0
	n.size = 0
	n.singlePoint = true
}

// extendBounds grows the bounding box to include p. A NaN coordinate sets
// that dimension's bounds to NaN; the dimension then never splits, but its
// width is treated as zero rather than breaking the widest-dimension scan.
func (n *node) extendBounds(p []float64) {
	if n.minBound == nil {
		n.minBound = append([]float64(nil), p...)
		n.maxBound = append([]float64(nil), p...)
		return
	}
	for i, v := range p {
		if math.IsNaN(v) {
			if !math.IsNaN(n.minBound[i]) || !math.IsNaN(n.maxBound[i]) {
				n.singlePoint = false
			}
			n.minBound[i] = math.NaN()
			n.maxBound[i] = math.NaN()
		} else if n.minBound[i] > v {
			n.minBound[i] = v
			n.singlePoint = false
		} else if n.maxBound[i] < v {
			n.maxBound[i] = v
			n.singlePoint = false
		}
	}
}

// splitOrGrow is called when the slot array fills. A leaf whose points all
// coincide cannot split and grows by one bucket instead, as does a leaf
// whose widest dimension has zero width.
func (n *node) splitOrGrow(pts []float64) {
	if n.singlePoint {
		n.growSlots()
		return
	}

	widths := make([]float64, n.dims)
	for d := range widths {
		if w := n.maxBound[d] - n.minBound[d]; !math.IsNaN(w) {
			widths[d] = w
		}
	}
	// first index wins ties, so equal-width dimensions split lowest-first
	dim := floats.MaxIdx(widths)
	if widths[dim] == 0 {
		n.growSlots()
		return
	}

	split := (n.minBound[dim] + n.maxBound[dim]) / 2
	if math.IsInf(split, 1) {
		split = math.MaxFloat64
	} else if math.IsInf(split, -1) {
		split = -math.MaxFloat64
	}
	// the midpoint can round up onto the max bound; every point would then
	// route left and the split value would equal the subtree max
	if split == n.maxBound[dim] {
		split = n.minBound[dim]
	}

	n.splitDim = dim
	n.splitValue = split
	n.left = newLeafNode(n.dims, n.bucket)
	n.right = newLeafNode(n.dims, n.bucket)

	slots := n.slots
	n.slots = nil
	for _, idx := range slots {
		if pts[idx*n.dims+dim] > split {
			n.right.addToLeaf(idx, pts)
		} else {
			n.left.addToLeaf(idx, pts)
		}
	}
}

// growSlots widens the slot array by one bucket capacity.
func (n *node) growSlots() {
	grown := make([]int, len(n.slots), cap(n.slots)+n.bucket)
	copy(grown, n.slots)
	n.slots = grown
}

// minimumBound and maximumBound return copies of the subtree's bounding
// box, or nil for a subtree that has never held a point.
func (n *node) minimumBound() []float64 {
	return append([]float64(nil), n.minBound...)
}

func (n *node) maximumBound() []float64 {
	return append([]float64(nil), n.maxBound...)
}
