package dynakd

import "errors"

// Sentinel errors returned (possibly wrapped) by tree and heap operations.
// Match with errors.Is.
var (
	// ErrDimensionMismatch indicates a point whose length differs from the
	// tree's dimensionality.
	ErrDimensionMismatch = errors.New("dynakd: point dimensionality mismatch")

	// ErrIndexOutOfRange indicates a stable index that is out of bounds or
	// refers to a removed (hole) slot.
	ErrIndexOutOfRange = errors.New("dynakd: index out of range")

	// ErrEmptyHeap indicates a read or removal on an empty heap.
	ErrEmptyHeap = errors.New("dynakd: heap is empty")

	// ErrInvalidCapacity indicates a bucket capacity below 1.
	ErrInvalidCapacity = errors.New("dynakd: invalid bucket capacity")

	// ErrInvalidDimension indicates a dimensionality below 1, or a metric
	// whose configuration does not fit the tree's dimensionality.
	ErrInvalidDimension = errors.New("dynakd: invalid dimensionality")
)
