// Package dynakd implements a dynamic bucketed KD-tree for k-nearest-neighbor
// queries over moving points.
//
// Unlike a static KD-tree built once over a fixed dataset, this tree supports
// insertion, removal, and in-place movement of points. Each payload keeps a
// stable integer index for its lifetime in the tree, so points can be moved
// cheaply without re-insertion when they stay within their leaf bucket.
//
// Basic usage:
//
//	tree, err := dynakd.New[string](3, 24)
//	tree.Add([]float64{1, 2, 3}, "a")
//	tree.Add([]float64{4, 5, 6}, "b")
//
//	it, err := tree.NearestNeighbors([]float64{0, 0, 0}, 10, dynakd.DefaultSearchConfig())
//	for payload, ok := it.Next(); ok; payload, ok = it.Next() {
//		// payloads arrive in non-decreasing distance order;
//		// it.Distance() is the distance of the last emitted payload
//	}
//
// # Distance metrics
//
// Queries run under a pluggable [DistanceMetric]. The built-in metrics are
// the squared-Euclidean family: [SquaredEuclideanMetric] (the default),
// [WeightedSquaredEuclideanMetric], and the translated variants
// [TranslatedSquaredEuclideanMetric] and
// [WeightedTranslatedSquaredEuclideanMetric], which predict each point's
// position from a stored velocity and start time before measuring. Search
// results are exact under the supplied metric whenever its DistanceToBox is
// a true lower bound, as it is for the non-translated metrics; see
// [TranslatedSquaredEuclideanMetric] for when the translated box bound is not.
//
// # Rebuilding
//
// Removing a point or moving it across leaves never shrinks bounding boxes,
// so heavy churn degrades pruning and accumulates imbalance. [Tree.Regen]
// rebuilds the tree from the live points; [Tree.RemovalCount] counts
// removals and cross-leaf moves so callers can pick their own rebuild
// trigger. Rebuilding once the count exceeds roughly twice the live point
// count works well in practice.
//
// The tree is single-owner: no operation is safe to call concurrently with
// a mutation. Concurrent read-only searches against an unchanging tree are
// fine; see [NearestNeighborsBatch].
package dynakd
