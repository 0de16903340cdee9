package dynakd

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// DistanceMetric measures the distance between two points and the lower
// bound from a point to an axis-aligned bounding box.
//
// DistanceToBox must never exceed the distance from p to any point inside
// [min, max]; best-first search relies on it as the pruning bound. A metric
// that violates this can drop true nearest neighbors.
type DistanceMetric interface {
	Distance(a, b []float64) float64
	DistanceToBox(p, min, max []float64) float64
}

// dimensioned metrics constrain the tree dimensionality they can serve.
// The tree checks this when a query is constructed.
type dimensioned interface {
	checkDims(dims int) error
}

// SquaredEuclideanMetric is the default metric: the sum of squared
// per-dimension differences. Skipping the square root preserves ordering
// and keeps the hot path cheap.
type SquaredEuclideanMetric struct{}

func (SquaredEuclideanMetric) Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func (SquaredEuclideanMetric) DistanceToBox(p, min, max []float64) float64 {
	var sum float64
	for i := range p {
		if d := min[i] - p[i]; d > 0 {
			sum += d * d
		} else if d := p[i] - max[i]; d > 0 {
			sum += d * d
		}
	}
	return sum
}

// WeightedSquaredEuclideanMetric scales each per-dimension difference by a
// weight before squaring. Weights must be non-negative and have one entry
// per tree dimension.
type WeightedSquaredEuclideanMetric struct {
	Weights []float64
}

func (m WeightedSquaredEuclideanMetric) Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := (a[i] - b[i]) * m.Weights[i]
		sum += d * d
	}
	return sum
}

func (m WeightedSquaredEuclideanMetric) DistanceToBox(p, min, max []float64) float64 {
	var sum float64
	for i := range p {
		var d float64
		if p[i] < min[i] {
			d = (min[i] - p[i]) * m.Weights[i]
		} else if p[i] > max[i] {
			d = (p[i] - max[i]) * m.Weights[i]
		}
		sum += d * d
	}
	return sum
}

func (m WeightedSquaredEuclideanMetric) checkDims(dims int) error {
	if len(m.Weights) != dims {
		return fmt.Errorf("%w: weight vector has %d entries, want %d", ErrInvalidDimension, len(m.Weights), dims)
	}
	return nil
}

// TranslatedSquaredEuclideanMetric measures squared Euclidean distance
// between predicted positions. A point of a 2k+1-dimensional tree is laid
// out as [pos(k), vel(k), t0]; its predicted position at query time T is
// pos + vel*(T - t0).
//
// Clock supplies the query time. It is called exactly once per Distance or
// DistanceToBox invocation and never at construction, so a fixed-time Clock
// yields deterministic results. Clock must be monotone within one query for
// the pruning bound to hold; if queries may run concurrently (see
// NearestNeighborsBatch), Clock must also be safe for concurrent use.
//
// DistanceToBox predicts each box corner using the corner's own t0 slot
// before taking per-axis excess. A box corner combines coordinates of
// different points, so this is a true lower bound only when the points in
// the box share one velocity and t0. Otherwise the predicted corners can
// exclude a point's predicted position, the bound can exceed that point's
// distance, and search can prune away true nearest neighbors.
type TranslatedSquaredEuclideanMetric struct {
	Clock func() float64
}

func (m TranslatedSquaredEuclideanMetric) Distance(a, b []float64) float64 {
	now := m.Clock()
	k := (len(a) - 1) / 2
	ta, tb := a[2*k], b[2*k]
	var sum float64
	for i := 0; i < k; i++ {
		pa := a[i] + a[k+i]*(now-ta)
		pb := b[i] + b[k+i]*(now-tb)
		d := pa - pb
		sum += d * d
	}
	return sum
}

func (m TranslatedSquaredEuclideanMetric) DistanceToBox(p, min, max []float64) float64 {
	now := m.Clock()
	k := (len(p) - 1) / 2
	tp, tmin, tmax := p[2*k], min[2*k], max[2*k]
	var sum float64
	for i := 0; i < k; i++ {
		pp := p[i] + p[k+i]*(now-tp)
		lo := min[i] + min[k+i]*(now-tmin)
		hi := max[i] + max[k+i]*(now-tmax)
		if d := lo - pp; d > 0 {
			sum += d * d
		} else if d := pp - hi; d > 0 {
			sum += d * d
		}
	}
	return sum
}

func (m TranslatedSquaredEuclideanMetric) checkDims(dims int) error {
	if dims < 3 || dims%2 == 0 {
		return fmt.Errorf("%w: translated metrics need 2k+1 dimensions, got %d", ErrInvalidDimension, dims)
	}
	return nil
}

// WeightedTranslatedSquaredEuclideanMetric predicts positions like
// TranslatedSquaredEuclideanMetric and then weights each of the k predicted
// axes. Weights has one entry per position axis, not per tree dimension.
type WeightedTranslatedSquaredEuclideanMetric struct {
	Weights []float64
	Clock   func() float64
}

func (m WeightedTranslatedSquaredEuclideanMetric) Distance(a, b []float64) float64 {
	now := m.Clock()
	k := (len(a) - 1) / 2
	ta, tb := a[2*k], b[2*k]
	var sum float64
	for i := 0; i < k; i++ {
		pa := a[i] + a[k+i]*(now-ta)
		pb := b[i] + b[k+i]*(now-tb)
		d := (pa - pb) * m.Weights[i]
		sum += d * d
	}
	return sum
}

func (m WeightedTranslatedSquaredEuclideanMetric) DistanceToBox(p, min, max []float64) float64 {
	now := m.Clock()
	k := (len(p) - 1) / 2
	tp, tmin, tmax := p[2*k], min[2*k], max[2*k]
	var sum float64
	for i := 0; i < k; i++ {
		pp := p[i] + p[k+i]*(now-tp)
		lo := min[i] + min[k+i]*(now-tmin)
		hi := max[i] + max[k+i]*(now-tmax)
		var d float64
		if pp < lo {
			d = (lo - pp) * m.Weights[i]
		} else if pp > hi {
			d = (pp - hi) * m.Weights[i]
		}
		sum += d * d
	}
	return sum
}

func (m WeightedTranslatedSquaredEuclideanMetric) checkDims(dims int) error {
	if dims < 3 || dims%2 == 0 {
		return fmt.Errorf("%w: translated metrics need 2k+1 dimensions, got %d", ErrInvalidDimension, dims)
	}
	if k := (dims - 1) / 2; len(m.Weights) != k {
		return fmt.Errorf("%w: weight vector has %d entries, want %d (one per position axis)", ErrInvalidDimension, len(m.Weights), k)
	}
	return nil
}

// PredictedPosition returns the k-dimensional position a [pos(k), vel(k), t0]
// point reaches at time at. Useful for inspecting what a translated metric
// measured.
func PredictedPosition(point []float64, at float64) []float64 {
	k := (len(point) - 1) / 2
	pos := make([]float64, k)
	return floats.AddScaledTo(pos, point[:k], at-point[2*k], point[k:2*k])
}
