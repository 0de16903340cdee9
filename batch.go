package dynakd

import (
	"fmt"
	"runtime"
	"sync"
)

// NearestNeighborsBatch runs one k-NN query per row of queries against an
// unchanging tree and eagerly collects each result. Queries are split into
// contiguous ranges across numWorkers goroutines; if numWorkers <= 0 it
// defaults to runtime.NumCPU(), and a single worker runs inline.
//
// The tree must not be mutated while the batch runs. Searches only read the
// tree, so this is the one place concurrency is safe. A translated metric's
// Clock is called from every worker and must tolerate that.
//
// Results are index-aligned with queries: payloads[q] and distances[q] hold
// the payloads and distances for queries[q], nearest first.
func NearestNeighborsBatch[P comparable](t *Tree[P], queries [][]float64, k int, cfg SearchConfig, numWorkers int) (payloads [][]P, distances [][]float64, err error) {
	for q, query := range queries {
		if len(query) != t.dims {
			return nil, nil, fmt.Errorf("%w: query %d has %d dimensions, want %d", ErrDimensionMismatch, q, len(query), t.dims)
		}
	}
	metric := cfg.Metric
	if metric == nil {
		metric = SquaredEuclideanMetric{}
	}
	if d, ok := metric.(dimensioned); ok {
		if err := d.checkDims(t.dims); err != nil {
			return nil, nil, err
		}
	}

	payloads = make([][]P, len(queries))
	distances = make([][]float64, len(queries))

	collectRange := func(start, end int) {
		for q := start; q < end; q++ {
			it := newIterator(t, queries[q], k, cfg.MaxDistance, metric)
			ps := make([]P, 0, min(k, t.root.size))
			ds := make([]float64, 0, cap(ps))
			for p, ok := it.Next(); ok; p, ok = it.Next() {
				ps = append(ps, p)
				ds = append(ds, it.Distance())
			}
			payloads[q] = ps
			distances[q] = ds
		}
	}

	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers == 1 || len(queries) <= 1 {
		collectRange(0, len(queries))
		return payloads, distances, nil
	}

	// contiguous ranges, no overlap, so result writes need no locking
	var wg sync.WaitGroup
	perWorker := (len(queries) + numWorkers - 1) / numWorkers
	for w := 0; w < numWorkers; w++ {
		start := w * perWorker
		if start >= len(queries) {
			break
		}
		end := min(start+perWorker, len(queries))
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			collectRange(start, end)
		}(start, end)
	}
	wg.Wait()
	return payloads, distances, nil
}
