package dynakd

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestSearch_EmptyTree(t *testing.T) {
	tree, _ := New[int](3, 2)
	it, err := tree.NearestNeighbors([]float64{0, 0, 0}, 100, DefaultSearchConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := it.Next(); ok {
		t.Error("empty tree emitted a payload")
	}
}

func TestSearch_SinglePointAnyQuery(t *testing.T) {
	tree, _ := New[int](3, 2)
	tree.Add([]float64{0, 0, 0}, 0)
	it, err := tree.NearestNeighbors([]float64{1000, 1000, 1000}, 100, DefaultSearchConfig())
	if err != nil {
		t.Fatal(err)
	}
	p, ok := it.Next()
	if !ok || p != 0 {
		t.Fatalf("Next = %d, %v, want 0, true", p, ok)
	}
	if !scalar.EqualWithinAbs(it.Distance(), 3*1000*1000, floatTol) {
		t.Errorf("Distance = %v, want 3e6", it.Distance())
	}
	if _, ok := it.Next(); ok {
		t.Error("emitted more payloads than points")
	}
}

func TestSearch_ZeroThresholdExactMatch(t *testing.T) {
	tree, _ := New[int](3, 4)
	for i := 0; i < 10; i++ {
		tree.Add([]float64{0, 0, 0}, i)
	}
	for i := 100; i < 110; i++ {
		tree.Add([]float64{10, 10, 10}, i)
	}

	cfg := DefaultSearchConfig()
	cfg.MaxDistance = 0.0
	it, err := tree.NearestNeighbors([]float64{0, 0, 0}, 100, cfg)
	if err != nil {
		t.Fatal(err)
	}
	var got []int
	for p, ok := it.Next(); ok; p, ok = it.Next() {
		got = append(got, p)
		if it.Distance() != 0 {
			t.Errorf("distance %v over the 0.0 threshold", it.Distance())
		}
	}
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	if !sameIntSet(got, want) {
		t.Errorf("got %v, want the set %v", got, want)
	}
}

func TestSearch_BoundedByThreshold(t *testing.T) {
	tree, _ := New[int](3, 24)
	for d := 0; d < 1000; d++ {
		f := float64(d)
		tree.Add([]float64{f, f, f}, d)
	}

	cfg := DefaultSearchConfig()
	cfg.MaxDistance = 243.0
	it, err := tree.NearestNeighbors([]float64{0, 0, 0}, 100, cfg)
	if err != nil {
		t.Fatal(err)
	}
	var got []int
	for p, ok := it.Next(); ok; p, ok = it.Next() {
		got = append(got, p)
	}
	// the 9th point sits exactly on the threshold (3*81), the 10th over it
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	if !equalIntSlices(got, want) {
		t.Errorf("got %v, want %v in order", got, want)
	}
}

func TestSearch_TranslationPullsDistantPointsIn(t *testing.T) {
	tree, _ := New[int](7, 4)
	for i := 1; i <= 5; i++ {
		tree.Add([]float64{10, 10, 10, 0, 0, 0, 0}, i)
	}
	for i := 6; i <= 10; i++ {
		tree.Add([]float64{10, 10, 10, -0.5, -0.5, -0.5, 0}, i)
	}
	origin := make([]float64, 7)

	query := func(at, maxDist float64) []int {
		cfg := DefaultSearchConfig()
		cfg.MaxDistance = maxDist
		cfg.Metric = TranslatedSquaredEuclideanMetric{Clock: fixedClock(at)}
		return collectQueryCfg(t, tree, origin, 100, cfg)
	}

	if got := query(0, 299.0); len(got) != 0 {
		t.Errorf("t=0, threshold 299: got %v, want empty", got)
	}
	if got := query(0, 300.0); !sameIntSet(got, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}) {
		t.Errorf("t=0, threshold 300: got %v, want all ten", got)
	}
	if got := query(20, 1.0); !sameIntSet(got, []int{6, 7, 8, 9, 10}) {
		t.Errorf("t=20, threshold 1: got %v, want the moving five", got)
	}
}

func TestSearch_KSmallerThanLiveCount(t *testing.T) {
	tree, _ := New[int](2, 4)
	for i := 0; i < 20; i++ {
		tree.Add([]float64{float64(i), 0}, i)
	}
	got := collectQuery(t, tree, []float64{0, 0}, 5)
	if !equalIntSlices(got, []int{0, 1, 2, 3, 4}) {
		t.Errorf("got %v, want [0 1 2 3 4]", got)
	}
}

func TestSearch_EmitsEveryCoincidentPoint(t *testing.T) {
	tree, _ := New[int](2, 2)
	for i := 0; i < 12; i++ {
		tree.Add([]float64{7, 7}, i)
	}
	got := collectQuery(t, tree, []float64{0, 0}, 100)
	if len(got) != 12 {
		t.Fatalf("emitted %d payloads, want 12", len(got))
	}
	got = collectQuery(t, tree, []float64{0, 0}, 4)
	if len(got) != 4 {
		t.Fatalf("k=4 emitted %d payloads, want 4", len(got))
	}
}

func TestSearch_MonotoneDistances(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	tree, _ := New[int](3, 4)
	for i := 0; i < 500; i++ {
		tree.Add(randomPoint(rng, 3, 100), i)
	}
	it, err := tree.NearestNeighbors([]float64{50, 50, 50}, 500, DefaultSearchConfig())
	if err != nil {
		t.Fatal(err)
	}
	prev := -1.0
	count := 0
	for _, ok := it.Next(); ok; _, ok = it.Next() {
		if it.Distance() < prev {
			t.Fatalf("distance went backwards: %v after %v", it.Distance(), prev)
		}
		prev = it.Distance()
		count++
	}
	if count != 500 {
		t.Errorf("emitted %d, want 500", count)
	}
}

func TestSearch_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(37))
	for _, n := range []int{1, 2, 10, 100, 300} {
		tree, _ := New[int](3, 4)
		for i := 0; i < n; i++ {
			tree.Add(randomPoint(rng, 3, 50), i)
		}
		for _, k := range []int{1, 3, 17, n} {
			if k > n {
				continue
			}
			q := randomPoint(rng, 3, 60)
			got := collectQuery(t, tree, q, k)
			want := bruteForceKNN(t, tree, q, k, -1, SquaredEuclideanMetric{})
			if !sameIntSet(got, want) {
				t.Errorf("n=%d k=%d: tree %v, brute force %v", n, k, got, want)
			}
		}
	}
}

func TestSearch_MatchesBruteForceUnderChurn(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	tree, _ := New[int](2, 4)
	live := make(map[int]bool)
	for i := 0; i < 200; i++ {
		tree.Add(randomPoint(rng, 2, 50), i)
		live[i] = true
	}
	for i := 0; i < 200; i += 2 {
		tree.Move(randomPoint(rng, 2, 50), i)
	}
	for i := 0; i < 200; i += 5 {
		tree.Remove(i)
		delete(live, i)
	}

	q := []float64{25, 25}
	got := collectQuery(t, tree, q, 40)
	want := bruteForceKNN(t, tree, q, 40, -1, SquaredEuclideanMetric{})
	if !sameIntSet(got, want) {
		t.Errorf("tree %v, brute force %v", got, want)
	}
}

func TestSearch_ThresholdClosure(t *testing.T) {
	rng := rand.New(rand.NewSource(43))
	tree, _ := New[int](2, 4)
	for i := 0; i < 300; i++ {
		tree.Add(randomPoint(rng, 2, 100), i)
	}
	for _, threshold := range []float64{0, 10, 500, 5000} {
		cfg := DefaultSearchConfig()
		cfg.MaxDistance = threshold
		it, err := tree.NearestNeighbors([]float64{50, 50}, 300, cfg)
		if err != nil {
			t.Fatal(err)
		}
		var got []int
		for p, ok := it.Next(); ok; p, ok = it.Next() {
			if it.Distance() > threshold {
				t.Fatalf("threshold %v: emitted distance %v", threshold, it.Distance())
			}
			got = append(got, p)
		}
		want := bruteForceKNN(t, tree, []float64{50, 50}, 300, threshold, SquaredEuclideanMetric{})
		if !sameIntSet(got, want) {
			t.Errorf("threshold %v: tree found %d, brute force %d", threshold, len(got), len(want))
		}
	}
}

func TestSearch_WeightedMetricReorders(t *testing.T) {
	tree, _ := New[int](2, 4)
	tree.Add([]float64{3, 0}, 0)
	tree.Add([]float64{0, 4}, 1)

	// plain: payload 0 (dist 9) before payload 1 (dist 16)
	got := collectQuery(t, tree, []float64{0, 0}, 2)
	if !equalIntSlices(got, []int{0, 1}) {
		t.Fatalf("plain metric order = %v, want [0 1]", got)
	}
	// weighting x by 10 flips the order
	cfg := DefaultSearchConfig()
	cfg.Metric = WeightedSquaredEuclideanMetric{Weights: []float64{10, 1}}
	got = collectQueryCfg(t, tree, []float64{0, 0}, 2, cfg)
	if !equalIntSlices(got, []int{1, 0}) {
		t.Errorf("weighted metric order = %v, want [1 0]", got)
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	tree, _ := New[int](3, 4)
	tree.Add([]float64{0, 0, 0}, 0)
	if _, err := tree.NearestNeighbors([]float64{0, 0}, 1, DefaultSearchConfig()); err == nil {
		t.Error("expected a dimension mismatch error")
	}
}

func TestSearch_Reset(t *testing.T) {
	rng := rand.New(rand.NewSource(47))
	tree, _ := New[int](2, 4)
	for i := 0; i < 50; i++ {
		tree.Add(randomPoint(rng, 2, 10), i)
	}
	it, err := tree.NearestNeighbors([]float64{5, 5}, 10, DefaultSearchConfig())
	if err != nil {
		t.Fatal(err)
	}
	var first []int
	for p, ok := it.Next(); ok; p, ok = it.Next() {
		first = append(first, p)
	}
	it.Reset()
	var second []int
	for p, ok := it.Next(); ok; p, ok = it.Next() {
		second = append(second, p)
	}
	if !equalIntSlices(first, second) {
		t.Errorf("replay after Reset differs: %v vs %v", first, second)
	}
}

func TestSearch_PartialConsumption(t *testing.T) {
	tree, _ := New[int](2, 4)
	for i := 0; i < 100; i++ {
		tree.Add([]float64{float64(i), 0}, i)
	}
	it, err := tree.NearestNeighbors([]float64{0, 0}, 50, DefaultSearchConfig())
	if err != nil {
		t.Fatal(err)
	}
	// the caller controls pacing; taking three and walking away is fine
	for want := 0; want < 3; want++ {
		p, ok := it.Next()
		if !ok || p != want {
			t.Fatalf("Next = %d, %v, want %d", p, ok, want)
		}
	}
}

func TestSearch_NaNPointsDoNotCrash(t *testing.T) {
	tree, _ := New[int](2, 2)
	nan := math.NaN()
	tree.Add([]float64{nan, 1}, 0)
	tree.Add([]float64{1, 1}, 1)
	tree.Add([]float64{2, 2}, 2)
	tree.Add([]float64{nan, nan}, 3)
	tree.Add([]float64{3, 0}, 4)

	it, err := tree.NearestNeighbors([]float64{1, 1}, 5, DefaultSearchConfig())
	if err != nil {
		t.Fatal(err)
	}
	finite := 0
	for _, ok := it.Next(); ok; _, ok = it.Next() {
		if !math.IsNaN(it.Distance()) {
			finite++
		}
	}
	if finite < 3 {
		t.Errorf("only %d finite-distance results, want the 3 finite points", finite)
	}
}

// --- helpers ---

func collectQueryCfg(t *testing.T, tree *Tree[int], point []float64, k int, cfg SearchConfig) []int {
	t.Helper()
	it, err := tree.NearestNeighbors(point, k, cfg)
	if err != nil {
		t.Fatal(err)
	}
	var out []int
	for p, ok := it.Next(); ok; p, ok = it.Next() {
		out = append(out, p)
	}
	return out
}

func randomPoint(rng *rand.Rand, dims int, scale float64) []float64 {
	p := make([]float64, dims)
	for i := range p {
		p[i] = rng.Float64() * scale
	}
	return p
}

// bruteForceKNN scans every live point under the metric. threshold < 0
// means unbounded.
func bruteForceKNN(t *testing.T, tree *Tree[int], q []float64, k int, threshold float64, m DistanceMetric) []int {
	t.Helper()
	type cand struct {
		payload int
		dist    float64
	}
	var cands []cand
	for i, p := range tree.All() {
		pt, err := tree.PointAt(i)
		if err != nil {
			t.Fatal(err)
		}
		d := m.Distance(q, pt)
		if threshold >= 0 && d > threshold {
			continue
		}
		cands = append(cands, cand{p, d})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]int, len(cands))
	for i, c := range cands {
		out[i] = c.payload
	}
	return out
}
