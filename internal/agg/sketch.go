package agg

import (
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/xanlabs/xan-go/internal/moonblade"
	"github.com/xanlabs/xan-go/internal/util"
)

func init() {
	register("cardinality", func() Aggregator { return &cardinalityAgg{seen: map[string]bool{}} })
	register("approx_cardinality", func() Aggregator { return newHLL() })
	register("quantile", func() Aggregator { return &exactQuantileAgg{p: 0.5} })
	register("median", func() Aggregator { return &exactQuantileAgg{p: 0.5} })
	register("q1", func() Aggregator { return &exactQuantileAgg{p: 0.25} })
	register("q3", func() Aggregator { return &exactQuantileAgg{p: 0.75} })
	register("approx_quantile", func() Aggregator { return newDigest(0.5) })
	register("approx_median", func() Aggregator { return newDigest(0.5) })
	register("mode", func() Aggregator { return &modeAgg{counts: map[string]int64{}} })
	register("distinct_values", func() Aggregator { return &distinctValuesAgg{seen: map[string]bool{}} })
	register("values", func() Aggregator { return &valuesAgg{} })
	register("correlation", func() Aggregator { return &correlationAgg{} })
	register("covariance", func() Aggregator { return &correlationAgg{sample: true, covariance: true} })
	register("covariance_pop", func() Aggregator { return &correlationAgg{sample: false, covariance: true} })
}

// NewTopK builds a most_common/top/argtop aggregator bounded at k
// entries, per spec §4.4's parameterized aggregator forms. With kind
// "top" Finalize returns a list of values; most_common and argtop both
// return a list of {value, count} maps (argtop keeps no row indices).
func NewTopK(kind string, k int) Aggregator {
	return &topKAgg{kind: kind, k: k, counts: map[string]int64{}}
}

// cardinalityAgg keeps an exact set of distinct stringified values.
type cardinalityAgg struct{ seen map[string]bool }

func (a *cardinalityAgg) Name() string { return "cardinality" }
func (a *cardinalityAgg) Update(v moonblade.Value, _ int64) {
	a.seen[v.Stringify()] = true
}
func (a *cardinalityAgg) Combine(other Aggregator) {
	o := other.(*cardinalityAgg)
	for k := range o.seen {
		a.seen[k] = true
	}
}
func (a *cardinalityAgg) Finalize() moonblade.Value { return moonblade.Int(int64(len(a.seen))) }

// hllAgg is a HyperLogLog++-style estimator: 2^p registers of 6 bits
// each, hashed via xxhash (the teacher's own hash dependency,
// repurposed here for sketch cardinality rather than schema diffing).
// No pack example ships a dedicated HLL library, so this is a small
// from-scratch sketch rather than a vendored one (see DESIGN.md).
type hllAgg struct {
	p    uint
	m    uint32
	regs []uint8
}

const hllPrecision = 14 // 16384 registers, ~0.8% standard error

func newHLL() *hllAgg {
	m := uint32(1) << hllPrecision
	return &hllAgg{p: hllPrecision, m: m, regs: make([]uint8, m)}
}

func (a *hllAgg) Name() string { return "approx_cardinality" }
func (a *hllAgg) Update(v moonblade.Value, _ int64) {
	h := xxhash.Sum64String(v.Stringify())
	idx := h >> (64 - a.p)
	rest := h<<a.p | (1 << (a.p - 1))
	rho := uint8(1)
	for rest&(1<<63) == 0 && rho < 64-uint8(a.p)+1 {
		rest <<= 1
		rho++
	}
	if rho > a.regs[idx] {
		a.regs[idx] = rho
	}
}
func (a *hllAgg) Combine(other Aggregator) {
	o := other.(*hllAgg)
	for i, r := range o.regs {
		if r > a.regs[i] {
			a.regs[i] = r
		}
	}
}
func (a *hllAgg) Finalize() moonblade.Value {
	m := float64(a.m)
	sum := 0.0
	zeros := 0
	for _, r := range a.regs {
		sum += 1.0 / math.Pow(2, float64(r))
		if r == 0 {
			zeros++
		}
	}
	alpha := 0.7213 / (1 + 1.079/m)
	estimate := alpha * m * m / sum
	if estimate <= 2.5*m && zeros > 0 {
		estimate = m * math.Log(m/float64(zeros))
	}
	return moonblade.Int(int64(math.Round(estimate)))
}

// exactQuantileAgg buffers every numeric value and sorts once at
// Finalize (spec's exact quantile/median/q1/q3 forms).
type exactQuantileAgg struct {
	vals []float64
	p    float64
}

func (a *exactQuantileAgg) Name() string { return "quantile" }
func (a *exactQuantileAgg) Update(v moonblade.Value, _ int64) {
	if f, ok := v.AsFloat(); ok {
		a.vals = append(a.vals, f)
	}
}
func (a *exactQuantileAgg) Combine(other Aggregator) {
	o := other.(*exactQuantileAgg)
	a.vals = append(a.vals, o.vals...)
}
func (a *exactQuantileAgg) Finalize() moonblade.Value {
	if len(a.vals) == 0 {
		return moonblade.Null()
	}
	sorted := append([]float64(nil), a.vals...)
	sort.Float64s(sorted)
	return moonblade.Float(quantileOf(sorted, a.p))
}

func quantileOf(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// centroid is one weighted mean in the approximate digest.
type centroid struct {
	mean   float64
	weight float64
}

// digestAgg is a simplified t-digest: centroids are merged by nearest
// mean once the capacity is exceeded, giving more resolution near the
// tails than a fixed-width histogram at O(capacity) memory regardless
// of stream length.
type digestAgg struct {
	centroids []centroid
	capacity  int
	p         float64
}

func newDigest(p float64) *digestAgg { return &digestAgg{capacity: 256, p: p} }

func (a *digestAgg) Name() string { return "approx_quantile" }
func (a *digestAgg) Update(v moonblade.Value, _ int64) {
	f, ok := v.AsFloat()
	if !ok {
		return
	}
	a.centroids = append(a.centroids, centroid{mean: f, weight: 1})
	if len(a.centroids) > a.capacity*4 {
		a.compress()
	}
}
func (a *digestAgg) Combine(other Aggregator) {
	o := other.(*digestAgg)
	a.centroids = append(a.centroids, o.centroids...)
	a.compress()
}
func (a *digestAgg) compress() {
	if len(a.centroids) <= a.capacity {
		return
	}
	sort.Slice(a.centroids, func(i, j int) bool { return a.centroids[i].mean < a.centroids[j].mean })
	out := make([]centroid, 0, a.capacity)
	step := float64(len(a.centroids)) / float64(a.capacity)
	for i := 0; i < a.capacity; i++ {
		start := int(float64(i) * step)
		end := int(float64(i+1) * step)
		if end > len(a.centroids) {
			end = len(a.centroids)
		}
		if start >= end {
			continue
		}
		var sumW, sumWM float64
		for _, c := range a.centroids[start:end] {
			sumW += c.weight
			sumWM += c.weight * c.mean
		}
		out = append(out, centroid{mean: sumWM / sumW, weight: sumW})
	}
	a.centroids = out
}
func (a *digestAgg) Finalize() moonblade.Value {
	a.compress()
	if len(a.centroids) == 0 {
		return moonblade.Null()
	}
	sort.Slice(a.centroids, func(i, j int) bool { return a.centroids[i].mean < a.centroids[j].mean })
	var total float64
	for _, c := range a.centroids {
		total += c.weight
	}
	target := a.p * total
	var cum float64
	for i, c := range a.centroids {
		cum += c.weight
		if cum >= target || i == len(a.centroids)-1 {
			return moonblade.Float(c.mean)
		}
	}
	return moonblade.Float(a.centroids[len(a.centroids)-1].mean)
}

// modeAgg tracks the most frequent stringified value, ties broken by
// first occurrence.
type modeAgg struct {
	counts map[string]int64
	order  []string
}

func (a *modeAgg) Name() string { return "mode" }
func (a *modeAgg) Update(v moonblade.Value, _ int64) {
	s := v.Stringify()
	if _, ok := a.counts[s]; !ok {
		a.order = append(a.order, s)
	}
	a.counts[s]++
}
func (a *modeAgg) Combine(other Aggregator) {
	o := other.(*modeAgg)
	for _, s := range o.order {
		if _, ok := a.counts[s]; !ok {
			a.order = append(a.order, s)
		}
		a.counts[s] += o.counts[s]
	}
}
func (a *modeAgg) Finalize() moonblade.Value {
	if len(a.order) == 0 {
		return moonblade.Null()
	}
	best, bestN := a.order[0], a.counts[a.order[0]]
	for _, s := range a.order[1:] {
		if a.counts[s] > bestN {
			best, bestN = s, a.counts[s]
		}
	}
	return moonblade.String(best)
}

// topKAgg backs most_common(k)/top(k)/argtop(k): a frequency table
// whose Finalize emits up to k entries depending on kind.
type topKAgg struct {
	kind   string
	k      int
	counts map[string]int64
	order  []string
}

func (a *topKAgg) Name() string { return a.kind }
func (a *topKAgg) Update(v moonblade.Value, _ int64) {
	s := v.Stringify()
	if _, ok := a.counts[s]; !ok {
		a.order = append(a.order, s)
	}
	a.counts[s]++
}
func (a *topKAgg) Combine(other Aggregator) {
	o := other.(*topKAgg)
	for _, s := range o.order {
		if _, ok := a.counts[s]; !ok {
			a.order = append(a.order, s)
		}
		a.counts[s] += o.counts[s]
	}
}
func (a *topKAgg) Finalize() moonblade.Value {
	type pair struct {
		key string
		n   int64
	}
	pairs := make([]pair, len(a.order))
	for i, s := range a.order {
		pairs[i] = pair{s, a.counts[s]}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].n > pairs[j].n })
	if len(pairs) > a.k {
		pairs = pairs[:a.k]
	}
	out := make([]moonblade.Value, len(pairs))
	for i, p := range pairs {
		if a.kind == "top" {
			out[i] = moonblade.String(p.key)
			continue
		}
		out[i] = moonblade.Map([]moonblade.MapEntry{
			{Key: "value", Value: moonblade.String(p.key)},
			{Key: "count", Value: moonblade.Int(p.n)},
		})
	}
	return moonblade.List(out)
}

// distinctValuesAgg reports every distinct stringified value, sorted.
type distinctValuesAgg struct{ seen map[string]bool }

func (a *distinctValuesAgg) Name() string { return "distinct_values" }
func (a *distinctValuesAgg) Update(v moonblade.Value, _ int64) { a.seen[v.Stringify()] = true }
func (a *distinctValuesAgg) Combine(other Aggregator) {
	o := other.(*distinctValuesAgg)
	for k := range o.seen {
		a.seen[k] = true
	}
}
func (a *distinctValuesAgg) Finalize() moonblade.Value {
	out := make([]moonblade.Value, 0, len(a.seen))
	for k := range util.CanonicalMapIter(a.seen) {
		out = append(out, moonblade.String(k))
	}
	return moonblade.List(out)
}

// valuesAgg joins every value seen, in arrival order (spec's "values"
// aggregator, e.g. for building a CSV-friendly joined representation).
type valuesAgg struct{ vals []string }

func (a *valuesAgg) Name() string { return "values" }
func (a *valuesAgg) Update(v moonblade.Value, _ int64) { a.vals = append(a.vals, v.Stringify()) }
func (a *valuesAgg) Combine(other Aggregator) {
	o := other.(*valuesAgg)
	a.vals = append(a.vals, o.vals...)
}
func (a *valuesAgg) Finalize() moonblade.Value {
	out := make([]moonblade.Value, len(a.vals))
	for i, s := range a.vals {
		out[i] = moonblade.String(s)
	}
	return moonblade.List(out)
}

// correlationAgg accepts a 2-element list Value [x, y] per row and
// computes Pearson correlation, or (co)variance when used as
// covariance/covariance_pop, via Welford's bivariate extension so
// combine stays numerically stable.
type correlationAgg struct {
	n          int64
	meanX      float64
	meanY      float64
	c2X        float64
	c2Y        float64
	cXY        float64
	sample     bool
	covariance bool
}

func (a *correlationAgg) Name() string { return "correlation" }
func (a *correlationAgg) Update(v moonblade.Value, _ int64) {
	if v.Kind != moonblade.KindList || len(v.L) != 2 {
		return
	}
	x, okx := v.L[0].AsFloat()
	y, oky := v.L[1].AsFloat()
	if !okx || !oky {
		return
	}
	a.n++
	dx := x - a.meanX
	a.meanX += dx / float64(a.n)
	dy := y - a.meanY
	a.meanY += dy / float64(a.n)
	a.c2X += dx * (x - a.meanX)
	a.c2Y += dy * (y - a.meanY)
	a.cXY += dx * (y - a.meanY)
}
func (a *correlationAgg) Combine(other Aggregator) {
	o := other.(*correlationAgg)
	if o.n == 0 {
		return
	}
	if a.n == 0 {
		*a = *o
		return
	}
	n := a.n + o.n
	dx := o.meanX - a.meanX
	dy := o.meanY - a.meanY
	meanX := a.meanX + dx*float64(o.n)/float64(n)
	meanY := a.meanY + dy*float64(o.n)/float64(n)
	c2X := a.c2X + o.c2X + dx*dx*float64(a.n)*float64(o.n)/float64(n)
	c2Y := a.c2Y + o.c2Y + dy*dy*float64(a.n)*float64(o.n)/float64(n)
	cXY := a.cXY + o.cXY + dx*dy*float64(a.n)*float64(o.n)/float64(n)
	a.n, a.meanX, a.meanY, a.c2X, a.c2Y, a.cXY = n, meanX, meanY, c2X, c2Y, cXY
}
func (a *correlationAgg) Finalize() moonblade.Value {
	if a.n < 2 {
		return moonblade.Null()
	}
	denom := float64(a.n)
	if a.sample {
		denom = float64(a.n - 1)
	}
	cov := a.cXY / denom
	if a.covariance {
		return moonblade.Float(cov)
	}
	sx := math.Sqrt(a.c2X / denom)
	sy := math.Sqrt(a.c2Y / denom)
	if sx == 0 || sy == 0 {
		return moonblade.Null()
	}
	return moonblade.Float(cov / (sx * sy))
}
