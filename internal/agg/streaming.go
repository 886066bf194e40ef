package agg

import (
	"math"

	"github.com/xanlabs/xan-go/internal/moonblade"
	"github.com/xanlabs/xan-go/internal/util"
)

func init() {
	register("count", func() Aggregator { return &countAgg{} })
	register("count_empty", func() Aggregator { return &countEmptyAgg{} })
	register("sum", func() Aggregator { return &sumAgg{} })
	register("mean", func() Aggregator { return &meanAgg{} })
	register("variance", func() Aggregator { return &varianceAgg{sample: true} })
	register("var_pop", func() Aggregator { return &varianceAgg{sample: false} })
	register("stddev", func() Aggregator { return &stddevAgg{varianceAgg{sample: true}} })
	register("stddev_pop", func() Aggregator { return &stddevAgg{varianceAgg{sample: false}} })
	register("min", func() Aggregator { return &minAgg{} })
	register("max", func() Aggregator { return &maxAgg{} })
	register("lex_first", func() Aggregator { return &lexAgg{smaller: true} })
	register("lex_last", func() Aggregator { return &lexAgg{smaller: false} })
	register("first", func() Aggregator { return &firstLastAgg{first: true} })
	register("last", func() Aggregator { return &firstLastAgg{first: false} })
	register("earliest", func() Aggregator { return &dateExtremeAgg{earliest: true} })
	register("latest", func() Aggregator { return &dateExtremeAgg{earliest: false} })
	register("ratio", func() Aggregator { return &ratioAgg{} })
	register("percentage", func() Aggregator { return &percentageAgg{} })
	register("rms", func() Aggregator { return &rmsAgg{} })
	register("type", func() Aggregator { return &typeAgg{} })
	register("types", func() Aggregator { return &typesAgg{seen: map[string]bool{}} })
	register("min_length", func() Aggregator { return &lengthAgg{min: true, best: -1} })
	register("max_length", func() Aggregator { return &lengthAgg{min: false, best: -1} })
	register("argmin", func() Aggregator { return &argExtremeAgg{smaller: true, rowIdx: -1} })
	register("argmax", func() Aggregator { return &argExtremeAgg{smaller: false, rowIdx: -1} })
	register("count_seconds", func() Aggregator { return &countSpanAgg{unit: unitSeconds} })
	register("count_hours", func() Aggregator { return &countSpanAgg{unit: unitHours} })
	register("count_days", func() Aggregator { return &countSpanAgg{unit: unitDays} })
	register("count_years", func() Aggregator { return &countSpanAgg{unit: unitYears} })
}

// countAgg tallies every row seen, including nulls.
type countAgg struct{ n int64 }

func (a *countAgg) Name() string                              { return "count" }
func (a *countAgg) Update(v moonblade.Value, _ int64)         { a.n++ }
func (a *countAgg) Combine(other Aggregator)                  { a.n += other.(*countAgg).n }
func (a *countAgg) Finalize() moonblade.Value                 { return moonblade.Int(a.n) }

// countEmptyAgg tallies rows whose value is falsey-empty (Null or "").
type countEmptyAgg struct{ n int64 }

func (a *countEmptyAgg) Name() string { return "count_empty" }
func (a *countEmptyAgg) Update(v moonblade.Value, _ int64) {
	if v.Kind == moonblade.KindNull || (v.Kind == moonblade.KindString && v.S == "") {
		a.n++
	}
}
func (a *countEmptyAgg) Combine(other Aggregator) { a.n += other.(*countEmptyAgg).n }
func (a *countEmptyAgg) Finalize() moonblade.Value { return moonblade.Int(a.n) }

// sumAgg accumulates with Kahan-Babuška compensated summation so long
// columns don't drift from floating point rounding.
type sumAgg struct {
	sum, c float64
	any    bool
}

func (a *sumAgg) Name() string { return "sum" }

func (a *sumAgg) add(x float64) {
	t := a.sum + x
	if math.Abs(a.sum) >= math.Abs(x) {
		a.c += (a.sum - t) + x
	} else {
		a.c += (x - t) + a.sum
	}
	a.sum = t
}

func (a *sumAgg) Update(v moonblade.Value, _ int64) {
	if f, ok := v.AsFloat(); ok {
		a.any = true
		a.add(f)
	}
}
func (a *sumAgg) Combine(other Aggregator) {
	o := other.(*sumAgg)
	if o.any {
		a.any = true
		a.add(o.sum + o.c)
	}
}
func (a *sumAgg) Finalize() moonblade.Value { return moonblade.Float(a.sum + a.c) }

// meanAgg tracks running mean via Welford's method so combine() stays
// numerically stable across many worker shards.
type meanAgg struct {
	n    int64
	mean float64
}

func (a *meanAgg) Name() string { return "mean" }
func (a *meanAgg) Update(v moonblade.Value, _ int64) {
	f, ok := v.AsFloat()
	if !ok {
		return
	}
	a.n++
	a.mean += (f - a.mean) / float64(a.n)
}
func (a *meanAgg) Combine(other Aggregator) {
	o := other.(*meanAgg)
	if o.n == 0 {
		return
	}
	total := a.n + o.n
	a.mean = (a.mean*float64(a.n) + o.mean*float64(o.n)) / float64(total)
	a.n = total
}
func (a *meanAgg) Finalize() moonblade.Value {
	if a.n == 0 {
		return moonblade.Null()
	}
	return moonblade.Float(a.mean)
}

// varianceAgg implements Welford's online algorithm and the
// Chan et al. parallel combine formula, so sharded workers merge
// exactly (up to floating point rounding) to the single-pass result.
type varianceAgg struct {
	n    int64
	mean float64
	m2   float64

	sample bool
}

func (a *varianceAgg) Name() string { return "variance" }
func (a *varianceAgg) Update(v moonblade.Value, _ int64) {
	f, ok := v.AsFloat()
	if !ok {
		return
	}
	a.n++
	delta := f - a.mean
	a.mean += delta / float64(a.n)
	delta2 := f - a.mean
	a.m2 += delta * delta2
}
func (a *varianceAgg) Combine(other Aggregator) {
	o := other.(*varianceAgg)
	if o.n == 0 {
		return
	}
	if a.n == 0 {
		*a = *o
		return
	}
	n := a.n + o.n
	delta := o.mean - a.mean
	mean := a.mean + delta*float64(o.n)/float64(n)
	m2 := a.m2 + o.m2 + delta*delta*float64(a.n)*float64(o.n)/float64(n)
	a.n, a.mean, a.m2 = n, mean, m2
}
func (a *varianceAgg) variance() (float64, bool) {
	if a.sample {
		if a.n < 2 {
			return 0, false
		}
		return a.m2 / float64(a.n-1), true
	}
	if a.n < 1 {
		return 0, false
	}
	return a.m2 / float64(a.n), true
}
func (a *varianceAgg) Finalize() moonblade.Value {
	v, ok := a.variance()
	if !ok {
		return moonblade.Null()
	}
	return moonblade.Float(v)
}

type stddevAgg struct{ varianceAgg }

func (a *stddevAgg) Name() string { return "stddev" }
func (a *stddevAgg) Finalize() moonblade.Value {
	v, ok := a.variance()
	if !ok {
		return moonblade.Null()
	}
	return moonblade.Float(math.Sqrt(v))
}

// minAgg/maxAgg compare numerically when possible, falling back to
// lexicographic comparison for non-numeric columns.
type minAgg struct {
	best moonblade.Value
	has  bool
}

func (a *minAgg) Name() string { return "min" }
func (a *minAgg) Update(v moonblade.Value, _ int64) {
	if v.Kind == moonblade.KindNull {
		return
	}
	if !a.has || less(v, a.best) {
		a.best, a.has = v, true
	}
}
func (a *minAgg) Combine(other Aggregator) {
	o := other.(*minAgg)
	if o.has {
		a.Update(o.best, 0)
	}
}
func (a *minAgg) Finalize() moonblade.Value {
	if !a.has {
		return moonblade.Null()
	}
	return a.best
}

type maxAgg struct {
	best moonblade.Value
	has  bool
}

func (a *maxAgg) Name() string { return "max" }
func (a *maxAgg) Update(v moonblade.Value, _ int64) {
	if v.Kind == moonblade.KindNull {
		return
	}
	if !a.has || less(a.best, v) {
		a.best, a.has = v, true
	}
}
func (a *maxAgg) Combine(other Aggregator) {
	o := other.(*maxAgg)
	if o.has {
		a.Update(o.best, 0)
	}
}
func (a *maxAgg) Finalize() moonblade.Value {
	if !a.has {
		return moonblade.Null()
	}
	return a.best
}

func less(a, b moonblade.Value) bool {
	if af, aok := a.AsFloat(); aok {
		if bf, bok := b.AsFloat(); bok {
			return af < bf
		}
	}
	return a.Stringify() < b.Stringify()
}

// lexAgg compares purely lexicographically, ignoring numeric parsing
// (spec's lex_first/lex_last).
type lexAgg struct {
	best    string
	has     bool
	smaller bool
}

func (a *lexAgg) Name() string { return "lex_first" }
func (a *lexAgg) Update(v moonblade.Value, _ int64) {
	s := v.Stringify()
	if !a.has || (a.smaller && s < a.best) || (!a.smaller && s > a.best) {
		a.best, a.has = s, true
	}
}
func (a *lexAgg) Combine(other Aggregator) {
	o := other.(*lexAgg)
	if o.has {
		a.Update(moonblade.String(o.best), 0)
	}
}
func (a *lexAgg) Finalize() moonblade.Value {
	if !a.has {
		return moonblade.Null()
	}
	return moonblade.String(a.best)
}

// firstLastAgg keeps the first or last value by arrival order, tied to
// the global row index so a parallel combine reproduces single-thread
// order (spec §7's row-index tie-break requirement).
type firstLastAgg struct {
	val      moonblade.Value
	rowIdx   int64
	has      bool
	first    bool
}

func (a *firstLastAgg) Name() string { return "first" }
func (a *firstLastAgg) Update(v moonblade.Value, rowIndex int64) {
	if !a.has {
		a.val, a.rowIdx, a.has = v, rowIndex, true
		return
	}
	if a.first && rowIndex < a.rowIdx {
		a.val, a.rowIdx = v, rowIndex
	} else if !a.first && rowIndex > a.rowIdx {
		a.val, a.rowIdx = v, rowIndex
	}
}
func (a *firstLastAgg) Combine(other Aggregator) {
	o := other.(*firstLastAgg)
	if o.has {
		a.Update(o.val, o.rowIdx)
	}
}
func (a *firstLastAgg) Finalize() moonblade.Value {
	if !a.has {
		return moonblade.Null()
	}
	return a.val
}

// dateExtremeAgg tracks the earliest/latest parseable datetime seen.
type dateExtremeAgg struct {
	best     int64
	has      bool
	earliest bool
}

func (a *dateExtremeAgg) Name() string { return "earliest" }
func (a *dateExtremeAgg) Update(v moonblade.Value, _ int64) {
	t, err := moonblade.ParseDatetime(v.Stringify())
	if err != nil {
		return
	}
	unix := t.Unix()
	if !a.has || (a.earliest && unix < a.best) || (!a.earliest && unix > a.best) {
		a.best, a.has = unix, true
	}
}
func (a *dateExtremeAgg) Combine(other Aggregator) {
	o := other.(*dateExtremeAgg)
	if o.has {
		a.Update(moonblade.Int(o.best), 0)
	}
}
func (a *dateExtremeAgg) Finalize() moonblade.Value {
	if !a.has {
		return moonblade.Null()
	}
	return moonblade.Int(a.best)
}

// ratioAgg divides the count of truthy rows by the total row count.
type ratioAgg struct{ truthy, total int64 }

func (a *ratioAgg) Name() string { return "ratio" }
func (a *ratioAgg) Update(v moonblade.Value, _ int64) {
	a.total++
	if v.Truthy() {
		a.truthy++
	}
}
func (a *ratioAgg) Combine(other Aggregator) {
	o := other.(*ratioAgg)
	a.truthy += o.truthy
	a.total += o.total
}
func (a *ratioAgg) Finalize() moonblade.Value {
	if a.total == 0 {
		return moonblade.Null()
	}
	return moonblade.Float(float64(a.truthy) / float64(a.total))
}

// percentageAgg is ratioAgg scaled by 100.
type percentageAgg struct{ ratioAgg }

func (a *percentageAgg) Name() string { return "percentage" }
func (a *percentageAgg) Finalize() moonblade.Value {
	if a.total == 0 {
		return moonblade.Null()
	}
	return moonblade.Float(100 * float64(a.truthy) / float64(a.total))
}

// rmsAgg computes the root-mean-square of numeric values.
type rmsAgg struct {
	sumSq float64
	n     int64
}

func (a *rmsAgg) Name() string { return "rms" }
func (a *rmsAgg) Update(v moonblade.Value, _ int64) {
	if f, ok := v.AsFloat(); ok {
		a.sumSq += f * f
		a.n++
	}
}
func (a *rmsAgg) Combine(other Aggregator) {
	o := other.(*rmsAgg)
	a.sumSq += o.sumSq
	a.n += o.n
}
func (a *rmsAgg) Finalize() moonblade.Value {
	if a.n == 0 {
		return moonblade.Null()
	}
	return moonblade.Float(math.Sqrt(a.sumSq / float64(a.n)))
}

// typeAgg reports the dominant inferred type across the column.
type typeAgg struct {
	counts map[string]int64
}

func (a *typeAgg) Name() string { return "type" }
func (a *typeAgg) Update(v moonblade.Value, _ int64) {
	if a.counts == nil {
		a.counts = map[string]int64{}
	}
	a.counts[inferType(v)]++
}
func (a *typeAgg) Combine(other Aggregator) {
	o := other.(*typeAgg)
	if a.counts == nil {
		a.counts = map[string]int64{}
	}
	for k, v := range o.counts {
		a.counts[k] += v
	}
}
func (a *typeAgg) Finalize() moonblade.Value {
	best, bestN := "empty", int64(-1)
	for _, k := range []string{"int", "float", "string", "empty"} {
		if n := a.counts[k]; n > bestN {
			best, bestN = k, n
		}
	}
	return moonblade.String(best)
}

// typesAgg reports every distinct inferred type seen, sorted.
type typesAgg struct {
	seen map[string]bool
}

func (a *typesAgg) Name() string { return "types" }
func (a *typesAgg) Update(v moonblade.Value, _ int64) {
	if a.seen == nil {
		a.seen = map[string]bool{}
	}
	a.seen[inferType(v)] = true
}
func (a *typesAgg) Combine(other Aggregator) {
	o := other.(*typesAgg)
	if a.seen == nil {
		a.seen = map[string]bool{}
	}
	for k := range o.seen {
		a.seen[k] = true
	}
}
func (a *typesAgg) Finalize() moonblade.Value {
	vals := make([]moonblade.Value, 0, len(a.seen))
	for k := range util.CanonicalMapIter(a.seen) {
		vals = append(vals, moonblade.String(k))
	}
	return moonblade.List(vals)
}

func inferType(v moonblade.Value) string {
	s := v.Stringify()
	if s == "" {
		return "empty"
	}
	if _, ok := v.AsInt(); ok {
		return "int"
	}
	if _, ok := v.AsFloat(); ok {
		return "float"
	}
	return "string"
}

// lengthAgg tracks the shortest/longest string representation seen.
type lengthAgg struct {
	best int
	min  bool
}

func (a *lengthAgg) Name() string { return "min_length" }
func (a *lengthAgg) Update(v moonblade.Value, _ int64) {
	n := len([]rune(v.Stringify()))
	if a.best < 0 || (a.min && n < a.best) || (!a.min && n > a.best) {
		a.best = n
	}
}
func (a *lengthAgg) Combine(other Aggregator) {
	o := other.(*lengthAgg)
	if o.best >= 0 {
		a.Update(moonblade.String(pad(o.best)), 0)
	}
}
func (a *lengthAgg) Finalize() moonblade.Value {
	if a.best < 0 {
		return moonblade.Null()
	}
	return moonblade.Int(int64(a.best))
}

func pad(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}

// argExtremeAgg tracks the row index of the min/max numeric value
// seen, ties broken by the smallest row index (spec §7).
type argExtremeAgg struct {
	best    float64
	rowIdx  int64
	has     bool
	smaller bool
}

func (a *argExtremeAgg) Name() string { return "argmin" }
func (a *argExtremeAgg) Update(v moonblade.Value, rowIndex int64) {
	f, ok := v.AsFloat()
	if !ok {
		return
	}
	if !a.has {
		a.best, a.rowIdx, a.has = f, rowIndex, true
		return
	}
	better := (a.smaller && f < a.best) || (!a.smaller && f > a.best)
	tie := f == a.best && rowIndex < a.rowIdx
	if better || tie {
		a.best, a.rowIdx = f, rowIndex
	}
}
func (a *argExtremeAgg) Combine(other Aggregator) {
	o := other.(*argExtremeAgg)
	if o.has {
		a.Update(moonblade.Float(o.best), o.rowIdx)
	}
}
func (a *argExtremeAgg) Finalize() moonblade.Value {
	if !a.has {
		return moonblade.Null()
	}
	return moonblade.Int(a.rowIdx)
}

type spanUnit int

const (
	unitSeconds spanUnit = iota
	unitHours
	unitDays
	unitYears
)

// countSpanAgg tracks earliest/latest parseable datetimes and reports
// the span between them in the configured unit.
type countSpanAgg struct {
	earliest, latest int64
	has              bool
	unit             spanUnit
}

func (a *countSpanAgg) Name() string { return "count_seconds" }
func (a *countSpanAgg) Update(v moonblade.Value, _ int64) {
	t, err := moonblade.ParseDatetime(v.Stringify())
	if err != nil {
		return
	}
	unix := t.Unix()
	if !a.has {
		a.earliest, a.latest, a.has = unix, unix, true
		return
	}
	if unix < a.earliest {
		a.earliest = unix
	}
	if unix > a.latest {
		a.latest = unix
	}
}
func (a *countSpanAgg) Combine(other Aggregator) {
	o := other.(*countSpanAgg)
	if !o.has {
		return
	}
	if !a.has {
		*a = *o
		return
	}
	if o.earliest < a.earliest {
		a.earliest = o.earliest
	}
	if o.latest > a.latest {
		a.latest = o.latest
	}
}
func (a *countSpanAgg) Finalize() moonblade.Value {
	if !a.has {
		return moonblade.Null()
	}
	span := float64(a.latest - a.earliest)
	switch a.unit {
	case unitSeconds:
		return moonblade.Float(span)
	case unitHours:
		return moonblade.Float(span / 3600)
	case unitDays:
		return moonblade.Float(span / 86400)
	case unitYears:
		return moonblade.Float(span / (86400 * 365.25))
	}
	return moonblade.Float(span)
}
