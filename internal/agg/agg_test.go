package agg

import (
	"testing"

	"github.com/xanlabs/xan-go/internal/moonblade"
)

// shardAndCombine partitions vals into consecutive shards of the given
// shardSizes, runs each shard through its own fresh aggregator, then
// Combines them all into the first, to exercise multi-way merges.
func shardAndCombine(t *testing.T, name string, vals []moonblade.Value, shardSizes []int) moonblade.Value {
	t.Helper()
	var combined Aggregator
	i := 0
	for _, size := range shardSizes {
		a, err := New(name)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		for j := 0; j < size && i < len(vals); j, i = j+1, i+1 {
			a.Update(vals[i], int64(i))
		}
		if combined == nil {
			combined = a
		} else {
			combined.Combine(a)
		}
	}
	return combined.Finalize()
}

func singleShot(t *testing.T, name string, vals []moonblade.Value) moonblade.Value {
	t.Helper()
	a, err := New(name)
	if err != nil {
		t.Fatalf("New(%q): %v", name, err)
	}
	for i, v := range vals {
		a.Update(v, int64(i))
	}
	return a.Finalize()
}

func floatsToValues(xs []float64) []moonblade.Value {
	out := make([]moonblade.Value, len(xs))
	for i, x := range xs {
		out[i] = moonblade.Float(x)
	}
	return out
}

// TestCombineCommutativity checks spec invariant 5: sharding a column
// across workers and combining must equal the single-pass result, for
// every streaming (exact) aggregator in the catalog.
func TestCombineCommutativity(t *testing.T) {
	vals := floatsToValues([]float64{3, 1, 4, 1, 5, 9, 2, 6})

	names := []string{"count", "sum", "mean", "variance", "var_pop", "stddev", "stddev_pop", "min", "max", "rms"}
	for _, name := range names {
		name := name
		t.Run(name, func(t *testing.T) {
			single := singleShot(t, name, vals)
			sharded := shardAndCombine(t, name, vals, []int{3, 2, 3})
			shardedOther := shardAndCombine(t, name, vals, []int{1, 1, 1, 1, 1, 1, 1, 1})

			sf, sok := single.AsFloat()
			hf, hok := sharded.AsFloat()
			of, ook := shardedOther.AsFloat()
			if !sok || !hok || !ook {
				t.Fatalf("expected numeric results, got %v / %v / %v", single, sharded, shardedOther)
			}
			if !almostEqual(sf, hf) {
				t.Fatalf("%s: single-pass %v != sharded(3,2,3) %v", name, sf, hf)
			}
			if !almostEqual(sf, of) {
				t.Fatalf("%s: single-pass %v != sharded(all 1s) %v", name, sf, of)
			}
		})
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-6
}

func TestSumKahanAccuracy(t *testing.T) {
	vals := floatsToValues([]float64{1, 2, 3, 4, 5})
	got := singleShot(t, "sum", vals)
	if f, _ := got.AsFloat(); f != 15 {
		t.Fatalf("sum: got %v, want 15", f)
	}
}

func TestCountEmptyCountsNullAndBlank(t *testing.T) {
	vals := []moonblade.Value{moonblade.Null(), moonblade.String(""), moonblade.String("x"), moonblade.Int(1)}
	got := singleShot(t, "count_empty", vals)
	if n, _ := got.AsInt(); n != 2 {
		t.Fatalf("count_empty: got %v, want 2", got)
	}
}

func TestMinMaxNumeric(t *testing.T) {
	nums := []moonblade.Value{moonblade.Int(10), moonblade.Int(2), moonblade.Int(33)}
	min := singleShot(t, "min", nums)
	max := singleShot(t, "max", nums)
	if f, _ := min.AsFloat(); f != 2 {
		t.Fatalf("min: got %v, want 2", min)
	}
	if f, _ := max.AsFloat(); f != 33 {
		t.Fatalf("max: got %v, want 33", max)
	}
}

func TestFirstLastRespectRowIndexNotArrivalOrder(t *testing.T) {
	// Combine two shards out of row-index order; first/last must still
	// resolve by row index, not by which shard was merged first.
	// shard 2 (rows 2,3) combined before shard 1 (rows 0,1)
	shard2First, _ := New("first")
	shard2First.Update(moonblade.String("row2"), 2)
	shard2First.Update(moonblade.String("row3"), 3)
	shard1First, _ := New("first")
	shard1First.Update(moonblade.String("row0"), 0)
	shard1First.Update(moonblade.String("row1"), 1)
	shard2First.Combine(shard1First)
	if got := shard2First.Finalize(); got.S != "row0" {
		t.Fatalf("first: got %q, want row0 regardless of combine order", got.S)
	}

	shard2Last, _ := New("last")
	shard2Last.Update(moonblade.String("row2"), 2)
	shard2Last.Update(moonblade.String("row3"), 3)
	shard1Last, _ := New("last")
	shard1Last.Update(moonblade.String("row0"), 0)
	shard1Last.Update(moonblade.String("row1"), 1)
	shard1Last.Combine(shard2Last)
	if got := shard1Last.Finalize(); got.S != "row3" {
		t.Fatalf("last: got %q, want row3 regardless of combine order", got.S)
	}
}

func TestArgMinTieBreakOnRowIndex(t *testing.T) {
	a, _ := New("argmin")
	a.Update(moonblade.Int(5), 4)
	a.Update(moonblade.Int(5), 1) // same value, earlier row index should win
	a.Update(moonblade.Int(9), 2)
	got := a.Finalize()
	if n, _ := got.AsInt(); n != 1 {
		t.Fatalf("argmin tie-break: got row %v, want 1", got)
	}
}

func TestCardinalityExactCount(t *testing.T) {
	vals := []moonblade.Value{moonblade.String("a"), moonblade.String("b"), moonblade.String("a"), moonblade.String("c")}
	got := singleShot(t, "cardinality", vals)
	if n, _ := got.AsInt(); n != 3 {
		t.Fatalf("cardinality: got %v, want 3", got)
	}
}

func TestApproxCardinalityReasonablyAccurate(t *testing.T) {
	vals := make([]moonblade.Value, 10000)
	for i := range vals {
		vals[i] = moonblade.String(stringify(i))
	}
	got := singleShot(t, "approx_cardinality", vals)
	n, _ := got.AsInt()
	// HLL at p=14 should be within a few percent of the true 10000.
	if n < 9500 || n > 10500 {
		t.Fatalf("approx_cardinality: got %v, want near 10000", n)
	}
}

func stringify(i int) string {
	digits := "0123456789"
	if i == 0 {
		return "0"
	}
	var buf []byte
	for i > 0 {
		buf = append([]byte{digits[i%10]}, buf...)
		i /= 10
	}
	return string(buf)
}

func TestExactQuantileMedian(t *testing.T) {
	vals := floatsToValues([]float64{1, 2, 3, 4, 5})
	got := singleShot(t, "median", vals)
	if f, _ := got.AsFloat(); f != 3 {
		t.Fatalf("median: got %v, want 3", f)
	}
}

func TestModePicksMostFrequentFirstOccurrenceTieBreak(t *testing.T) {
	vals := []moonblade.Value{moonblade.String("b"), moonblade.String("a"), moonblade.String("a"), moonblade.String("b")}
	got := singleShot(t, "mode", vals)
	// "b" and "a" tie at 2 each; "b" occurred first, so it wins.
	if got.S != "b" {
		t.Fatalf("mode: got %q, want b (first occurrence tie-break)", got.S)
	}
}

func TestTopKOrdersByFrequencyDescending(t *testing.T) {
	a := NewTopK("top", 2)
	vals := []moonblade.Value{
		moonblade.String("x"), moonblade.String("y"), moonblade.String("y"),
		moonblade.String("z"), moonblade.String("z"), moonblade.String("z"),
	}
	for i, v := range vals {
		a.Update(v, int64(i))
	}
	got := a.Finalize()
	if got.Kind != moonblade.KindList || len(got.L) != 2 {
		t.Fatalf("top(2): got %v", got)
	}
	if got.L[0].S != "z" || got.L[1].S != "y" {
		t.Fatalf("top(2): got %v, want [z y]", got.L)
	}
}

func TestCorrelationPerfectLinearRelationship(t *testing.T) {
	a, _ := New("correlation")
	for i := 1.0; i <= 5; i++ {
		a.Update(moonblade.List([]moonblade.Value{moonblade.Float(i), moonblade.Float(2 * i)}), 0)
	}
	got := a.Finalize()
	f, _ := got.AsFloat()
	if !almostEqual(f, 1.0) {
		t.Fatalf("correlation: got %v, want ~1.0 for a perfectly linear relationship", f)
	}
}

func TestTypeAndTypesInference(t *testing.T) {
	vals := []moonblade.Value{moonblade.Int(1), moonblade.String("x"), moonblade.String("")}
	typ := singleShot(t, "type", vals)
	if typ.S != "int" {
		t.Fatalf("type: got %q, want int (most frequent-ish per inferType priority)", typ.S)
	}
	types := singleShot(t, "types", vals)
	if types.Kind != moonblade.KindList || len(types.L) != 3 {
		t.Fatalf("types: got %v, want 3 distinct kinds", types)
	}
}

func TestUnknownAggregatorNameErrors(t *testing.T) {
	_, err := New("not_a_real_aggregator")
	if err == nil {
		t.Fatal("expected an error for an unregistered aggregator name")
	}
}
