package agg

import (
	"testing"

	"github.com/xanlabs/xan-go/internal/moonblade"
)

func intsToValues(xs ...int64) []moonblade.Value {
	out := make([]moonblade.Value, len(xs))
	for i, x := range xs {
		out[i] = moonblade.Int(x)
	}
	return out
}

func asInts(t *testing.T, vals []moonblade.Value) []int64 {
	t.Helper()
	out := make([]int64, len(vals))
	for i, v := range vals {
		n, ok := v.AsInt()
		if !ok {
			t.Fatalf("value %d (%v) is not an integer", i, v)
		}
		out[i] = n
	}
	return out
}

// TestRollingMeanScenarioS6 mirrors spec.md scenario S6: a rolling
// mean of window size 2 over 1,2,3,4 yields null,1.5,2.5,3.5.
func TestRollingMeanScenarioS6(t *testing.T) {
	vals := intsToValues(1, 2, 3, 4)
	out, err := Window("rolling_mean", vals, 2, 0, 0, moonblade.Null())
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if out[0].Kind != moonblade.KindNull {
		t.Fatalf("first element before window fills should be null, got %v", out[0])
	}
	want := []float64{1.5, 2.5, 3.5}
	for i, w := range want {
		f, ok := out[i+1].AsFloat()
		if !ok || f != w {
			t.Fatalf("rolling_mean[%d]: got %v, want %v", i+1, out[i+1], w)
		}
	}
}

func TestCumsum(t *testing.T) {
	vals := intsToValues(1, 2, 3, 4)
	out, err := Window("cumsum", vals, 0, 0, 0, moonblade.Null())
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	want := []float64{1, 3, 6, 10}
	for i, w := range want {
		f, _ := out[i].AsFloat()
		if f != w {
			t.Fatalf("cumsum[%d]: got %v, want %v", i, f, w)
		}
	}
}

func TestCumcount(t *testing.T) {
	vals := intsToValues(9, 9, 9)
	out, err := Window("cumcount", vals, 0, 0, 0, moonblade.Null())
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	got := asInts(t, out)
	want := []int64{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cumcount: got %v, want %v", got, want)
		}
	}
}

func TestLagLeadFallback(t *testing.T) {
	vals := intsToValues(10, 20, 30)
	fallback := moonblade.Int(-1)

	lagged, err := Window("lag", vals, 0, 1, 0, fallback)
	if err != nil {
		t.Fatalf("Window(lag): %v", err)
	}
	wantLag := []int64{-1, 10, 20}
	got := asInts(t, lagged)
	for i := range wantLag {
		if got[i] != wantLag[i] {
			t.Fatalf("lag: got %v, want %v", got, wantLag)
		}
	}

	led, err := Window("lead", vals, 0, 1, 0, fallback)
	if err != nil {
		t.Fatalf("Window(lead): %v", err)
	}
	wantLead := []int64{20, 30, -1}
	got2 := asInts(t, led)
	for i := range wantLead {
		if got2[i] != wantLead[i] {
			t.Fatalf("lead: got %v, want %v", got2, wantLead)
		}
	}
}

func TestRankHandlesTies(t *testing.T) {
	vals := intsToValues(10, 20, 20, 30)
	out, err := Window("rank", vals, 0, 0, 0, moonblade.Null())
	if err != nil {
		t.Fatalf("Window(rank): %v", err)
	}
	got := asInts(t, out)
	// 10 -> rank 1; the two 20s tie at rank 2; 30 skips to rank 4.
	want := []int64{1, 2, 2, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank: got %v, want %v", got, want)
		}
	}
}

func TestDenseRankDoesNotSkip(t *testing.T) {
	vals := intsToValues(10, 20, 20, 30)
	out, err := Window("dense_rank", vals, 0, 0, 0, moonblade.Null())
	if err != nil {
		t.Fatalf("Window(dense_rank): %v", err)
	}
	got := asInts(t, out)
	want := []int64{1, 2, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dense_rank: got %v, want %v", got, want)
		}
	}
}

func TestNtileSplitsIntoEqualBuckets(t *testing.T) {
	vals := intsToValues(1, 2, 3, 4)
	out, err := Window("ntile", vals, 0, 0, 2, moonblade.Null())
	if err != nil {
		t.Fatalf("Window(ntile): %v", err)
	}
	got := asInts(t, out)
	want := []int64{1, 1, 2, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ntile: got %v, want %v", got, want)
		}
	}
}

func TestFracSumsToOne(t *testing.T) {
	vals := intsToValues(1, 1, 2)
	out, err := Window("frac", vals, 0, 0, 0, moonblade.Null())
	if err != nil {
		t.Fatalf("Window(frac): %v", err)
	}
	var total float64
	for _, v := range out {
		f, _ := v.AsFloat()
		total += f
	}
	if !almostEqual(total, 1.0) {
		t.Fatalf("frac values should sum to 1, got %v", total)
	}
}

func TestUnknownWindowFunctionErrors(t *testing.T) {
	_, err := Window("not_a_window_fn", intsToValues(1), 0, 0, 0, moonblade.Null())
	if err == nil {
		t.Fatal("expected an error for an unknown window function")
	}
}
