package agg

import (
	"math"
	"sort"

	"github.com/xanlabs/xan-go/internal/moonblade"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// Window computes one of the `xan window` functions over an entire
// buffered column (spec §4.4's window variants). Ranking and ntile
// require the full column; cumulative variants are computed in a
// single O(n) pass and rolling variants re-scan each window of width
// windowSize (O(n·windowSize)). All take the buffered slice for a
// uniform call shape since `xan window` already materializes its
// input column.
func Window(kind string, values []moonblade.Value, windowSize, k, n int, fallback moonblade.Value) ([]moonblade.Value, error) {
	switch kind {
	case "cumsum":
		return cumulative(values, func(acc, x float64) float64 { return acc + x }, 0), nil
	case "cummean":
		return cumMean(values), nil
	case "cumcount":
		return cumCount(values), nil
	case "rolling_mean":
		return rolling(values, windowSize, rollingMean), nil
	case "rolling_sum":
		return rolling(values, windowSize, rollingSum), nil
	case "rolling_var":
		return rolling(values, windowSize, rollingVar), nil
	case "lag":
		return lag(values, k, fallback), nil
	case "lead":
		return lead(values, k, fallback), nil
	case "rank":
		return rank(values, false), nil
	case "dense_rank":
		return rank(values, true), nil
	case "cume_dist":
		return cumeDist(values), nil
	case "ntile":
		return ntile(values, n), nil
	case "frac":
		return frac(values), nil
	default:
		return nil, xerr.Newf(xerr.Arg, "unknown window function %q", kind)
	}
}

func asFloats(values []moonblade.Value) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		f, _ := v.AsFloat()
		out[i] = f
	}
	return out
}

func cumulative(values []moonblade.Value, f func(acc, x float64) float64, init float64) []moonblade.Value {
	out := make([]moonblade.Value, len(values))
	acc := init
	for i, v := range values {
		x, _ := v.AsFloat()
		acc = f(acc, x)
		out[i] = moonblade.Float(acc)
	}
	return out
}

func cumMean(values []moonblade.Value) []moonblade.Value {
	out := make([]moonblade.Value, len(values))
	var sum float64
	for i, v := range values {
		x, _ := v.AsFloat()
		sum += x
		out[i] = moonblade.Float(sum / float64(i+1))
	}
	return out
}

func cumCount(values []moonblade.Value) []moonblade.Value {
	out := make([]moonblade.Value, len(values))
	for i := range values {
		out[i] = moonblade.Int(int64(i + 1))
	}
	return out
}

// rolling applies f over each length-w trailing window (w-1 nulls at
// the start, matching a circular buffer that hasn't filled yet).
func rolling(values []moonblade.Value, w int, f func(window []float64) float64) []moonblade.Value {
	floats := asFloats(values)
	out := make([]moonblade.Value, len(values))
	for i := range values {
		if i+1 < w {
			out[i] = moonblade.Null()
			continue
		}
		out[i] = moonblade.Float(f(floats[i-w+1 : i+1]))
	}
	return out
}

func rollingMean(window []float64) float64 {
	var sum float64
	for _, x := range window {
		sum += x
	}
	return sum / float64(len(window))
}

func rollingSum(window []float64) float64 {
	var sum float64
	for _, x := range window {
		sum += x
	}
	return sum
}

func rollingVar(window []float64) float64 {
	mean := rollingMean(window)
	var sumSq float64
	for _, x := range window {
		d := x - mean
		sumSq += d * d
	}
	if len(window) < 2 {
		return 0
	}
	return sumSq / float64(len(window)-1)
}

func lag(values []moonblade.Value, k int, fallback moonblade.Value) []moonblade.Value {
	out := make([]moonblade.Value, len(values))
	for i := range values {
		if i-k < 0 {
			out[i] = fallback
			continue
		}
		out[i] = values[i-k]
	}
	return out
}

func lead(values []moonblade.Value, k int, fallback moonblade.Value) []moonblade.Value {
	out := make([]moonblade.Value, len(values))
	for i := range values {
		if i+k >= len(values) {
			out[i] = fallback
			continue
		}
		out[i] = values[i+k]
	}
	return out
}

// rank implements SQL-style RANK/DENSE_RANK: equal values share a
// rank, and (for plain rank) the next distinct value's rank skips
// ahead by the number of tied rows.
func rank(values []moonblade.Value, dense bool) []moonblade.Value {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return less(values[order[i]], values[order[j]]) })

	ranks := make([]int64, n)
	var r, d int64
	for pos, idx := range order {
		if pos == 0 || !moonblade.Equal(values[order[pos-1]], values[idx]) {
			d++
			r = int64(pos) + 1
		}
		if dense {
			ranks[idx] = d
		} else {
			ranks[idx] = r
		}
	}
	out := make([]moonblade.Value, n)
	for i, rk := range ranks {
		out[i] = moonblade.Int(rk)
	}
	return out
}

func cumeDist(values []moonblade.Value) []moonblade.Value {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return less(values[order[i]], values[order[j]]) })
	dist := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j < n && moonblade.Equal(values[order[i]], values[order[j]]) {
			j++
		}
		d := float64(j) / float64(n)
		for k := i; k < j; k++ {
			dist[order[k]] = d
		}
		i = j
	}
	out := make([]moonblade.Value, n)
	for i, d := range dist {
		out[i] = moonblade.Float(d)
	}
	return out
}

func ntile(values []moonblade.Value, buckets int) []moonblade.Value {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return less(values[order[i]], values[order[j]]) })
	out := make([]moonblade.Value, n)
	for pos, idx := range order {
		bucket := int(math.Floor(float64(pos) * float64(buckets) / float64(n)))
		if bucket >= buckets {
			bucket = buckets - 1
		}
		out[idx] = moonblade.Int(int64(bucket + 1))
	}
	return out
}

func frac(values []moonblade.Value) []moonblade.Value {
	floats := asFloats(values)
	var total float64
	for _, f := range floats {
		total += f
	}
	out := make([]moonblade.Value, len(values))
	for i, f := range floats {
		if total == 0 {
			out[i] = moonblade.Null()
			continue
		}
		out[i] = moonblade.Float(f / total)
	}
	return out
}
