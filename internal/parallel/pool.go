// Package parallel implements the parallel execution substrate: a
// bounded worker pool over file/byte-range chunks, ordered or
// unordered result merging, a shared-mutex output writer, and
// cooperative cancellation via an atomic stop flag.
package parallel

import (
	"cmp"
	"context"
	"runtime"
	"slices"

	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/errgroup"

	"github.com/xanlabs/xan-go/internal/util"
)

// DefaultSoftCap bounds worker count even on very large machines
// (spec: "soft cap ≈ 16 unless overridden").
const DefaultSoftCap = 16

// CoreCount reports the core count to size the default pool, via
// gopsutil rather than runtime.NumCPU so container cgroup quotas are
// respected the same way the rest of the toolkit's resource
// accounting does.
func CoreCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// ResolveWorkerCount applies the --threads override and the soft
// cap to the detected core count. requested<=0 means "auto".
func ResolveWorkerCount(requested int) int {
	if requested > 0 {
		return requested
	}
	n := CoreCount()
	if n > DefaultSoftCap {
		n = DefaultSoftCap
	}
	if n < 1 {
		n = 1
	}
	return n
}

type orderedOutput struct {
	order  int
	output any
}

// MapOrdered runs f over inputs with up to concurrency workers in
// flight, and returns outputs in the same order as inputs regardless
// of completion order. Adapted from the teacher's
// ConcurrentMapFuncWithError: an errgroup bounds concurrency, a
// channel collects (order, result) pairs, and a final sort restores
// input order — generalized here to carry a context for cooperative
// cancellation via StopFlag.
func MapOrdered[Tin any, Tout any](ctx context.Context, inputs []Tin, concurrency int, f func(context.Context, Tin) (Tout, error)) ([]Tout, error) {
	eg, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}

	ch := make(chan orderedOutput, len(inputs))
	for i := range inputs {
		order := i
		in := inputs[i]
		eg.Go(func() error {
			out, err := f(gctx, in)
			if err != nil {
				return err
			}
			ch <- orderedOutput{order, out}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	close(ch)

	tmp := make([]orderedOutput, 0, len(inputs))
	for t := range ch {
		tmp = append(tmp, t)
	}
	slices.SortFunc(tmp, func(a, b orderedOutput) int { return cmp.Compare(a.order, b.order) })

	return util.TransformSlice(tmp, func(t orderedOutput) Tout { return t.output.(Tout) }), nil
}

// ForEachUnordered runs f over inputs with up to concurrency workers,
// for cat-mode chunk processing where per-chunk order is preserved
// internally but cross-chunk order is not guaranteed (spec §4.8).
func ForEachUnordered[Tin any](ctx context.Context, inputs []Tin, concurrency int, f func(context.Context, Tin) error) error {
	eg, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}
	for i := range inputs {
		in := inputs[i]
		eg.Go(func() error { return f(gctx, in) })
	}
	return eg.Wait()
}
