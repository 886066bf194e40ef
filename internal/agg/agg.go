// Package agg implements the streaming and buffering aggregator
// catalog: every aggregator exposes New/Update/Combine/Finalize so the
// grouping engine and the parallel substrate can fold a column's
// values down to one moonblade.Value, independently per worker, and
// merge worker-local state in a single-threaded reduce phase.
package agg

import (
	"github.com/xanlabs/xan-go/internal/moonblade"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// Aggregator is the contract every aggregator in the catalog
// satisfies. Combine MUST produce the same result as if every Update
// call from other had instead been applied directly to the receiver
// (exact for streaming families; approximate merges for sketches obey
// their published merge semantics).
type Aggregator interface {
	Update(v moonblade.Value, rowIndex int64)
	Combine(other Aggregator)
	Finalize() moonblade.Value
	Name() string
}

// Factory builds a fresh, zeroed aggregator instance for name.
type Factory func() Aggregator

var registry = map[string]Factory{}

func register(name string, f Factory) { registry[name] = f }

// New constructs the named aggregator, or an error if name is not in
// the catalog (spec §4.4's "closed catalog" contract, mirrored from
// moonblade's function catalog).
func New(name string) (Aggregator, error) {
	f, ok := registry[name]
	if !ok {
		return nil, xerr.Newf(xerr.Arg, "unknown aggregation %q", name)
	}
	return f(), nil
}

// Names lists every registered aggregator, for --help listings and
// argument validation.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}
