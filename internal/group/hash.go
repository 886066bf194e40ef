package group

import (
	"github.com/xanlabs/xan-go/internal/agg"
	"github.com/xanlabs/xan-go/internal/moonblade"
)

// Tuple is one group's ordered set of aggregators, one per requested
// aggregation expression.
type Tuple []agg.Aggregator

// NewTupleFunc builds a fresh Tuple for a newly-seen group key.
type NewTupleFunc func() Tuple

// HashGrouper is the default grouping mode (spec §4.5): an ordered
// mapping from group key to aggregator tuple, insertion order
// preserved for output, memory proportional to the cardinality of the
// grouping selection. Grounded in the teacher's CanonicalMapIter
// idiom, generalized from sorted-key iteration to insertion-order
// iteration since group output order is first-seen, not sorted.
type HashGrouper struct {
	index    map[string]int
	keys     []string
	values   []Tuple
	newTuple NewTupleFunc
}

func NewHashGrouper(newTuple NewTupleFunc) *HashGrouper {
	return &HashGrouper{index: map[string]int{}, newTuple: newTuple}
}

// Add folds one row's selected values into the tuple for key,
// creating a new tuple on first sight of key.
func (g *HashGrouper) Add(key string, rowIndex int64, values []moonblade.Value) {
	i, ok := g.index[key]
	if !ok {
		i = len(g.keys)
		g.index[key] = i
		g.keys = append(g.keys, key)
		g.values = append(g.values, g.newTuple())
	}
	tuple := g.values[i]
	for j, v := range values {
		if j < len(tuple) {
			tuple[j].Update(v, rowIndex)
		}
	}
}

// Combine merges other into g: existing keys fold aggregator state
// together; keys only present in other are appended after g's own
// keys, in other's insertion order.
func (g *HashGrouper) Combine(other *HashGrouper) {
	for _, key := range other.keys {
		oi := other.index[key]
		i, ok := g.index[key]
		if !ok {
			i = len(g.keys)
			g.index[key] = i
			g.keys = append(g.keys, key)
			g.values = append(g.values, other.values[oi])
			continue
		}
		tuple := g.values[i]
		for j, a := range other.values[oi] {
			if j < len(tuple) {
				tuple[j].Combine(a)
			}
		}
	}
}

// Len reports the number of distinct groups seen so far.
func (g *HashGrouper) Len() int { return len(g.keys) }

// Each calls f once per group, in first-seen order.
func (g *HashGrouper) Each(f func(key string, tuple Tuple)) {
	for i, key := range g.keys {
		f(key, g.values[i])
	}
}
