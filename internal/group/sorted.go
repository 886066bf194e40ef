package group

import "github.com/xanlabs/xan-go/internal/moonblade"

// SortedGrouper implements the --sorted grouping mode (spec §4.5):
// input is assumed already grouped by consecutive identical keys, so
// only one tuple needs to be live at a time and memory is O(1) in the
// number of groups. Emit is called when the key changes; Finish flushes
// the last open group.
type SortedGrouper struct {
	newTuple NewTupleFunc
	emit     func(key string, tuple Tuple)

	curKey   string
	curTuple Tuple
	open     bool
}

func NewSortedGrouper(newTuple NewTupleFunc, emit func(key string, tuple Tuple)) *SortedGrouper {
	return &SortedGrouper{newTuple: newTuple, emit: emit}
}

// Add folds one row into the currently open group, flushing and
// starting a new one if key differs from the previous row's key. The
// caller is responsible for guaranteeing rows arrive in key order;
// SortedGrouper does not itself verify sortedness.
func (g *SortedGrouper) Add(key string, rowIndex int64, values []moonblade.Value) {
	if g.open && key != g.curKey {
		g.emit(g.curKey, g.curTuple)
		g.open = false
	}
	if !g.open {
		g.curKey = key
		g.curTuple = g.newTuple()
		g.open = true
	}
	for j, v := range values {
		if j < len(g.curTuple) {
			g.curTuple[j].Update(v, rowIndex)
		}
	}
}

// Finish flushes the last open group, if any, after the final Add; a
// second call is a no-op.
func (g *SortedGrouper) Finish() {
	if g.open {
		g.emit(g.curKey, g.curTuple)
		g.open = false
	}
}
