// Package sortx implements in-memory and external sorting plus the
// three dedup modes (spec §4.7): sorted-streaming, hash-set, and
// external B-tree-backed.
package sortx

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/xanlabs/xan-go/internal/csvio"
)

// Order configures key comparison: Numeric parses keys as floats
// before comparing (falling back to byte comparison on parse
// failure); Reverse flips the comparator.
type Order struct {
	Numeric bool
	Reverse bool
}

// Row pairs a buffered record with its sort key and original row
// index, the index being what lets external merges break ties the
// same way an in-memory sort would (spec's stability-across-runs
// requirement).
type Row struct {
	Key       []byte
	OrigIndex int64
	Record    *csvio.ByteRecord
}

// CompareKeys implements Order's comparator contract.
func CompareKeys(a, b []byte, opt Order) int {
	c := 0
	if opt.Numeric {
		af, aerr := strconv.ParseFloat(string(bytes.TrimSpace(a)), 64)
		bf, berr := strconv.ParseFloat(string(bytes.TrimSpace(b)), 64)
		if aerr == nil && berr == nil {
			switch {
			case af < bf:
				c = -1
			case af > bf:
				c = 1
			default:
				c = 0
			}
		} else {
			c = bytes.Compare(a, b)
		}
	} else {
		c = bytes.Compare(a, b)
	}
	if opt.Reverse {
		c = -c
	}
	return c
}

// SortRows sorts rows in place. stable=false uses an unstable sort
// (spec's --unstable flag) for a constant-factor speedup when tie
// order doesn't matter to the caller; stable=true (the default)
// breaks ties by original row index so repeated sorts are
// reproducible.
func SortRows(rows []Row, opt Order, stable bool) {
	less := func(i, j int) bool {
		c := CompareKeys(rows[i].Key, rows[j].Key, opt)
		if c != 0 {
			return c < 0
		}
		return rows[i].OrigIndex < rows[j].OrigIndex
	}
	if stable {
		sort.SliceStable(rows, less)
	} else {
		sort.Slice(rows, less)
	}
}
