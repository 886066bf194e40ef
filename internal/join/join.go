// Package join implements the exact and fuzzy join engine: a build
// side indexed into a GroupKey multimap, and a streamed probe side
// that emits combined rows per variant (inner, left, right, full,
// semi, anti, cross).
package join

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/xanlabs/xan-go/internal/csvio"
)

// Variant selects which join semantics Run applies.
type Variant int

const (
	Inner Variant = iota
	Left
	Right
	Full
	Semi
	Anti
	Cross
)

func ParseVariant(s string) (Variant, bool) {
	switch s {
	case "inner", "":
		return Inner, true
	case "left":
		return Left, true
	case "right":
		return Right, true
	case "full":
		return Full, true
	case "semi":
		return Semi, true
	case "anti":
		return Anti, true
	case "cross":
		return Cross, true
	default:
		return 0, false
	}
}

// BuildSide reports which input (left=0 / right=1) is indexed for a
// variant, per spec §4.6's table. Cross builds no key index: the right
// side (1) is buffered whole and every left row is paired with every
// buffered right row.
func BuildSide(v Variant) int {
	switch v {
	case Right:
		return 0 // left indexed
	default:
		return 1 // right indexed (inner/full/cross/left/semi/anti)
	}
}

// Options configures key normalization and null participation.
type Options struct {
	CaseInsensitive bool
	IncludeNulls    bool
	DropKey         bool
}

var caser = cases.Fold()

// NormalizeKey implements the case-insensitive folding contract:
// Unicode case folding via golang.org/x/text/cases, not a naive
// ASCII-only ToLower, so non-ASCII headers fold correctly too.
func NormalizeKey(s string, opt Options) string {
	if !opt.CaseInsensitive {
		return s
	}
	return caser.String(s)
}

// Index is the build-side multimap: GroupKey string to row indices
// into the build side's buffered records.
type Index struct {
	buckets map[string][]int
	opt     Options
}

func NewIndex(opt Options) *Index {
	return &Index{buckets: map[string][]int{}, opt: opt}
}

// Add indexes one build-side row under key (joined from its selected
// fields). Rows whose key is empty are skipped unless IncludeNulls.
func (ix *Index) Add(rowIdx int, key string) {
	if key == "" && !ix.opt.IncludeNulls {
		return
	}
	key = NormalizeKey(key, ix.opt)
	ix.buckets[key] = append(ix.buckets[key], rowIdx)
}

// Lookup returns the build-side row indices matching a probe key, or
// nil if none.
func (ix *Index) Lookup(key string) []int {
	if key == "" && !ix.opt.IncludeNulls {
		return nil
	}
	return ix.buckets[NormalizeKey(key, ix.opt)]
}

// JoinKey concatenates selected field values with a separator
// unlikely to collide, mirroring the grouping engine's Fingerprint
// but kept local to avoid a cross-package dependency for one helper.
func JoinKey(fields [][]byte) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return strings.Join(parts, "\x00")
}

// Combine builds the output record for one matched (or outer-padded)
// pair. leftArity/rightArity size the padding for unmatched sides.
// dropIndices names right-side column indices to omit when the
// column-drop rule applies (shared key names, case-insensitive off,
// --drop-key not set).
func Combine(left, right *csvio.ByteRecord, leftArity, rightArity int, dropRightIndices map[int]bool) *csvio.ByteRecord {
	out := csvio.NewByteRecord()
	if left != nil {
		for i := 0; i < leftArity; i++ {
			out.AppendField(left.Field(i))
		}
	} else {
		for i := 0; i < leftArity; i++ {
			out.AppendField(nil)
		}
	}
	if right != nil {
		for i := 0; i < rightArity; i++ {
			if dropRightIndices[i] {
				continue
			}
			out.AppendField(right.Field(i))
		}
	} else {
		for i := 0; i < rightArity; i++ {
			if dropRightIndices[i] {
				continue
			}
			out.AppendField(nil)
		}
	}
	return out
}

// ColumnDropSet computes which right-side column indices to drop per
// the column-drop rule: shared names with the left side, when
// case-insensitivity is off and --drop-key wasn't passed to force
// keeping both.
func ColumnDropSet(leftHeaders, rightHeaders *csvio.ByteRecord, opt Options) map[int]bool {
	drop := map[int]bool{}
	if opt.DropKey || opt.CaseInsensitive {
		return drop
	}
	leftNames := map[string]bool{}
	for i := 0; i < leftHeaders.Len(); i++ {
		leftNames[leftHeaders.FieldString(i)] = true
	}
	for i := 0; i < rightHeaders.Len(); i++ {
		if leftNames[rightHeaders.FieldString(i)] {
			drop[i] = true
		}
	}
	return drop
}
