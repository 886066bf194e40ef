// Package moonblade implements the expression language used throughout
// xan-go: a lexer, a Pratt-style parser producing an AST, a
// concretization pass that binds column names to indices and folds
// constants, and a tree-walking evaluator over a small dynamically
// typed Value.
package moonblade

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
	KindRegex
	KindError
)

func (k Kind) String() string {
	return [...]string{"null", "bool", "int", "float", "string", "bytes", "list", "map", "regex", "error"}[k]
}

// MapEntry is one ordered key/value pair of a Value map.
type MapEntry struct {
	Key   string
	Value Value
}

// Value is moonblade's dynamically-typed, strongly-valued runtime
// value (spec §3). Only one of the typed fields is meaningful,
// selected by Kind; this keeps Value a flat struct (cheap to copy,
// no interface boxing on the hot path) rather than an interface{}.
type Value struct {
	Kind Kind

	B bool
	I int64
	F float64
	S string // also backs Bytes and Error.msg
	L []Value
	M []MapEntry
	R *regexp.Regexp

	ErrKind string // set when Kind == KindError
}

func Null() Value                { return Value{Kind: KindNull} }
func Bool(b bool) Value          { return Value{Kind: KindBool, B: b} }
func Int(i int64) Value          { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value      { return Value{Kind: KindFloat, F: f} }
func String(s string) Value      { return Value{Kind: KindString, S: s} }
func Bytes(b []byte) Value       { return Value{Kind: KindBytes, S: string(b)} }
func List(items []Value) Value   { return Value{Kind: KindList, L: items} }
func Regex(r *regexp.Regexp) Value { return Value{Kind: KindRegex, R: r} }
func Map(entries []MapEntry) Value { return Value{Kind: KindMap, M: entries} }

// Err builds an error Value the way the `err("msg")` builtin does.
func Err(kind, msg string) Value {
	return Value{Kind: KindError, ErrKind: kind, S: msg}
}

func Errf(kind, format string, args ...any) Value {
	return Err(kind, fmt.Sprintf(format, args...))
}

func (v Value) IsError() bool { return v.Kind == KindError }

func (v Value) ErrorString() string {
	if v.ErrKind != "" {
		return v.ErrKind + ": " + v.S
	}
	return v.S
}

// Truthy implements the truthiness table from spec §4.3: Null, false,
// 0, "", and empty list/map are falsey; everything else is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.B
	case KindInt:
		return v.I != 0
	case KindFloat:
		return v.F != 0
	case KindString, KindBytes:
		return v.S != ""
	case KindList:
		return len(v.L) != 0
	case KindMap:
		return len(v.M) != 0
	default:
		return true
	}
}

// AsFloat coerces numeric-ish values to float64, parsing strings on
// demand as spec §4.3 requires for arithmetic operators.
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.I), true
	case KindFloat:
		return v.F, true
	case KindString, KindBytes:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.S), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case KindBool:
		if v.B {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsInt coerces to int64 when the value is exactly integral.
func (v Value) AsInt() (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.I, true
	case KindFloat:
		if v.F == float64(int64(v.F)) {
			return int64(v.F), true
		}
		return 0, false
	case KindString, KindBytes:
		i, err := strconv.ParseInt(strings.TrimSpace(v.S), 10, 64)
		if err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v.S), 64)
		if err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// IsNumeric reports whether the value is int/float, or a string that
// parses as a number.
func (v Value) IsNumeric() bool {
	_, ok := v.AsFloat()
	return ok && (v.Kind == KindInt || v.Kind == KindFloat || v.Kind == KindString || v.Kind == KindBytes)
}

// Stringify implements the `++` concat operator's coercion: every
// value has a canonical string form.
func (v Value) Stringify() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindString, KindBytes:
		return v.S
	case KindError:
		return v.ErrorString()
	case KindList:
		parts := make([]string, len(v.L))
		for i, e := range v.L {
			parts[i] = e.Stringify()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := make([]string, len(v.M))
		for i, e := range v.M {
			parts[i] = e.Key + ": " + e.Value.Stringify()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindRegex:
		if v.R != nil {
			return v.R.String()
		}
		return ""
	default:
		return ""
	}
}

// lexCompare implements the string-compare family (eq/ne/lt/le/gt/ge):
// byte-lexicographic for bytes, code-point-lexicographic for strings,
// and a stringified fallback for everything else.
func lexCompare(a, b Value) int {
	return strings.Compare(a.Stringify(), b.Stringify())
}

// numCompare implements the numeric-compare family
// (==/!=/ < /<=/ > />=), returning ok=false when either operand
// cannot be coerced to a number.
func numCompare(a, b Value) (int, bool) {
	af, aok := a.AsFloat()
	bf, bok := b.AsFloat()
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

// Equal implements moonblade equality for `==` after numeric coercion
// fails over to a structural comparison (used by `in`, list/map
// membership, and aggregator keys).
func Equal(a, b Value) bool {
	if n, ok := numCompare(a, b); ok {
		return n == 0
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.B == b.B
	case KindString, KindBytes:
		return a.S == b.S
	case KindList:
		if len(a.L) != len(b.L) {
			return false
		}
		for i := range a.L {
			if !Equal(a.L[i], b.L[i]) {
				return false
			}
		}
		return true
	case KindMap:
		sortedA := sortedEntries(a.M)
		sortedB := sortedEntries(b.M)
		if len(sortedA) != len(sortedB) {
			return false
		}
		for i := range sortedA {
			if sortedA[i].Key != sortedB[i].Key || !Equal(sortedA[i].Value, sortedB[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func sortedEntries(m []MapEntry) []MapEntry {
	out := append([]MapEntry(nil), m...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// MapGet looks up a key in an ordered map; missing keys return Null
// (spec §4.3, indexing out of bounds on maps returns Null).
func MapGet(m Value, key string) Value {
	for _, e := range m.M {
		if e.Key == key {
			return e.Value
		}
	}
	return Null()
}
