package csvio

import (
	"strconv"
	"strings"

	"github.com/xanlabs/xan-go/internal/xerr"
)

// Selection is an ordered, possibly-duplicating list of column indices,
// produced by resolving the selection DSL against a header row (or
// against a bare arity, in headerless mode).
type Selection struct {
	Indices []int
}

// UnknownColumnError names a selection-DSL token that could not be
// resolved against the header row.
type UnknownColumnError struct{ Name string }

func (e *UnknownColumnError) Error() string { return "unknown column: " + e.Name }

// OutOfBoundsError names a positional reference outside [0, arity).
type OutOfBoundsError struct {
	Index, Arity int
}

func (e *OutOfBoundsError) Error() string {
	return "column index out of bounds: " + strconv.Itoa(e.Index) + " (arity " + strconv.Itoa(e.Arity) + ")"
}

// ResolveSelection parses and resolves a selection-DSL expression
// (spec §4.2) against headers (may be nil in headerless mode) and an
// arity (column count of a sample row). Compound, comma-separated
// selections preserve order and duplicates.
func ResolveSelection(expr string, headers *ByteRecord, arity int) (Selection, error) {
	var sel Selection
	for _, part := range splitTopLevelCommas(expr) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idxs, err := resolvePart(part, headers, arity)
		if err != nil {
			return Selection{}, err
		}
		sel.Indices = append(sel.Indices, idxs...)
	}
	return sel, nil
}

// All returns the identity selection 0..arity (spec invariant 2).
func All(arity int) Selection {
	sel := Selection{Indices: make([]int, arity)}
	for i := range sel.Indices {
		sel.Indices[i] = i
	}
	return sel
}

func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i, r := range s {
		switch r {
		case '"':
			inQuote = !inQuote
		case '[':
			if !inQuote {
				depth++
			}
		case ']':
			if !inQuote && depth > 0 {
				depth--
			}
		case ',':
			if !inQuote && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func resolvePart(part string, headers *ByteRecord, arity int) ([]int, error) {
	if part == "*" {
		idx := make([]int, arity)
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	if strings.HasPrefix(part, "!") {
		inner, err := resolvePart(part[1:], headers, arity)
		if err != nil {
			return nil, err
		}
		excluded := make(map[int]bool, len(inner))
		for _, i := range inner {
			excluded[i] = true
		}
		var out []int
		for i := 0; i < arity; i++ {
			if !excluded[i] {
				out = append(out, i)
			}
		}
		return out, nil
	}
	if a, b, ok := splitRange(part); ok {
		start, err := rangeEndpoint(a, headers, arity, 0)
		if err != nil {
			return nil, err
		}
		end, err := rangeEndpoint(b, headers, arity, arity-1)
		if err != nil {
			return nil, err
		}
		var out []int
		if start <= end {
			for i := start; i <= end; i++ {
				out = append(out, i)
			}
		} else {
			for i := start; i >= end; i-- {
				out = append(out, i)
			}
		}
		return out, nil
	}
	i, err := resolveSingle(part, headers, arity)
	if err != nil {
		return nil, err
	}
	return []int{i}, nil
}

// splitRange splits "a:b" at the first top-level colon not inside
// quotes or a nth-duplicate bracket, returning false if there is none.
func splitRange(s string) (a, b string, ok bool) {
	inQuote := false
	depth := 0
	for i, r := range s {
		switch r {
		case '"':
			inQuote = !inQuote
		case '[':
			if !inQuote {
				depth++
			}
		case ']':
			if !inQuote && depth > 0 {
				depth--
			}
		case ':':
			if !inQuote && depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

func rangeEndpoint(s string, headers *ByteRecord, arity, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return resolveSingle(s, headers, arity)
}

// resolveSingle resolves one name/name[k]/index token to a column index.
func resolveSingle(tok string, headers *ByteRecord, arity int) (int, error) {
	tok = unquote(tok)

	// name[k] nth-duplicate form.
	if open := strings.LastIndexByte(tok, '['); open != -1 && strings.HasSuffix(tok, "]") {
		name := tok[:open]
		kStr := tok[open+1 : len(tok)-1]
		k, err := strconv.Atoi(kStr)
		if err != nil {
			return 0, xerr.Op(xerr.Selection, tok, &UnknownColumnError{Name: tok})
		}
		return resolveNth(name, k, headers, arity)
	}

	// Pure integer (possibly negative) -> positional.
	if n, err := strconv.Atoi(tok); err == nil {
		idx := n
		if idx < 0 {
			idx += arity
		}
		if idx < 0 || idx >= arity {
			return 0, xerr.Op(xerr.Selection, tok, &OutOfBoundsError{Index: n, Arity: arity})
		}
		return idx, nil
	}

	if headers == nil {
		return 0, xerr.Op(xerr.Selection, tok, &UnknownColumnError{Name: tok})
	}
	return resolveNth(tok, 0, headers, arity)
}

func resolveNth(name string, k int, headers *ByteRecord, arity int) (int, error) {
	if headers == nil {
		return 0, xerr.Op(xerr.Selection, name, &UnknownColumnError{Name: name})
	}
	var matches []int
	for i := 0; i < headers.Len() && i < arity; i++ {
		if headers.FieldString(i) == name {
			matches = append(matches, i)
		}
	}
	if len(matches) == 0 {
		return 0, xerr.Op(xerr.Selection, name, &UnknownColumnError{Name: name})
	}
	if k < 0 {
		k += len(matches)
	}
	if k < 0 || k >= len(matches) {
		return 0, xerr.Op(xerr.Selection, name, &OutOfBoundsError{Index: k, Arity: len(matches)})
	}
	return matches[k], nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		inner := s[1 : len(s)-1]
		return strings.ReplaceAll(inner, `\"`, `"`)
	}
	return s
}
