package command

import (
	"strings"

	"github.com/xanlabs/xan-go/internal/agg"
	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/group"
	"github.com/xanlabs/xan-go/internal/moonblade"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// aggClause is one parsed `func(expr) [as name]` item from a
// comma-separated aggregation clause, shared by groupby/stats/agg.
// The argument expression is compiled like any other moonblade
// program, so `sum(price * qty)` works exactly like a bare column
// reference.
type aggClause struct {
	Func string
	Arg  *moonblade.Program
	Name string
}

// parseAggClause splits expr on top-level commas and parses each part
// as a moonblade call `name(args...) [as alias]`, binding the single
// argument against headers/arity. Zero-arg forms (`count()`) are
// allowed — Arg is nil and the aggregator receives a Null value:
// count counts the row, count_empty counts it as empty, and
// value-reading aggregators such as sum, mean, min and max skip it.
func parseAggClause(expr string, headers *csvio.ByteRecord, arity int, headerless bool) ([]aggClause, error) {
	var out []aggClause
	for _, part := range splitTopLevel(expr, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ast, err := moonblade.Parse(part)
		if err != nil {
			return nil, err
		}
		name := ""
		inner := ast
		if inner.Kind == moonblade.NodeNamed {
			name = inner.Name
			inner = inner.Inner
		}
		if inner.Kind != moonblade.NodeCall {
			return nil, xerr.Newf(xerr.Parse, "aggregation clause %q must be a function call", part)
		}
		if _, err := agg.New(inner.Func); err != nil {
			return nil, err
		}
		var prog *moonblade.Program
		if len(inner.Args) > 0 {
			prog, err = moonblade.Concretize(inner.Args[0], headers, arity, headerless)
			if err != nil {
				return nil, err
			}
		}
		if name == "" {
			name = inner.Func
		}
		out = append(out, aggClause{Func: inner.Func, Arg: prog, Name: name})
	}
	return out, nil
}

func splitTopLevel(s string, sep rune) []string {
	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i, r := range s {
		switch r {
		case '"':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
			if !inQuote && depth > 0 {
				depth--
			}
		default:
			if r == sep && !inQuote && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + len(string(sep))
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// newTupleFactory builds a group.NewTupleFunc from parsed clauses.
func newTupleFactory(clauses []aggClause) group.NewTupleFunc {
	return func() group.Tuple {
		tuple := make(group.Tuple, len(clauses))
		for i, c := range clauses {
			a, _ := agg.New(c.Func) // validated during parseAggClause
			tuple[i] = a
		}
		return tuple
	}
}

// evalClauseValues evaluates every clause's argument expression
// against one row, substituting Null for zero-arg aggregations.
func evalClauseValues(clauses []aggClause, row *csvio.ByteRecord) ([]moonblade.Value, error) {
	out := make([]moonblade.Value, len(clauses))
	for i, c := range clauses {
		if c.Arg == nil {
			out[i] = moonblade.Null()
			continue
		}
		v, err := moonblade.Eval(c.Arg, c.Arg.Root, row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
