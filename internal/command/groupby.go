package command

import (
	"io"

	flags "github.com/jessevdk/go-flags"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/group"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// GroupbyOpts is `xan groupby <selection> <agg-clause> [input]`,
// driving either the hash-grouped (default) or sorted-grouped
// (--sorted) execution mode of the aggregation engine.
type GroupbyOpts struct {
	CommonOpts
	Sorted   bool `long:"sorted" description:"Input is already grouped by consecutive key; O(1) memory"`
	HashKeys bool `long:"hash-keys" description:"Use a fixed-width hash for the group key instead of exact concatenation"`

	Args struct {
		GroupBy string `positional-arg-name:"groupby"`
		AggExpr string `positional-arg-name:"agg-expr"`
		Input   string `positional-arg-name:"input"`
	} `positional-args:"yes" required:"2"`
}

func RunGroupby(args []string) error {
	var opts GroupbyOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] <groupby> <agg-expr> [input]"
	if _, err := parser.ParseArgs(args); err != nil {
		return flagsErr(err)
	}
	opts.CommonOpts = opts.CommonOpts.ApplyRCDefaults()

	in, err := OpenInput(opts.Args.Input)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := OpenOutput(opts.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	rd := csvio.NewReader(in, opts.ReaderConfigFor(opts.Args.Input))
	headers, arity, err := ReadHeaders(rd, opts.NoHeaders)
	if err != nil {
		return err
	}

	groupSel, err := csvio.ResolveSelection(opts.Args.GroupBy, headers, arity)
	if err != nil {
		return err
	}
	clauses, err := parseAggClause(opts.Args.AggExpr, headers, arity, opts.NoHeaders)
	if err != nil {
		return err
	}
	newTuple := newTupleFactory(clauses)
	fp := group.Fingerprint{Hashed: opts.HashKeys}

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	if !opts.NoHeaders {
		h := projectNames(headers, groupSel)
		for _, c := range clauses {
			h.AppendField([]byte(c.Name))
		}
		if err := wr.Write(h); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}

	emit := func(key string, tuple group.Tuple, keyFields [][]byte) error {
		row := csvio.NewByteRecord()
		for _, f := range keyFields {
			row.AppendField(f)
		}
		for _, a := range tuple {
			row.AppendField([]byte(a.Finalize().Stringify()))
		}
		return wr.Write(row)
	}

	rec := csvio.NewByteRecord()
	var rowIdx int64

	if opts.Sorted {
		var lastKeyFields [][]byte
		var writeErr error
		sg := group.NewSortedGrouper(newTuple, func(key string, tuple group.Tuple) {
			if writeErr != nil {
				return
			}
			writeErr = emit(key, tuple, lastKeyFields)
		})
		for {
			if err := rd.Read(rec); err != nil {
				if err == io.EOF {
					break
				}
				return xerr.New(xerr.Io, err)
			}
			keyFields := selectFieldsCopy(rec, groupSel)
			key := fp.Key(keyFields)
			values, err := evalClauseValues(clauses, rec)
			if err != nil {
				return err
			}
			sg.Add(key, rowIdx, values)
			lastKeyFields = keyFields
			rowIdx++
			if writeErr != nil {
				return writeErr
			}
		}
		sg.Finish()
		if writeErr != nil {
			return writeErr
		}
		return wr.Flush()
	}

	hg := group.NewHashGrouper(newTuple)
	keyFieldsByKey := map[string][][]byte{}
	for {
		if err := rd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		keyFields := selectFieldsCopy(rec, groupSel)
		key := fp.Key(keyFields)
		if _, ok := keyFieldsByKey[key]; !ok {
			keyFieldsByKey[key] = keyFields
		}
		values, err := evalClauseValues(clauses, rec)
		if err != nil {
			return err
		}
		hg.Add(key, rowIdx, values)
		rowIdx++
	}
	var emitErr error
	hg.Each(func(key string, tuple group.Tuple) {
		if emitErr != nil {
			return
		}
		emitErr = emit(key, tuple, keyFieldsByKey[key])
	})
	if emitErr != nil {
		return emitErr
	}
	return wr.Flush()
}

func selectFieldsCopy(rec *csvio.ByteRecord, sel csvio.Selection) [][]byte {
	out := make([][]byte, len(sel.Indices))
	for i, idx := range sel.Indices {
		out[i] = append([]byte(nil), rec.Field(idx)...)
	}
	return out
}

func projectNames(headers *csvio.ByteRecord, sel csvio.Selection) *csvio.ByteRecord {
	out := csvio.NewByteRecord()
	for _, idx := range sel.Indices {
		out.AppendField(headers.Field(idx))
	}
	return out
}
