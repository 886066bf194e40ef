package command

import (
	"io"

	flags "github.com/jessevdk/go-flags"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// AggOpts is `xan agg <agg-expr> [input]`: groupby's ungrouped
// sibling, one output row summarizing the whole file.
type AggOpts struct {
	CommonOpts
	Args struct {
		AggExpr string `positional-arg-name:"agg-expr"`
		Input   string `positional-arg-name:"input"`
	} `positional-args:"yes" required:"1"`
}

func RunAgg(args []string) error {
	var opts AggOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] <agg-expr> [input]"
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
	clauses, err := parseAggClause(opts.Args.AggExpr, headers, arity, opts.NoHeaders)
	if err != nil {
		return err
	}
	tuple := newTupleFactory(clauses)()

	rec := csvio.NewByteRecord()
	var idx int64
	for {
		if err := rd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		values, err := evalClauseValues(clauses, rec)
		if err != nil {
			return err
		}
		for i, v := range values {
			tuple[i].Update(v, idx)
		}
		idx++
	}

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	head := csvio.NewByteRecord()
	row := csvio.NewByteRecord()
	for i, c := range clauses {
		head.AppendField([]byte(c.Name))
		row.AppendField([]byte(tuple[i].Finalize().Stringify()))
	}
	if !opts.NoHeaders {
		if err := wr.Write(head); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}
	if err := wr.Write(row); err != nil {
		return xerr.New(xerr.Io, err)
	}
	return wr.Flush()
}
