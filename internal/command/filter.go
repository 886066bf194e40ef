package command

import (
	"io"

	flags "github.com/jessevdk/go-flags"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/moonblade"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// FilterOpts is the `xan filter <expr> [input]` opts struct, in the
// teacher's one-opts-struct-per-subcommand style.
type FilterOpts struct {
	CommonOpts
	Invert bool `short:"v" long:"invert" description:"Keep rows the expression rejects instead"`
	Limit  int  `short:"l" long:"limit" description:"Stop after emitting this many rows (0 = unlimited)"`

	Args struct {
		Expr  string `positional-arg-name:"expr"`
		Input string `positional-arg-name:"input"`
	} `positional-args:"yes" required:"1"`
}

// RunFilter streams input, keeping rows for which expr is truthy (or
// falsy, under -v), the canonical filter pipeline that every other
// row-at-a-time subcommand (map, search, transform) reuses the shape of.
func RunFilter(args []string) error {
	var opts FilterOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] <expr> [input]"
	if _, err := parser.ParseArgs(args); err != nil {
		return flagsErr(err)
	}
	opts.CommonOpts = opts.CommonOpts.ApplyRCDefaults()

	policy, err := moonblade.ParsePolicy(opts.Errors)
	if err != nil {
		return err
	}

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
	prog, err := CompileExpr(opts.Args.Expr, headers, arity, opts.NoHeaders)
	if err != nil {
		return err
	}

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	if !opts.NoHeaders {
		if err := wr.Write(headers); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}

	emitted := 0
	rec := csvio.NewByteRecord()
	for {
		if err := rd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		v, err := EvalRow(prog, rec, policy)
		if err != nil {
			return err
		}
		keep := v.Truthy()
		if opts.Invert {
			keep = !keep
		}
		if !keep {
			continue
		}
		if err := wr.Write(rec.Clone()); err != nil {
			return xerr.New(xerr.Io, err)
		}
		emitted++
		if opts.Limit > 0 && emitted >= opts.Limit {
			break
		}
	}
	return wr.Flush()
}

func flagsErr(err error) error {
	if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
		return nil
	}
	return xerr.New(xerr.Arg, err)
}
