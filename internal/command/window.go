package command

import (
	"io"

	flags "github.com/jessevdk/go-flags"

	"github.com/xanlabs/xan-go/internal/agg"
	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/moonblade"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// WindowOpts is `xan window <kind> <selection> <name> [input]`: a
// whole-column transform (cumulative, rolling, rank, lag/lead…)
// appended as a new field per spec §4.4's window-function family.
type WindowOpts struct {
	CommonOpts
	WindowSize int     `long:"window-size" description:"Rolling window width" default:"3"`
	K          int     `long:"k" description:"Lag/lead/ntile parameter" default:"1"`
	Fallback   string  `long:"fallback" description:"Value substituted for lag/lead positions outside the column"`

	Args struct {
		Kind      string `positional-arg-name:"kind"`
		Selection string `positional-arg-name:"selection"`
		Name      string `positional-arg-name:"name"`
		Input     string `positional-arg-name:"input"`
	} `positional-args:"yes" required:"3"`
}

func RunWindow(args []string) error {
	var opts WindowOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] <kind> <selection> <name> [input]"
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
	sel, err := csvio.ResolveSelection(opts.Args.Selection, headers, arity)
	if err != nil {
		return err
	}
	col := sel.Indices[0]

	var rows []*csvio.ByteRecord
	var values []moonblade.Value
	rec := csvio.NewByteRecord()
	for {
		if err := rd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		clone := rec.Clone()
		rows = append(rows, clone)
		values = append(values, bytesValue(clone.Field(col)))
	}

	fallback := moonblade.Null()
	if opts.Fallback != "" {
		fallback = moonblade.String(opts.Fallback)
	}
	results, err := agg.Window(opts.Args.Kind, values, opts.WindowSize, opts.K, opts.K, fallback)
	if err != nil {
		return err
	}

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	if !opts.NoHeaders {
		h := headers.Clone()
		h.AppendField([]byte(opts.Args.Name))
		if err := wr.Write(h); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}
	for i, row := range rows {
		row.AppendField([]byte(results[i].Stringify()))
		if err := wr.Write(row); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}
	return wr.Flush()
}
