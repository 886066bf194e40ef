package command

import (
	"io"
	"math"

	flags "github.com/jessevdk/go-flags"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/moonblade"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// BinsOpts is `xan bins <selection> [input]`: buckets a numeric column
// into equal-width bins and counts membership, a fixed-shape
// specialization of groupby+stats that needs its own pass since bin
// boundaries depend on the column's observed min/max.
type BinsOpts struct {
	CommonOpts
	Bins int `short:"b" long:"bins" description:"Number of equal-width bins" default:"10"`

	Args struct {
		Selection string `positional-arg-name:"selection"`
		Input     string `positional-arg-name:"input"`
	} `positional-args:"yes" required:"1"`
}

func RunBins(args []string) error {
	var opts BinsOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] <selection> [input]"
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

	var values []float64
	var recs []*csvio.ByteRecord
	rec := csvio.NewByteRecord()
	for {
		if err := rd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		clone := rec.Clone()
		recs = append(recs, clone)
		v := bytesValue(clone.Field(col))
		f, _ := v.AsFloat()
		values = append(values, f)
	}

	min, max := math.Inf(1), math.Inf(-1)
	for _, f := range values {
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
	}
	width := (max - min) / float64(opts.Bins)
	if width <= 0 {
		width = 1
	}

	counts := make([]int64, opts.Bins)
	for _, f := range values {
		b := int((f - min) / width)
		if b >= opts.Bins {
			b = opts.Bins - 1
		}
		if b < 0 {
			b = 0
		}
		counts[b]++
	}

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	if err := wr.Write(csvio.FromStrings([]string{"bin_start", "bin_end", "count"})); err != nil {
		return xerr.New(xerr.Io, err)
	}
	for i := 0; i < opts.Bins; i++ {
		start := min + float64(i)*width
		end := start + width
		row := csvio.FromStrings([]string{formatFloat(start), formatFloat(end), itoa64(counts[i])})
		if err := wr.Write(row); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}
	return wr.Flush()
}

func formatFloat(f float64) string {
	return moonblade.Float(f).Stringify()
}
