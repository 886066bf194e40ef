package command

import (
	"io"

	flags "github.com/jessevdk/go-flags"

	"github.com/xanlabs/xan-go/internal/agg"
	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// statsMetrics is the fixed set `xan stats` reports per column, absent
// an explicit -A/--metrics override.
var statsMetrics = []string{"count", "count_empty", "type", "mean", "variance", "stddev", "min", "max", "cardinality"}

// StatsOpts is `xan stats [input]`: a per-column summary table, one
// row per input column, one column per metric.
type StatsOpts struct {
	CommonOpts
	Metrics string `short:"A" long:"metrics" description:"Comma-separated metric list override"`

	Args struct {
		Input string `positional-arg-name:"input"`
	} `positional-args:"yes"`
}

func RunStats(args []string) error {
	var opts StatsOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] [input]"
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

	metrics := statsMetrics
	if opts.Metrics != "" {
		metrics = splitTopLevel(opts.Metrics, ',')
	}

	sel := csvio.All(arity)
	if opts.Select != "" {
		sel, err = csvio.ResolveSelection(opts.Select, headers, arity)
		if err != nil {
			return err
		}
	}

	// tuples[col][metric]
	tuples := make([][]agg.Aggregator, len(sel.Indices))
	for i := range tuples {
		tuples[i] = make([]agg.Aggregator, len(metrics))
		for j, m := range metrics {
			a, err := agg.New(m)
			if err != nil {
				return err
			}
			tuples[i][j] = a
		}
	}

	rec := csvio.NewByteRecord()
	var rowIdx int64
	for {
		if err := rd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		for i, idx := range sel.Indices {
			if idx >= rec.Len() {
				continue
			}
			v := bytesValue(rec.Field(idx))
			for _, a := range tuples[i] {
				a.Update(v, rowIdx)
			}
		}
		rowIdx++
	}

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	head := csvio.NewByteRecord()
	head.AppendField([]byte("field"))
	for _, m := range metrics {
		head.AppendField([]byte(m))
	}
	if err := wr.Write(head); err != nil {
		return xerr.New(xerr.Io, err)
	}
	for i, idx := range sel.Indices {
		row := csvio.NewByteRecord()
		name := itoa(idx)
		if idx < headers.Len() {
			name = headers.FieldString(idx)
		}
		row.AppendField([]byte(name))
		for _, a := range tuples[i] {
			row.AppendField([]byte(a.Finalize().Stringify()))
		}
		if err := wr.Write(row); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}
	return wr.Flush()
}

// FrequencyOpts is `xan frequency <selection> [input]`: top-k value
// counts per selected column.
type FrequencyOpts struct {
	CommonOpts
	Limit int `short:"l" long:"limit" description:"Top-N values per field (0 = all)" default:"10"`

	Args struct {
		Input string `positional-arg-name:"input"`
	} `positional-args:"yes"`
}

func RunFrequency(args []string) error {
	var opts FrequencyOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] [input]"
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
	sel := csvio.All(arity)
	if opts.Select != "" {
		sel, err = csvio.ResolveSelection(opts.Select, headers, arity)
		if err != nil {
			return err
		}
	}

	counts := make([]map[string]int64, len(sel.Indices))
	order := make([][]string, len(sel.Indices))
	for i := range counts {
		counts[i] = map[string]int64{}
	}

	rec := csvio.NewByteRecord()
	for {
		if err := rd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		for i, idx := range sel.Indices {
			if idx >= rec.Len() {
				continue
			}
			s := string(rec.Field(idx))
			if _, ok := counts[i][s]; !ok {
				order[i] = append(order[i], s)
			}
			counts[i][s]++
		}
	}

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	head := csvio.FromStrings([]string{"field", "value", "count"})
	if err := wr.Write(head); err != nil {
		return xerr.New(xerr.Io, err)
	}
	for i, idx := range sel.Indices {
		name := itoa(idx)
		if idx < headers.Len() {
			name = headers.FieldString(idx)
		}
		top := topN(order[i], counts[i], opts.Limit)
		for _, v := range top {
			row := csvio.FromStrings([]string{name, v, itoa64(counts[i][v])})
			if err := wr.Write(row); err != nil {
				return xerr.New(xerr.Io, err)
			}
		}
	}
	return wr.Flush()
}

func topN(values []string, counts map[string]int64, n int) []string {
	out := append([]string(nil), values...)
	// simple insertion sort by descending count, stable on first-seen order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && counts[out[j]] > counts[out[j-1]]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
