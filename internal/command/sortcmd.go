package command

import (
	"io"

	flags "github.com/jessevdk/go-flags"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/sortx"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// SortOpts is `xan sort <selection> [input]`.
type SortOpts struct {
	CommonOpts
	Numeric  bool `short:"N" long:"numeric" description:"Compare keys as numbers"`
	Reverse  bool `short:"R" long:"reverse" description:"Descending order"`
	Unstable bool `long:"unstable" description:"Skip the tie-break, faster but non-reproducible on equal keys"`
	External bool `long:"external" description:"Spill to disk once the in-memory cap is exceeded"`

	Args struct {
		Selection string `positional-arg-name:"selection"`
		Input     string `positional-arg-name:"input"`
	} `positional-args:"yes" required:"1"`
}

func RunSort(args []string) error {
	var opts SortOpts
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
	readerCfg := opts.ReaderConfigFor(opts.Args.Input)
	writerCfg := opts.WriterConfigFor()
	headers, arity, err := ReadHeaders(rd, opts.NoHeaders)
	if err != nil {
		return err
	}
	sel, err := csvio.ResolveSelection(opts.Args.Selection, headers, arity)
	if err != nil {
		return err
	}
	keyOf := func(rec *csvio.ByteRecord) []byte {
		return sortKey(rec, sel)
	}
	order := sortx.Order{Numeric: opts.Numeric, Reverse: opts.Reverse}

	wr := csvio.NewWriter(out, writerCfg)
	if !opts.NoHeaders {
		if err := wr.Write(headers); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}

	if opts.External {
		sorter := sortx.NewExternalSorter(order, !opts.Unstable, readerCfg, writerCfg)
		var idx int64
		rec := csvio.NewByteRecord()
		for {
			if err := rd.Read(rec); err != nil {
				if err == io.EOF {
					break
				}
				return xerr.New(xerr.Io, err)
			}
			clone := rec.Clone()
			if err := sorter.Add(sortx.Row{Key: keyOf(clone), OrigIndex: idx, Record: clone}); err != nil {
				return err
			}
			idx++
		}
		if err := sorter.Finish(keyOf, func(rec *csvio.ByteRecord) error {
			return wr.Write(rec)
		}); err != nil {
			return err
		}
		return wr.Flush()
	}

	var rows []sortx.Row
	var idx int64
	rec := csvio.NewByteRecord()
	for {
		if err := rd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			return xerr.New(xerr.Io, err)
		}
		clone := rec.Clone()
		rows = append(rows, sortx.Row{Key: keyOf(clone), OrigIndex: idx, Record: clone})
		idx++
	}
	sortx.SortRows(rows, order, !opts.Unstable)
	for _, row := range rows {
		if err := wr.Write(row.Record); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}
	return wr.Flush()
}

func sortKey(rec *csvio.ByteRecord, sel csvio.Selection) []byte {
	var out []byte
	for i, idx := range sel.Indices {
		if i > 0 {
			out = append(out, 0)
		}
		if idx < rec.Len() {
			out = append(out, rec.Field(idx)...)
		}
	}
	return out
}

// DedupOpts is `xan dedup <selection> [input]`.
type DedupOpts struct {
	CommonOpts
	Sorted   bool `long:"sorted" description:"Input already ordered by key; O(1) memory"`
	External bool `long:"external" description:"Use a disk-spilling key set instead of an in-memory hash set"`

	Args struct {
		Selection string `positional-arg-name:"selection"`
		Input     string `positional-arg-name:"input"`
	} `positional-args:"yes" required:"1"`
}

func RunDedup(args []string) error {
	var opts DedupOpts
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

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	if !opts.NoHeaders {
		if err := wr.Write(headers); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}

	rec := csvio.NewByteRecord()

	switch {
	case opts.Sorted:
		var d sortx.SortedDedup
		for {
			if err := rd.Read(rec); err != nil {
				if err == io.EOF {
					break
				}
				return xerr.New(xerr.Io, err)
			}
			if d.Keep(sortKey(rec, sel)) {
				if err := wr.Write(rec.Clone()); err != nil {
					return xerr.New(xerr.Io, err)
				}
			}
		}
	case opts.External:
		d := sortx.NewExternalDedup()
		defer d.Close()
		for {
			if err := rd.Read(rec); err != nil {
				if err == io.EOF {
					break
				}
				return xerr.New(xerr.Io, err)
			}
			keep, err := d.Keep(sortKey(rec, sel))
			if err != nil {
				return err
			}
			if keep {
				if err := wr.Write(rec.Clone()); err != nil {
					return xerr.New(xerr.Io, err)
				}
			}
		}
	default:
		d := sortx.NewHashSetDedup()
		for {
			if err := rd.Read(rec); err != nil {
				if err == io.EOF {
					break
				}
				return xerr.New(xerr.Io, err)
			}
			if d.Keep(sortKey(rec, sel)) {
				if err := wr.Write(rec.Clone()); err != nil {
					return xerr.New(xerr.Io, err)
				}
			}
		}
	}
	return wr.Flush()
}
