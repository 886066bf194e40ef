package command

import (
	"context"
	"io"

	flags "github.com/jessevdk/go-flags"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/parallel"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// ParallelOpts is `xan parallel cat <file...>`: concatenates many CSV
// files sharing a header, distributing the read across a worker pool
// per internal/parallel's chunking strategy 1 (one file per task),
// writing through a single mutex-guarded output (spec §4.8).
type ParallelOpts struct {
	CommonOpts
	Args struct {
		Mode  string   `positional-arg-name:"mode"`
		Files []string `positional-arg-name:"file"`
	} `positional-args:"yes" required:"2"`
}

func RunParallel(args []string) error {
	var opts ParallelOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "cat <file...>"
	if _, err := parser.ParseArgs(args); err != nil {
		return flagsErr(err)
	}
	opts.CommonOpts = opts.CommonOpts.ApplyRCDefaults()
	if opts.Args.Mode != "cat" {
		return xerr.Newf(xerr.Arg, "unknown parallel mode %q (only 'cat' is supported)", opts.Args.Mode)
	}

	out, err := OpenOutput(opts.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	sw := parallel.NewSharedWriter(wr)

	chunks := parallel.ChunkFiles(opts.Args.Files)
	n := parallel.ResolveWorkerCount(opts.Threads)

	if !opts.NoHeaders && len(chunks) > 0 {
		f, err := OpenInput(chunks[0].Path)
		if err != nil {
			return err
		}
		rd := csvio.NewReader(f, opts.ReaderConfigFor(chunks[0].Path))
		headers, _, err := ReadHeaders(rd, opts.NoHeaders)
		f.Close()
		if err != nil {
			return err
		}
		if err := sw.WriteBatch([]*csvio.ByteRecord{headers}); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}

	_, err = parallel.MapOrdered(context.Background(), chunks, n, func(ctx context.Context, chunk parallel.Chunk) (int, error) {
		f, err := OpenInput(chunk.Path)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		rd := csvio.NewReader(f, opts.ReaderConfigFor(chunk.Path))
		if _, _, err := ReadHeaders(rd, opts.NoHeaders); err != nil {
			return 0, err
		}
		batch := make([]*csvio.ByteRecord, 0, 256)
		rec := csvio.NewByteRecord()
		for {
			if err := rd.Read(rec); err != nil {
				if err == io.EOF {
					break
				}
				return 0, xerr.New(xerr.Io, err)
			}
			batch = append(batch, rec.Clone())
			if len(batch) >= 256 {
				if err := sw.WriteBatch(batch); err != nil {
					return 0, xerr.New(xerr.Io, err)
				}
				batch = batch[:0]
			}
		}
		if len(batch) > 0 {
			if err := sw.WriteBatch(batch); err != nil {
				return 0, xerr.New(xerr.Io, err)
			}
		}
		return 0, nil
	})
	if err != nil {
		return err
	}
	return sw.Flush()
}
