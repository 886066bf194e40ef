package command

import (
	"container/heap"
	"io"

	flags "github.com/jessevdk/go-flags"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/sortx"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// MergeOpts is `xan merge <selection> <file...>`: k-way merges
// already-sorted CSV files on selection, the same heap machinery
// internal/sortx uses for its own spilled-run merge, reused here
// across whole input files instead of temp runs.
type MergeOpts struct {
	CommonOpts
	Numeric bool `short:"N" long:"numeric" description:"Compare keys as numbers"`
	Reverse bool `short:"R" long:"reverse" description:"Descending order"`

	Args struct {
		Selection string   `positional-arg-name:"selection"`
		Files     []string `positional-arg-name:"file"`
	} `positional-args:"yes" required:"2"`
}

type mergeSource struct {
	rd   *csvio.Reader
	cur  *csvio.ByteRecord
	idx  int64
	sel  csvio.Selection
	done bool
	closer io.Closer
}

func (s *mergeSource) advance() error {
	rec := csvio.NewByteRecord()
	if err := s.rd.Read(rec); err != nil {
		if err == io.EOF {
			s.done = true
			s.cur = nil
			return nil
		}
		return err
	}
	s.cur = rec
	s.idx++
	return nil
}

type mergeHeap struct {
	sources []*mergeSource
	order   sortx.Order
}

func (h *mergeHeap) Len() int { return len(h.sources) }
func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.sources[i], h.sources[j]
	c := sortx.CompareKeys(sortKey(a.cur, a.sel), sortKey(b.cur, b.sel), h.order)
	if c != 0 {
		return c < 0
	}
	return a.idx < b.idx
}
func (h *mergeHeap) Swap(i, j int) { h.sources[i], h.sources[j] = h.sources[j], h.sources[i] }
func (h *mergeHeap) Push(x interface{}) { h.sources = append(h.sources, x.(*mergeSource)) }
func (h *mergeHeap) Pop() interface{} {
	n := len(h.sources)
	s := h.sources[n-1]
	h.sources = h.sources[:n-1]
	return s
}

func RunMerge(args []string) error {
	var opts MergeOpts
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options] <selection> <file...>"
	if _, err := parser.ParseArgs(args); err != nil {
		return flagsErr(err)
	}
	opts.CommonOpts = opts.CommonOpts.ApplyRCDefaults()

	out, err := OpenOutput(opts.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	h := &mergeHeap{order: sortx.Order{Numeric: opts.Numeric, Reverse: opts.Reverse}}
	var headers *csvio.ByteRecord
	var arity int
	for _, path := range opts.Args.Files {
		f, err := OpenInput(path)
		if err != nil {
			return err
		}
		rd := csvio.NewReader(f, opts.ReaderConfigFor(path))
		hdr, a, err := ReadHeaders(rd, opts.NoHeaders)
		if err != nil {
			return err
		}
		if headers == nil {
			headers, arity = hdr, a
		}
		sel, err := csvio.ResolveSelection(opts.Args.Selection, hdr, a)
		if err != nil {
			return err
		}
		src := &mergeSource{rd: rd, sel: sel, closer: f}
		if err := src.advance(); err != nil {
			return xerr.New(xerr.Io, err)
		}
		if !src.done {
			h.sources = append(h.sources, src)
		}
	}
	_ = arity
	defer func() {
		for _, s := range h.sources {
			s.closer.Close()
		}
	}()

	wr := csvio.NewWriter(out, opts.WriterConfigFor())
	if !opts.NoHeaders && headers != nil {
		if err := wr.Write(headers); err != nil {
			return xerr.New(xerr.Io, err)
		}
	}
	heap.Init(h)
	for h.Len() > 0 {
		s := h.sources[0]
		if err := wr.Write(s.cur); err != nil {
			return xerr.New(xerr.Io, err)
		}
		if err := s.advance(); err != nil {
			return xerr.New(xerr.Io, err)
		}
		if s.done {
			heap.Pop(h)
		} else {
			heap.Fix(h, 0)
		}
	}
	return wr.Flush()
}
