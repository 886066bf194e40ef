package sortx

import (
	"container/heap"
	"io"
	"os"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// DefaultMemoryCap is the spilling threshold (spec: "~512 MiB
// accounted by a deep-size approximator").
const DefaultMemoryCap = 512 * 1024 * 1024

// ApproxSize estimates a record's in-memory footprint: field bytes
// plus a fixed per-field/per-record overhead, standing in for a deep
// allocator-aware sizer the standard library doesn't provide.
func ApproxSize(rec *csvio.ByteRecord) int64 {
	const perFieldOverhead = 16
	size := int64(48) // struct + slice headers
	for i := 0; i < rec.Len(); i++ {
		size += int64(len(rec.Field(i))) + perFieldOverhead
	}
	return size
}

// ExternalSorter accumulates rows until MemoryCap is exceeded, spills
// a sorted run to a temp file, and repeats; Finish performs the k-way
// merge across every spilled run plus whatever remains buffered.
type ExternalSorter struct {
	MemoryCap int64
	Order     Order
	Stable    bool

	buf       []Row
	bufBytes  int64
	runs      []string
	readerCfg csvio.ReaderConfig
	writerCfg csvio.WriterConfig
}

func NewExternalSorter(order Order, stable bool, readerCfg csvio.ReaderConfig, writerCfg csvio.WriterConfig) *ExternalSorter {
	return &ExternalSorter{
		MemoryCap: DefaultMemoryCap,
		Order:     order,
		Stable:    stable,
		readerCfg: readerCfg,
		writerCfg: writerCfg,
	}
}

// Add buffers one row, spilling a sorted run to disk when the memory
// cap is reached.
func (s *ExternalSorter) Add(row Row) error {
	s.buf = append(s.buf, row)
	s.bufBytes += ApproxSize(row.Record)
	if s.bufBytes >= s.MemoryCap {
		return s.spill()
	}
	return nil
}

func (s *ExternalSorter) spill() error {
	if len(s.buf) == 0 {
		return nil
	}
	SortRows(s.buf, s.Order, s.Stable)
	f, err := os.CreateTemp("", "xan-sort-run-*.csv")
	if err != nil {
		return xerr.Op(xerr.Io, "external-sort", err)
	}
	defer f.Close()
	w := csvio.NewWriter(f, s.writerCfg)
	for _, row := range s.buf {
		if err := w.Write(row.Record); err != nil {
			return xerr.Op(xerr.Io, "external-sort", err)
		}
	}
	if err := w.Flush(); err != nil {
		return xerr.Op(xerr.Io, "external-sort", err)
	}
	s.runs = append(s.runs, f.Name())
	s.buf = nil
	s.bufBytes = 0
	return nil
}

// runReader tracks one spilled run's cursor for the k-way merge.
type runReader struct {
	f       *os.File
	r       *csvio.Reader
	cur     *csvio.ByteRecord
	idx     int64
	key     func(*csvio.ByteRecord) []byte
	done    bool
}

func (rr *runReader) advance() error {
	rec := csvio.NewByteRecord()
	if err := rr.r.Read(rec); err != nil {
		if err == io.EOF {
			rr.done = true
			rr.cur = nil
			return nil
		}
		return err
	}
	rr.cur = rec
	rr.idx++
	return nil
}

// mergeHeap is a container/heap.Interface over the open run readers,
// ordered by their current row's key (spec's k-way heap merge).
type mergeHeap struct {
	runs  []*runReader
	order Order
}

func (h *mergeHeap) Len() int { return len(h.runs) }
func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.runs[i], h.runs[j]
	c := CompareKeys(a.key(a.cur), b.key(b.cur), h.order)
	if c != 0 {
		return c < 0
	}
	return a.idx < b.idx
}
func (h *mergeHeap) Swap(i, j int)      { h.runs[i], h.runs[j] = h.runs[j], h.runs[i] }
func (h *mergeHeap) Push(x interface{}) { h.runs = append(h.runs, x.(*runReader)) }
func (h *mergeHeap) Pop() interface{} {
	n := len(h.runs)
	r := h.runs[n-1]
	h.runs = h.runs[:n-1]
	return r
}

// Finish performs the k-way merge across every spilled run plus any
// still-buffered rows (spilled as one final run first so the merge
// logic has a single code path), calling emit once per output record
// in sorted order.
func (s *ExternalSorter) Finish(keyOf func(*csvio.ByteRecord) []byte, emit func(*csvio.ByteRecord) error) error {
	if len(s.runs) == 0 {
		SortRows(s.buf, s.Order, s.Stable)
		for _, row := range s.buf {
			if err := emit(row.Record); err != nil {
				return err
			}
		}
		return nil
	}
	if err := s.spill(); err != nil {
		return err
	}

	h := &mergeHeap{order: s.Order}
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	for i, path := range s.runs {
		f, err := os.Open(path)
		if err != nil {
			return xerr.Op(xerr.Io, "external-sort", err)
		}
		files = append(files, f)
		// Runs are spilled in input order, so a run's number goes in the
		// high bits of idx: on equal keys an earlier run wins.
		rr := &runReader{f: f, r: csvio.NewReader(f, s.readerCfg), key: keyOf, idx: int64(i) << 32}
		if err := rr.advance(); err != nil {
			return xerr.Op(xerr.Io, "external-sort", err)
		}
		if !rr.done {
			h.runs = append(h.runs, rr)
		}
	}
	heap.Init(h)
	for h.Len() > 0 {
		rr := h.runs[0]
		if err := emit(rr.cur); err != nil {
			return err
		}
		if err := rr.advance(); err != nil {
			return xerr.Op(xerr.Io, "external-sort", err)
		}
		if rr.done {
			heap.Pop(h)
		} else {
			heap.Fix(h, 0)
		}
	}
	return nil
}
