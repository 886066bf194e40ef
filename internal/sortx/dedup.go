package sortx

import (
	"bytes"
	"os"
	"sort"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// SortedDedup drops consecutive rows sharing the same key, assuming
// input already arrives in key order (--sorted, O(1) memory).
type SortedDedup struct {
	hasPrev bool
	prevKey []byte
}

// Keep reports whether the row with this key should pass through; it
// must be called once per row, in input order.
func (d *SortedDedup) Keep(key []byte) bool {
	if d.hasPrev && bytes.Equal(d.prevKey, key) {
		return false
	}
	d.hasPrev = true
	d.prevKey = append(d.prevKey[:0], key...)
	return true
}

// HashSetDedup keeps an exact set of every key seen so far (O(cardinality)
// memory); order-independent, unlike SortedDedup.
type HashSetDedup struct {
	seen map[string]bool
}

func NewHashSetDedup() *HashSetDedup { return &HashSetDedup{seen: map[string]bool{}} }

func (d *HashSetDedup) Keep(key []byte) bool {
	k := string(key)
	if d.seen[k] {
		return false
	}
	d.seen[k] = true
	return true
}

// ExternalDedup backs --external: an in-memory bounded buffer of seen
// keys, spilled to a sorted run on disk once a memory cap is hit, with
// membership tested by binary search across spilled runs plus the live
// buffer (a poor man's external B-tree: batched sorted runs rather than
// a true on-disk tree, since no pack example carries a disk-backed
// index structure to ground one on — see DESIGN.md).
type ExternalDedup struct {
	memoryCap int64
	buf       [][]byte
	bufBytes  int64
	runs      []string
}

func NewExternalDedup() *ExternalDedup {
	return &ExternalDedup{memoryCap: DefaultMemoryCap}
}

func (d *ExternalDedup) Keep(key []byte) (bool, error) {
	if d.inBuffer(key) {
		return false, nil
	}
	for _, run := range d.runs {
		found, err := searchRun(run, key)
		if err != nil {
			return false, err
		}
		if found {
			return false, nil
		}
	}
	k := append([]byte(nil), key...)
	d.buf = append(d.buf, k)
	d.bufBytes += int64(len(k)) + 16
	if d.bufBytes >= d.memoryCap {
		if err := d.spill(); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (d *ExternalDedup) inBuffer(key []byte) bool {
	for _, k := range d.buf {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}

func (d *ExternalDedup) spill() error {
	if len(d.buf) == 0 {
		return nil
	}
	sort.Slice(d.buf, func(i, j int) bool { return bytes.Compare(d.buf[i], d.buf[j]) < 0 })
	f, err := os.CreateTemp("", "xan-dedup-run-*.keys")
	if err != nil {
		return xerr.Op(xerr.Io, "external-dedup", err)
	}
	defer f.Close()
	w := csvio.NewWriter(f, csvio.WriterConfig{Delimiter: '\n', Quoting: csvio.QuoteNever})
	for _, k := range d.buf {
		rec := csvio.NewByteRecord()
		rec.AppendField(k)
		if err := w.Write(rec); err != nil {
			return xerr.Op(xerr.Io, "external-dedup", err)
		}
	}
	if err := w.Flush(); err != nil {
		return xerr.Op(xerr.Io, "external-dedup", err)
	}
	d.runs = append(d.runs, f.Name())
	d.buf = nil
	d.bufBytes = 0
	return nil
}

func searchRun(path string, key []byte) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, xerr.Op(xerr.Io, "external-dedup", err)
	}
	data = bytes.TrimSuffix(data, []byte{'\n'})
	lines := bytes.Split(data, []byte{'\n'})
	lo, hi := 0, len(lines)
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(lines[mid], key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo < len(lines) && bytes.Equal(lines[lo], key), nil
}

// Close removes any spilled run files. Callers must defer Close after
// constructing an ExternalDedup.
func (d *ExternalDedup) Close() {
	for _, run := range d.runs {
		os.Remove(run)
	}
}
