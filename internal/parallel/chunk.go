package parallel

import (
	"os"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/ioutilx"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// Chunk describes one unit of parallel work: a byte range [Start,
// End) of a single file, to be decoded independently by a worker that
// owns its own Reader clone.
type Chunk struct {
	Path  string
	Start int64
	End   int64 // 0 means "to EOF"
}

// ChunkFiles implements strategy 1 (spec §4.8): each input file is its
// own independent task.
func ChunkFiles(paths []string) []Chunk {
	chunks := make([]Chunk, len(paths))
	for i, p := range paths {
		chunks[i] = Chunk{Path: p}
	}
	return chunks
}

// ChunkGzi implements strategy 2: a bgzipped file with a sibling .gzi
// index is split at block boundaries, each chunk independently
// decompressible.
func ChunkGzi(path, gziPath string, n int) ([]Chunk, error) {
	blocks, err := ioutilx.ReadGzi(gziPath)
	if err != nil {
		return nil, err
	}
	ranges := ioutilx.ChunkRanges(blocks, n)
	chunks := make([]Chunk, len(ranges))
	for i, r := range ranges {
		chunks[i] = Chunk{Path: path, Start: int64(r[0]), End: int64(r[1])}
	}
	return chunks, nil
}

// ChunkSeek implements strategy 3: a plain seekable file is divided
// into n equal byte ranges, and the statistical Seeker is run at the
// start of every range after the first to find its true first record
// boundary; each chunk ends where the next one starts.
func ChunkSeek(path string, n int, seekCfg csvio.ReaderConfig, confidence float64, strict bool) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerr.Op(xerr.Io, "chunk-seek", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, xerr.Op(xerr.Io, "chunk-seek", err)
	}
	size := info.Size()
	if n < 1 {
		n = 1
	}
	profile, err := csvio.SampleProfile(f, seekCfg)
	if err != nil {
		return nil, err
	}
	if profile.Cursed() && strict {
		return nil, xerr.Newf(xerr.Unsupported, "refusing to seek %q: record boundaries are not statistically consistent (strict mode)", path)
	}

	step := size / int64(n)
	if step == 0 {
		return []Chunk{{Path: path, Start: 0, End: size}}, nil
	}
	chunks := make([]Chunk, 0, n)
	var start int64
	for i := 0; i < n; i++ {
		end := start + step
		if i == n-1 || end > size {
			end = size
		}
		boundary := start
		if i > 0 {
			b, _, err := csvio.Seek(f, size, start, profile, seekCfg, confidence, strict)
			if err != nil {
				return nil, err
			}
			boundary = b
			chunks[len(chunks)-1].End = boundary
		}
		chunks = append(chunks, Chunk{Path: path, Start: boundary, End: end})
		start = end
		if start >= size {
			break
		}
	}
	return chunks, nil
}
