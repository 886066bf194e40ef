package ioutilx

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/xanlabs/xan-go/internal/xerr"
)

// GziBlock is one block boundary recorded in a .gzi index: the
// compressed offset into the .gz file and the corresponding
// uncompressed offset, matching bgzip's published index format
// (a uint64 count followed by count pairs of little-endian uint64s).
type GziBlock struct {
	CompressedOffset   uint64
	UncompressedOffset uint64
}

// ReadGzi parses a .gzi sidecar file into its block list. The parallel
// substrate uses these as chunk boundaries instead of the statistical
// Seeker whenever a .gzi is present (spec §4.8 chunking strategy 2).
func ReadGzi(path string) ([]GziBlock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerr.New(xerr.Io, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, xerr.New(xerr.Io, err)
	}
	blocks := make([]GziBlock, 0, count+1)
	// Block 0 is implicit: the start of the file.
	blocks = append(blocks, GziBlock{})
	for i := uint64(0); i < count; i++ {
		var b GziBlock
		if err := binary.Read(br, binary.LittleEndian, &b.CompressedOffset); err != nil {
			if err == io.EOF {
				break
			}
			return nil, xerr.New(xerr.Io, err)
		}
		if err := binary.Read(br, binary.LittleEndian, &b.UncompressedOffset); err != nil {
			return nil, xerr.New(xerr.Io, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// ChunkRanges splits the block list into contiguous ranges of
// compressed-offset, each holding len(blocks)/n blocks (at least one),
// so there are more than n ranges when n does not divide the block
// count. Each range aligns to a
// block boundary, so every worker starts decompression at a genuine
// bgzip block header, never mid-stream.
func ChunkRanges(blocks []GziBlock, n int) [][2]uint64 {
	if n <= 0 || len(blocks) == 0 {
		return nil
	}
	if n > len(blocks) {
		n = len(blocks)
	}
	ranges := make([][2]uint64, 0, n)
	blocksPerChunk := len(blocks) / n
	if blocksPerChunk == 0 {
		blocksPerChunk = 1
	}
	for i := 0; i < len(blocks); i += blocksPerChunk {
		start := blocks[i].CompressedOffset
		end := uint64(0)
		if i+blocksPerChunk < len(blocks) {
			end = blocks[i+blocksPerChunk].CompressedOffset
		}
		ranges = append(ranges, [2]uint64{start, end})
	}
	return ranges
}
