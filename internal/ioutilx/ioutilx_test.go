package ioutilx

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	kzstd "github.com/klauspost/compress/zstd"
)

func TestDetectKindByExtension(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "in.csv")
	os.WriteFile(plain, []byte("a,b\n"), 0o644)
	if got := DetectKind(plain); got != KindNone {
		t.Fatalf("plain .csv: got %v, want KindNone", got)
	}

	gz := filepath.Join(dir, "in.csv.gz")
	os.WriteFile(gz, []byte("not really gzip, extension is what matters here"), 0o644)
	if got := DetectKind(gz); got != KindGzip {
		t.Fatalf(".gz without sibling .gzi: got %v, want KindGzip", got)
	}

	os.WriteFile(gz+".gzi", []byte{}, 0o644)
	if got := DetectKind(gz); got != KindBgzip {
		t.Fatalf(".gz with sibling .gzi: got %v, want KindBgzip", got)
	}

	zst := filepath.Join(dir, "in.csv.zst")
	os.WriteFile(zst, []byte("doesn't matter"), 0o644)
	if got := DetectKind(zst); got != KindZstd {
		t.Fatalf(".zst: got %v, want KindZstd", got)
	}
}

func TestOpenDecompressesGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv.gz")

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write([]byte("a,b\n1,2\n"))
	gw.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rc, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "a,b\n1,2\n" {
		t.Fatalf("got %q, want decompressed CSV", got)
	}
}

func TestOpenDecompressesZstd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv.zst")

	enc, err := kzstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	compressed := enc.EncodeAll([]byte("x,y\n3,4\n"), nil)
	enc.Close()
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rc, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "x,y\n3,4\n" {
		t.Fatalf("got %q, want decompressed CSV", got)
	}
}

func TestOpenPassesThroughUncompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv")
	os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644)

	rc, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "a,b\n1,2\n" {
		t.Fatalf("got %q, want passthrough of the original bytes", got)
	}
}

// writeGzi hand-encodes a .gzi sidecar: a uint64 count, followed by
// count pairs of little-endian uint64 (compressed offset, uncompressed
// offset), matching bgzip's published index format.
func writeGzi(t *testing.T, path string, pairs [][2]uint64) {
	t.Helper()
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(pairs)))
	for _, p := range pairs {
		binary.Write(&buf, binary.LittleEndian, p[0])
		binary.Write(&buf, binary.LittleEndian, p[1])
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestReadGziParsesBlockListWithImplicitFirstBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv.gz.gzi")
	writeGzi(t, path, [][2]uint64{{100, 1000}, {250, 2500}})

	blocks, err := ReadGzi(path)
	if err != nil {
		t.Fatalf("ReadGzi: %v", err)
	}
	// The implicit block 0 (start of file) plus the two recorded blocks.
	want := []GziBlock{{0, 0}, {100, 1000}, {250, 2500}}
	if len(blocks) != len(want) {
		t.Fatalf("got %v, want %v", blocks, want)
	}
	for i := range want {
		if blocks[i] != want[i] {
			t.Fatalf("block %d: got %+v, want %+v", i, blocks[i], want[i])
		}
	}
}

func TestReadGziEmptyIndexYieldsOnlyImplicitBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.gzi")
	writeGzi(t, path, nil)

	blocks, err := ReadGzi(path)
	if err != nil {
		t.Fatalf("ReadGzi: %v", err)
	}
	if len(blocks) != 1 || blocks[0] != (GziBlock{}) {
		t.Fatalf("got %v, want a single zero-valued implicit block", blocks)
	}
}

func TestChunkRangesAlignsToBlockBoundariesAndCoversWholeFile(t *testing.T) {
	blocks := []GziBlock{
		{CompressedOffset: 0}, {CompressedOffset: 10}, {CompressedOffset: 20},
		{CompressedOffset: 30}, {CompressedOffset: 40}, {CompressedOffset: 50},
	}
	ranges := ChunkRanges(blocks, 3)
	if len(ranges) == 0 {
		t.Fatal("expected at least one range")
	}
	if ranges[0][0] != 0 {
		t.Fatalf("first range should start at offset 0, got %d", ranges[0][0])
	}
	// The last range's end is 0, the sentinel meaning "to EOF" once
	// translated into a parallel.Chunk.
	if last := ranges[len(ranges)-1]; last[1] != 0 {
		t.Fatalf("last range should have an open end (0 sentinel), got %d", last[1])
	}
	for i := 1; i < len(ranges); i++ {
		if ranges[i][0] != ranges[i-1][1] {
			t.Fatalf("range %d should start where range %d ended: got %d vs %d", i, i-1, ranges[i][0], ranges[i-1][1])
		}
	}
}

func TestChunkRangesHandlesFewerBlocksThanWorkers(t *testing.T) {
	blocks := []GziBlock{{CompressedOffset: 0}, {CompressedOffset: 5}}
	ranges := ChunkRanges(blocks, 10)
	if len(ranges) == 0 || len(ranges) > len(blocks) {
		t.Fatalf("expected at most %d ranges when fewer blocks than workers, got %d", len(blocks), len(ranges))
	}
}

func TestChunkRangesEmptyBlocksReturnsNil(t *testing.T) {
	if got := ChunkRanges(nil, 4); got != nil {
		t.Fatalf("expected nil for empty block list, got %v", got)
	}
}
