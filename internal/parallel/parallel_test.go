package parallel

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/xanlabs/xan-go/internal/csvio"
)

func TestResolveWorkerCountHonorsExplicitRequest(t *testing.T) {
	if got := ResolveWorkerCount(4); got != 4 {
		t.Fatalf("ResolveWorkerCount(4) = %d, want 4", got)
	}
}

func TestResolveWorkerCountAutoRespectsSoftCap(t *testing.T) {
	got := ResolveWorkerCount(0)
	if got < 1 || got > DefaultSoftCap {
		t.Fatalf("ResolveWorkerCount(0) = %d, want in [1, %d]", got, DefaultSoftCap)
	}
}

func TestMapOrderedPreservesInputOrderRegardlessOfCompletionOrder(t *testing.T) {
	inputs := []int{5, 1, 4, 2, 3}
	out, err := MapOrdered(context.Background(), inputs, 3, func(_ context.Context, n int) (int, error) {
		return n * 10, nil
	})
	if err != nil {
		t.Fatalf("MapOrdered: %v", err)
	}
	want := []int{50, 10, 40, 20, 30}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("MapOrdered output order: got %v, want %v", out, want)
		}
	}
}

func TestMapOrderedPropagatesFirstError(t *testing.T) {
	boom := errors.New("boom")
	_, err := MapOrdered(context.Background(), []int{1, 2, 3}, 2, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}
}

func TestForEachUnorderedVisitsEveryInput(t *testing.T) {
	var count atomic.Int64
	err := ForEachUnordered(context.Background(), []int{1, 2, 3, 4, 5}, 2, func(_ context.Context, n int) error {
		count.Add(int64(n))
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachUnordered: %v", err)
	}
	if count.Load() != 15 {
		t.Fatalf("expected sum 15, got %d", count.Load())
	}
}

func TestForEachUnorderedCancelsRemainingWorkOnError(t *testing.T) {
	boom := errors.New("boom")
	var ran atomic.Int64
	err := ForEachUnordered(context.Background(), []int{1, 2, 3}, 1, func(ctx context.Context, n int) error {
		ran.Add(1)
		if n == 1 {
			return boom
		}
		return ctx.Err()
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}
}

func TestStopFlagSetIsSetReset(t *testing.T) {
	var s StopFlag
	if s.IsSet() {
		t.Fatal("new StopFlag should not be set")
	}
	s.Set()
	if !s.IsSet() {
		t.Fatal("expected StopFlag to be set after Set()")
	}
	s.Reset()
	if s.IsSet() {
		t.Fatal("expected StopFlag to be cleared after Reset()")
	}
}

func TestSharedWriterWriteBatchPreservesOrderAndFlushes(t *testing.T) {
	var buf bytes.Buffer
	w := csvio.NewWriter(&buf, csvio.DefaultWriterConfig())
	sw := NewSharedWriter(w)

	batch := []*csvio.ByteRecord{
		csvio.FromStrings([]string{"1", "a"}),
		csvio.FromStrings([]string{"2", "b"}),
	}
	if err := sw.WriteBatch(batch); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if err := sw.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	want := "1,a\n2,b\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestBatcherFlushesAutomaticallyAtBufferSize(t *testing.T) {
	var buf bytes.Buffer
	w := csvio.NewWriter(&buf, csvio.DefaultWriterConfig())
	sw := NewSharedWriter(w)
	b := NewBatcher(sw, 2)

	for _, v := range []string{"1", "2", "3"} {
		if err := b.Add(csvio.FromStrings([]string{v})); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	sw.Flush()
	if got := buf.String(); got != "1\n2\n" {
		t.Fatalf("expected the first two rows auto-flushed at size 2, got %q", got)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("final Flush: %v", err)
	}
	sw.Flush()
	if got := buf.String(); got != "1\n2\n3\n" {
		t.Fatalf("expected the trailing row flushed too, got %q", got)
	}
}

func TestBatcherNegativeSizeNeverAutoFlushes(t *testing.T) {
	var buf bytes.Buffer
	w := csvio.NewWriter(&buf, csvio.DefaultWriterConfig())
	sw := NewSharedWriter(w)
	b := NewBatcher(sw, -1)

	for _, v := range []string{"1", "2", "3"} {
		if err := b.Add(csvio.FromStrings([]string{v})); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	sw.Flush()
	if got := buf.String(); got != "" {
		t.Fatalf("BufferSize -1 should hold everything until an explicit Flush, got %q", got)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	sw.Flush()
	if got := buf.String(); got != "1\n2\n3\n" {
		t.Fatalf("got %q, want all three rows as one contiguous batch", got)
	}
}

func TestChunkFilesOneChunkPerPath(t *testing.T) {
	chunks := ChunkFiles([]string{"a.csv", "b.csv", "c.csv"})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, p := range []string{"a.csv", "b.csv", "c.csv"} {
		if chunks[i].Path != p || chunks[i].Start != 0 || chunks[i].End != 0 {
			t.Fatalf("chunk %d: got %+v, want whole-file chunk for %q", i, chunks[i], p)
		}
	}
}

func TestChunkSeekCoversWholeFileWithoutOverlap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv")
	var content bytes.Buffer
	content.WriteString("a,b\n")
	for i := 0; i < 200; i++ {
		content.WriteString("11,22\n")
	}
	if err := os.WriteFile(path, content.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	chunks, err := ChunkSeek(path, 4, csvio.DefaultReaderConfig(), csvio.DefaultSeekConfidence, false)
	if err != nil {
		t.Fatalf("ChunkSeek: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if chunks[0].Start != 0 {
		t.Fatalf("first chunk should start at 0, got %d", chunks[0].Start)
	}
	last := chunks[len(chunks)-1]
	if last.End != int64(content.Len()) {
		t.Fatalf("last chunk should end at file size %d, got %d", content.Len(), last.End)
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start != chunks[i-1].End {
			t.Fatalf("chunk %d should start where chunk %d ended: got %d vs %d", i, i-1, chunks[i].Start, chunks[i-1].End)
		}
	}
}
