package csvio

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func readAll(t *testing.T, src string, cfg ReaderConfig) [][]string {
	t.Helper()
	rd := NewReader(strings.NewReader(src), cfg)
	var rows [][]string
	rec := NewByteRecord()
	for {
		err := rd.Read(rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		rows = append(rows, append([]string(nil), rec.Fields()...))
	}
	return rows
}

func TestReaderBasic(t *testing.T) {
	rows := readAll(t, "a,b,c\n1,2,3\n", DefaultReaderConfig())
	want := [][]string{{"a", "b", "c"}, {"1", "2", "3"}}
	if len(rows) != len(want) {
		t.Fatalf("got %v rows, want %v", rows, want)
	}
	for i := range want {
		if len(rows[i]) != len(want[i]) {
			t.Fatalf("row %d: got %v want %v", i, rows[i], want[i])
		}
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Fatalf("row %d field %d: got %q want %q", i, j, rows[i][j], want[i][j])
			}
		}
	}
}

func TestReaderCRLF(t *testing.T) {
	rows := readAll(t, "a,b\r\n1,2\r\n", DefaultReaderConfig())
	if len(rows) != 2 || rows[1][1] != "2" {
		t.Fatalf("CRLF not trimmed: %v", rows)
	}
}

func TestReaderQuotedWithEmbeddedDelimiterAndNewline(t *testing.T) {
	rows := readAll(t, "a,b\n\"x,y\",\"line1\nline2\"\n", DefaultReaderConfig())
	if len(rows) != 2 {
		t.Fatalf("want 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "x,y" {
		t.Fatalf("embedded delimiter not preserved: %q", rows[1][0])
	}
	if rows[1][1] != "line1\nline2" {
		t.Fatalf("embedded newline not preserved: %q", rows[1][1])
	}
}

func TestReaderDoubledQuoteEscape(t *testing.T) {
	rows := readAll(t, `a` + "\n" + `"say ""hi"""` + "\n", DefaultReaderConfig())
	if len(rows) != 2 || rows[1][0] != `say "hi"` {
		t.Fatalf("doubled quote not collapsed: %v", rows)
	}
}

func TestReaderIrregularRowsAllowed(t *testing.T) {
	// spec §4.1: UnequalLengths is not raised by default.
	rows := readAll(t, "a,b,c\n1,2\n3,4,5,6\n", DefaultReaderConfig())
	if len(rows) != 3 {
		t.Fatalf("want 3 rows (irregular allowed), got %d", len(rows))
	}
	if len(rows[1]) != 2 {
		t.Fatalf("short row truncated unexpectedly: %v", rows[1])
	}
	if len(rows[2]) != 4 {
		t.Fatalf("long row truncated unexpectedly: %v", rows[2])
	}
}

func TestReaderTabDelimiter(t *testing.T) {
	cfg := DefaultReaderConfig()
	cfg.Delimiter = '\t'
	rows := readAll(t, "a\tb\n1\t2\n", cfg)
	if len(rows) != 2 || rows[1][1] != "2" {
		t.Fatalf("tab delimiter not honored: %v", rows)
	}
}

// TestRoundTrip verifies spec invariant 1: Reader -> Writer(Necessary)
// -> re-Reader yields identical ByteRecords.
func TestRoundTrip(t *testing.T) {
	src := "a,b,c\n1,\"has,comma\",3\n\"multi\nline\",5,6\n"
	rd := NewReader(strings.NewReader(src), DefaultReaderConfig())
	var recs []*ByteRecord
	rec := NewByteRecord()
	for {
		if err := rd.Read(rec); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Read: %v", err)
		}
		recs = append(recs, rec.Clone())
	}

	var buf bytes.Buffer
	wr := NewWriter(&buf, DefaultWriterConfig())
	for _, r := range recs {
		if err := wr.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := wr.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	rd2 := NewReader(&buf, DefaultReaderConfig())
	rec2 := NewByteRecord()
	for i, want := range recs {
		if err := rd2.Read(rec2); err != nil {
			t.Fatalf("re-Read row %d: %v", i, err)
		}
		if !want.Equal(rec2) {
			t.Fatalf("round-trip mismatch at row %d: got %v want %v", i, rec2, want)
		}
	}
}

func TestWriterQuotingPolicies(t *testing.T) {
	rec := FromStrings([]string{"plain", "has,comma", "has\"quote"})

	var necessary bytes.Buffer
	wr := NewWriter(&necessary, DefaultWriterConfig())
	wr.Write(rec)
	wr.Flush()
	if got := necessary.String(); got != "plain,\"has,comma\",\"has\"\"quote\"\n" {
		t.Fatalf("Necessary quoting: got %q", got)
	}

	var always bytes.Buffer
	cfg := DefaultWriterConfig()
	cfg.Quoting = QuoteAlways
	wr2 := NewWriter(&always, cfg)
	wr2.Write(FromStrings([]string{"plain"}))
	wr2.Flush()
	if got := always.String(); got != "\"plain\"\n" {
		t.Fatalf("Always quoting: got %q", got)
	}
}

func TestWriterCRLF(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultWriterConfig()
	cfg.CRLF = true
	wr := NewWriter(&buf, cfg)
	wr.Write(FromStrings([]string{"a", "b"}))
	wr.Flush()
	if buf.String() != "a,b\r\n" {
		t.Fatalf("CRLF terminator not written: %q", buf.String())
	}
}
