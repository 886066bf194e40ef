// Package command assembles the per-subcommand pipelines (Reader →
// Selection → Program/Aggregator → Writer) that cmd/xan dispatches to.
// Each subcommand owns a go-flags opts struct in the teacher's
// per-dialect style (one opts struct, one parser, one Run function).
package command

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xanlabs/xan-go/internal/csvio"
	"github.com/xanlabs/xan-go/internal/ioutilx"
	"github.com/xanlabs/xan-go/internal/moonblade"
	"github.com/xanlabs/xan-go/internal/xerr"
)

// bytesValue wraps a raw field's bytes as a moonblade string Value,
// the representation every aggregator's Update expects for a
// plain CSV field (numeric coercion happens lazily via AsFloat/AsInt).
func bytesValue(b []byte) moonblade.Value {
	return moonblade.String(string(b))
}

// CommonOpts are the flags shared by nearly every subcommand (spec §6).
type CommonOpts struct {
	Select     string `short:"s" long:"select" description:"Column selection"`
	NoHeaders  bool   `short:"n" long:"no-headers" description:"Input has no header row"`
	Delimiter  string `short:"d" long:"delimiter" description:"Input field delimiter"`
	OutDelim   string `short:"t" long:"out-delimiter" description:"Output field delimiter"`
	Output     string `short:"o" long:"output" description:"Write output to a file instead of stdout"`
	Parallel   bool   `short:"p" long:"parallel" description:"Enable parallel execution"`
	Threads    int    `long:"threads" description:"Worker thread count (0 = auto)"`
	Errors     string `short:"E" long:"errors" description:"Error policy: panic, ignore, log, report" default:"panic"`
	Seed       int64  `long:"seed" description:"Seed for any randomized functions"`
}

// ResolveDelimiter applies the .tsv/.tab extension sniff (spec §6)
// when no explicit delimiter was given.
func ResolveDelimiter(explicit, path string) byte {
	if explicit != "" {
		return explicit[0]
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		return '\t'
	case ".ndjson", ".jsonl":
		return '\t'
	default:
		return ','
	}
}

// ReaderConfigFor builds a csvio.ReaderConfig for path given the
// common delimiter/headerless flags.
func (o CommonOpts) ReaderConfigFor(path string) csvio.ReaderConfig {
	cfg := csvio.DefaultReaderConfig()
	cfg.Delimiter = ResolveDelimiter(o.Delimiter, path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".ndjson" || ext == ".jsonl" {
		cfg.Quoting = false
	}
	return cfg
}

// WriterConfigFor builds the output csvio.WriterConfig, honoring
// -t/--out-delimiter independently of the input dialect.
func (o CommonOpts) WriterConfigFor() csvio.WriterConfig {
	cfg := csvio.DefaultWriterConfig()
	if o.OutDelim != "" {
		cfg.Delimiter = o.OutDelim[0]
	} else if o.Delimiter != "" {
		cfg.Delimiter = o.Delimiter[0]
	}
	return cfg
}

// OpenInput opens path (or stdin for "-"/""), transparently
// decompressing per ioutilx.DetectKind.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return ioutilx.Open(path)
}

// OpenOutput opens the -o/--output destination, or stdout.
func OpenOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, xerr.Op(xerr.Io, "output", err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// ReadHeaders reads the first record as headers (if !noHeaders) or
// synthesizes positional names "0".."arity-1" otherwise, returning the
// headers record and the resolved arity.
func ReadHeaders(rd *csvio.Reader, noHeaders bool) (*csvio.ByteRecord, int, error) {
	if noHeaders {
		rec := csvio.NewByteRecord()
		if err := rd.Read(rec); err != nil {
			if err == io.EOF {
				return csvio.NewByteRecord(), 0, nil
			}
			return nil, 0, xerr.New(xerr.Io, err)
		}
		arity := rec.Len()
		names := make([]string, arity)
		for i := range names {
			names[i] = itoa(i)
		}
		return csvio.FromStrings(names), arity, nil
	}
	headers := csvio.NewByteRecord()
	if err := rd.Read(headers); err != nil {
		if err == io.EOF {
			return csvio.NewByteRecord(), 0, nil
		}
		return nil, 0, xerr.New(xerr.Io, err)
	}
	return headers.Clone(), headers.Len(), nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
