// Package ioutilx adapts compressed and bgzipped streams into plain
// io.Reader/io.ReaderAt, transparently, based on file extension and
// the presence of a sibling .gzi index.
package ioutilx

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	kzstd "github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/xanlabs/xan-go/internal/xerr"
)

// Kind identifies the detected compression scheme of a path.
type Kind int

const (
	KindNone Kind = iota
	KindGzip
	KindBgzip // gzip with a sibling .gzi index: seekable
	KindZstd
)

// DetectKind inspects path's extension (and the presence of a
// "<path>.gzi" sibling) to classify the compression scheme, matching
// spec §6's ".gz / .zst / bgzip+.gzi" contract.
func DetectKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		if _, err := os.Stat(path + ".gzi"); err == nil {
			return KindBgzip
		}
		return KindGzip
	case ".zst":
		return KindZstd
	default:
		return KindNone
	}
}

// Open opens path and wraps it in a decompressing reader appropriate
// to its Kind. Multi-member gzip streams are supported transparently
// by pgzip's Reader, which concatenates members the way gzip.Reader
// does.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerr.New(xerr.Io, err)
	}
	switch DetectKind(path) {
	case KindGzip, KindBgzip:
		gz, err := pgzip.NewReader(bufio.NewReaderSize(f, 64*1024))
		if err != nil {
			f.Close()
			return nil, xerr.New(xerr.Io, err)
		}
		return &readCloserPair{Reader: gz, closer: f}, nil
	case KindZstd:
		zr, err := kzstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, xerr.New(xerr.Io, err)
		}
		return &zstdReadCloser{dec: zr, f: f}, nil
	default:
		return f, nil
	}
}

type readCloserPair struct {
	io.Reader
	closer io.Closer
}

func (p *readCloserPair) Close() error { return p.closer.Close() }

type zstdReadCloser struct {
	dec *kzstd.Decoder
	f   *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }
func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.f.Close()
}
