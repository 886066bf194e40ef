package csvio

import (
	"bufio"
	"bytes"
	"io"
)

// Quoting is the writer's quoting policy.
type Quoting int

const (
	QuoteNecessary Quoting = iota
	QuoteAlways
	QuoteNever
)

// WriterConfig configures the dialect the writer emits.
type WriterConfig struct {
	Delimiter byte
	Quote     byte
	Escape    Escape
	Quoting   Quoting
	CRLF      bool // terminator is CRLF instead of LF
}

// DefaultWriterConfig mirrors DefaultReaderConfig with Necessary quoting.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Delimiter: ',',
		Quote:     '"',
		Escape:    Escape{Double: true},
		Quoting:   QuoteNecessary,
	}
}

// Writer emits ByteRecords in the configured dialect.
type Writer struct {
	cfg WriterConfig
	w   *bufio.Writer
}

// NewWriter wraps w with the given dialect.
func NewWriter(w io.Writer, cfg WriterConfig) *Writer {
	return &Writer{cfg: cfg, w: bufio.NewWriterSize(w, 64*1024)}
}

// Write emits one record, delimiter-separated, quoted per policy.
func (wr *Writer) Write(rec *ByteRecord) error {
	for i := 0; i < rec.Len(); i++ {
		if i > 0 {
			if err := wr.w.WriteByte(wr.cfg.Delimiter); err != nil {
				return err
			}
		}
		if err := wr.writeField(rec.Field(i)); err != nil {
			return err
		}
	}
	if wr.cfg.CRLF {
		_, err := wr.w.WriteString("\r\n")
		return err
	}
	return wr.w.WriteByte('\n')
}

func (wr *Writer) writeField(f []byte) error {
	needsQuote := wr.cfg.Quoting == QuoteAlways || (wr.cfg.Quoting == QuoteNecessary && wr.fieldNeedsQuoting(f))
	if !needsQuote {
		_, err := wr.w.Write(f)
		return err
	}
	if err := wr.w.WriteByte(wr.cfg.Quote); err != nil {
		return err
	}
	for _, b := range f {
		if b == wr.cfg.Quote {
			if wr.cfg.Escape.Double {
				if err := wr.w.WriteByte(wr.cfg.Quote); err != nil {
					return err
				}
			} else {
				if err := wr.w.WriteByte(wr.cfg.Escape.Char); err != nil {
					return err
				}
			}
		}
		if err := wr.w.WriteByte(b); err != nil {
			return err
		}
	}
	return wr.w.WriteByte(wr.cfg.Quote)
}

func (wr *Writer) fieldNeedsQuoting(f []byte) bool {
	return bytes.IndexByte(f, wr.cfg.Delimiter) >= 0 ||
		bytes.IndexByte(f, wr.cfg.Quote) >= 0 ||
		bytes.IndexByte(f, '\r') >= 0 ||
		bytes.IndexByte(f, '\n') >= 0
}

// Flush flushes the underlying buffered writer.
func (wr *Writer) Flush() error { return wr.w.Flush() }
