package csvio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/cpuid/v2"
)

// Escape selects how a quote character is escaped inside a quoted
// field: by doubling it, or by a distinct escape byte.
type Escape struct {
	Double bool
	Char   byte
}

// ReaderConfig configures the dialect the automaton parses.
type ReaderConfig struct {
	Delimiter byte
	Quote     byte
	Escape    Escape
	Quoting   bool // if false, quote characters are ordinary bytes
}

// DefaultReaderConfig is the CSV default: comma delimiter, double-quote
// quoting with doubling as the escape.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		Delimiter: ',',
		Quote:     '"',
		Escape:    Escape{Double: true},
		Quoting:   true,
	}
}

type state int

const (
	stateFieldStart state = iota
	stateInField
	stateInQuoted
	stateQuoteInQuoted
)

// Reader is a streaming, byte-oriented CSV parser: a finite automaton
// over {FieldStart, InField, InQuoted, QuoteInQuoted}, plus an
// implicit RecordEnd/Eof exit. It never decodes UTF-8: field bytes are
// copied into the record unchanged. UnequalLengths is not
// raised; callers that need rectangular records must check ByteRecord
// arity themselves.
type Reader struct {
	cfg ReaderConfig
	br  *bufio.Reader
	pos int64 // bytes consumed so far

	// hasSIMD gates the fast path: when true, unquoted field runs are
	// located with bytes.IndexAny (vectorized by the runtime on AVX2
	// CPUs) instead of being walked one ReadByte call at a time.
	// CPUs without AVX2 fall back to the portable byte-at-a-time
	// automaton, matching the spec's "SIMD fast path may be used…
	// fallback is the automaton" contract.
	hasSIMD bool

	curField []byte
}

// NewReader wraps r with the given dialect.
func NewReader(r io.Reader, cfg ReaderConfig) *Reader {
	return &Reader{
		cfg:     cfg,
		br:      bufio.NewReaderSize(r, 64*1024),
		hasSIMD: cpuid.CPU.Supports(cpuid.AVX2),
	}
}

// Pos returns the number of bytes consumed so far, used by the Seeker
// and by parallel chunking to bound a worker's range.
func (rd *Reader) Pos() int64 { return rd.pos }

// HasSIMD reports whether the fast path is available on this CPU.
func (rd *Reader) HasSIMD() bool { return rd.hasSIMD }

// Read parses the next record into rec (which is Reset first). It
// returns io.EOF when no more records remain, with rec left empty.
func (rd *Reader) Read(rec *ByteRecord) error {
	rec.Reset()
	st := stateFieldStart
	sawAny := false

	for {
		if st == stateInField && rd.hasSIMD {
			stop, found, consumed, err := rd.scanUnquotedRun()
			if err != nil {
				return fmt.Errorf("csvio: read: %w", err)
			}
			if consumed > 0 {
				sawAny = true
			}
			if found {
				switch stop {
				case rd.cfg.Delimiter:
					rd.finishField(rec)
					st = stateFieldStart
				case '\n':
					rd.trimCR(rec)
					rd.finishField(rec)
					return nil
				case '\r':
					next, peekErr := rd.br.Peek(1)
					if peekErr == nil && len(next) == 1 && next[0] == '\n' {
						rd.br.ReadByte()
						rd.pos++
						rd.finishField(rec)
						return nil
					}
					rd.curField = append(rd.curField, '\r')
				}
				continue
			}
			// Nothing buffered (or the whole buffered run was plain
			// bytes with no stop byte yet): fall through to the
			// byte-at-a-time path, which performs the actual read
			// that refills the buffer.
		}

		b, err := rd.br.ReadByte()
		if err != nil {
			if err == io.EOF {
				if !sawAny {
					return io.EOF
				}
				rd.finishField(rec)
				return nil
			}
			return fmt.Errorf("csvio: read: %w", err)
		}
		rd.pos++
		sawAny = true

		switch st {
		case stateFieldStart:
			if rd.cfg.Quoting && b == rd.cfg.Quote {
				st = stateInQuoted
				continue
			}
			st = stateInField
			fallthrough
		case stateInField:
			switch {
			case b == rd.cfg.Delimiter:
				rd.finishField(rec)
				st = stateFieldStart
			case b == '\n':
				rd.trimCR(rec)
				rd.finishField(rec)
				return nil
			case b == '\r':
				// peek for \n, otherwise treat as literal byte
				next, peekErr := rd.br.Peek(1)
				if peekErr == nil && len(next) == 1 && next[0] == '\n' {
					rd.br.ReadByte()
					rd.pos++
					rd.finishField(rec)
					return nil
				}
				rd.curField = append(rd.curField, b)
			default:
				rd.curField = append(rd.curField, b)
			}
		case stateInQuoted:
			switch {
			case !rd.cfg.Escape.Double && b == rd.cfg.Escape.Char:
				nb, err := rd.br.ReadByte()
				if err != nil {
					return fmt.Errorf("csvio: dangling escape: %w", err)
				}
				rd.pos++
				rd.curField = append(rd.curField, nb)
			case b == rd.cfg.Quote:
				st = stateQuoteInQuoted
			default:
				rd.curField = append(rd.curField, b)
			}
		case stateQuoteInQuoted:
			switch {
			case b == rd.cfg.Quote && rd.cfg.Escape.Double:
				rd.curField = append(rd.curField, b)
				st = stateInQuoted
			case b == rd.cfg.Delimiter:
				rd.finishField(rec)
				st = stateFieldStart
			case b == '\n':
				rd.trimCR(rec)
				rd.finishField(rec)
				return nil
			case b == '\r':
				next, peekErr := rd.br.Peek(1)
				if peekErr == nil && len(next) == 1 && next[0] == '\n' {
					rd.br.ReadByte()
					rd.pos++
					rd.finishField(rec)
					return nil
				}
				rd.curField = append(rd.curField, b)
				st = stateInField
			default:
				// Bare content after closing quote: treat as
				// continuing an unquoted tail (lenient mode).
				rd.curField = append(rd.curField, b)
				st = stateInField
			}
		}
	}
}

// scanUnquotedRun is the SIMD-backed fast path: it finds the next
// delimiter/CR/LF within whatever is already sitting in the bufio
// buffer via bytes.IndexAny, appending the whole plain run in one
// copy instead of walking it one ReadByte call at a time. It never
// performs I/O itself — when nothing is buffered it reports found
// false so the caller falls back to the byte-at-a-time path, which
// does the actual read that refills the buffer.
func (rd *Reader) scanUnquotedRun() (stop byte, found bool, consumed int, err error) {
	avail := rd.br.Buffered()
	if avail == 0 {
		return 0, false, 0, nil
	}
	chunk, _ := rd.br.Peek(avail)
	idx := bytes.IndexAny(chunk, string([]byte{rd.cfg.Delimiter, '\n', '\r'}))
	if idx < 0 {
		rd.curField = append(rd.curField, chunk...)
		if _, err := rd.br.Discard(avail); err != nil {
			return 0, false, 0, fmt.Errorf("csvio: read: %w", err)
		}
		rd.pos += int64(avail)
		return 0, false, avail, nil
	}
	rd.curField = append(rd.curField, chunk[:idx]...)
	if _, err := rd.br.Discard(idx + 1); err != nil {
		return 0, false, 0, fmt.Errorf("csvio: read: %w", err)
	}
	rd.pos += int64(idx + 1)
	return chunk[idx], true, idx + 1, nil
}

func (rd *Reader) finishField(rec *ByteRecord) {
	rec.AppendField(rd.curField)
	rd.curField = rd.curField[:0]
}

func (rd *Reader) trimCR(rec *ByteRecord) {
	if n := len(rd.curField); n > 0 && rd.curField[n-1] == '\r' {
		rd.curField = rd.curField[:n-1]
	}
}
