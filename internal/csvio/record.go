// Package csvio implements the byte-oriented CSV runtime: ByteRecord,
// Selection, the streaming Reader/Writer, and the statistical Seeker.
// Fields are never decoded as UTF-8 unless a caller explicitly asks for
// a string; everything else stays a slice of the record's own buffer.
package csvio

import "fmt"

// ByteRecord is a single parsed row: one contiguous buffer plus the end
// offset of each field. Field 0 implicitly starts at 0; offsets[i]
// is the end of field i. Invariant: offsets are non-decreasing and the
// last one equals len(buf).
type ByteRecord struct {
	buf     []byte
	offsets []int
}

// NewByteRecord returns an empty, reusable record.
func NewByteRecord() *ByteRecord {
	return &ByteRecord{}
}

// Reset clears the record for reuse without releasing its backing
// arrays, so a Reader can recycle one or two ByteRecords across rows.
func (r *ByteRecord) Reset() {
	r.buf = r.buf[:0]
	r.offsets = r.offsets[:0]
}

// Len returns the number of fields.
func (r *ByteRecord) Len() int { return len(r.offsets) }

// Field returns the raw bytes of field i. The slice aliases the
// record's internal buffer and is only valid until the next Reset.
func (r *ByteRecord) Field(i int) []byte {
	start := 0
	if i > 0 {
		start = r.offsets[i-1]
	}
	return r.buf[start:r.offsets[i]]
}

// FieldString copies field i out as a string (the one place a UTF-8
// assumption is ever made, and only on explicit request).
func (r *ByteRecord) FieldString(i int) string {
	return string(r.Field(i))
}

// AppendField appends a new field, copying b into the record's buffer.
func (r *ByteRecord) AppendField(b []byte) {
	r.buf = append(r.buf, b...)
	r.offsets = append(r.offsets, len(r.buf))
}

// Clone returns a deep copy, safe to retain past the next Reset of r.
func (r *ByteRecord) Clone() *ByteRecord {
	out := &ByteRecord{
		buf:     append([]byte(nil), r.buf...),
		offsets: append([]int(nil), r.offsets...),
	}
	return out
}

// Fields materializes the record as a []string, for callers (like the
// CLI's "view" pretty-printer) that need owned, decoded copies.
func (r *ByteRecord) Fields() []string {
	out := make([]string, r.Len())
	for i := range out {
		out[i] = r.FieldString(i)
	}
	return out
}

// FromStrings builds a ByteRecord from owned strings, used by writers
// composing output rows (e.g. aggregation results) that originate as
// Go strings rather than parsed bytes.
func FromStrings(fields []string) *ByteRecord {
	r := NewByteRecord()
	for _, f := range fields {
		r.AppendField([]byte(f))
	}
	return r
}

// Equal reports whether two records have identical field bytes (not
// buffer identity). Used by round-trip tests.
func (r *ByteRecord) Equal(other *ByteRecord) bool {
	if r.Len() != other.Len() {
		return false
	}
	for i := 0; i < r.Len(); i++ {
		if string(r.Field(i)) != string(other.Field(i)) {
			return false
		}
	}
	return true
}

func (r *ByteRecord) String() string {
	return fmt.Sprintf("%v", r.Fields())
}
