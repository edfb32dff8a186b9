package records

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrCorrupt is returned for unknown versions and malformed payloads.
var ErrCorrupt = errors.New("records: corrupt record")

func writeString16(buf *bytes.Buffer, field, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("records: %s too long", field)
	}
	_ = binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
	return nil
}

func writeBytes32(buf *bytes.Buffer, field string, b []byte) error {
	if uint64(len(b)) > math.MaxUint32 {
		return fmt.Errorf("records: %s too long", field)
	}
	_ = binary.Write(buf, binary.BigEndian, uint32(len(b)))
	buf.Write(b)
	return nil
}

func writeInt64(buf *bytes.Buffer, v int64) {
	_ = binary.Write(buf, binary.BigEndian, v)
}

type reader struct {
	r   *bytes.Reader
	err error
}

func newReader(data []byte, version byte) (*reader, error) {
	r := &reader{r: bytes.NewReader(data)}
	v, err := r.r.ReadByte()
	if err != nil || v != version {
		return nil, ErrCorrupt
	}
	return r, nil
}

func (r *reader) readByte() byte {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	r.err = err
	return b
}

func (r *reader) readUint16() uint16 {
	var v uint16
	if r.err == nil {
		r.err = binary.Read(r.r, binary.BigEndian, &v)
	}
	return v
}

func (r *reader) readInt64() int64 {
	var v int64
	if r.err == nil {
		r.err = binary.Read(r.r, binary.BigEndian, &v)
	}
	return v
}

func (r *reader) readFixed(dst []byte) {
	if r.err == nil {
		_, r.err = io.ReadFull(r.r, dst)
	}
}

func (r *reader) readString16() string {
	n := r.readUint16()
	if r.err != nil {
		return ""
	}
	if int(n) > r.r.Len() {
		r.err = io.ErrUnexpectedEOF
		return ""
	}
	b := make([]byte, n)
	r.readFixed(b)
	return string(b)
}

func (r *reader) readBytes32() []byte {
	var n uint32
	if r.err == nil {
		r.err = binary.Read(r.r, binary.BigEndian, &n)
	}
	if r.err != nil {
		return nil
	}
	if int64(n) > int64(r.r.Len()) {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	if n == 0 {
		return nil
	}
	b := make([]byte, n)
	r.readFixed(b)
	return b
}

// done reports ErrCorrupt for read failures and trailing bytes.
func (r *reader) done() error {
	if r.err != nil || r.r.Len() != 0 {
		return ErrCorrupt
	}
	return nil
}
