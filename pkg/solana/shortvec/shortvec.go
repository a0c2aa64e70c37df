// Package shortvec implements the compact-u16 length prefix used in
// transaction wire encoding.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// MaxEncodingLength is the largest number of bytes a u16 can occupy.
const MaxEncodingLength = 3

var (
	ErrOverflow     = errors.New("shortvec: value exceeds u16")
	ErrNonCanonical = errors.New("shortvec: non-canonical encoding")
)

// EncodeLen encodes the specified len into the writer.
func EncodeLen(w io.Writer, len int) (n int, err error) {
	if len < 0 || len > math.MaxUint16 {
		return 0, ErrOverflow
	}

	var buf [MaxEncodingLength]byte
	for {
		buf[n] = byte(len & 0x7f)
		len >>= 7
		if len == 0 {
			n++
			break
		}
		buf[n] |= 0x80
		n++
	}
	return w.Write(buf[:n])
}

// DecodeLen decodes a shortvec encoded len from the reader. Encodings that
// overflow a u16 or carry a redundant trailing zero byte are rejected, so
// every length has exactly one valid encoding.
func DecodeLen(r io.ByteReader) (int, error) {
	var val int
	for i := 0; i < MaxEncodingLength; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		if b == 0 && i > 0 {
			return 0, ErrNonCanonical
		}

		val |= int(b&0x7f) << (i * 7)
		if val > math.MaxUint16 {
			return 0, ErrOverflow
		}

		if b&0x80 == 0 {
			return val, nil
		}
	}
	return 0, ErrOverflow
}
