// Package le32 encodes and decodes the 4-byte little-endian register readings
// streamed by the sniffer.
package le32

import "encoding/binary"

// Size is the number of bytes in one reading.
const Size = 4

// Decode returns b[0] | b[1]<<8 | b[2]<<16 | b[3]<<24.
func Decode(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// Append appends the little-endian encoding of v to dst.
func Append(dst []byte, v uint32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// Decoder accumulates a byte stream into readings. A reading split across
// two Feed calls is completed on the second call.
type Decoder struct {
	buf [Size]byte
	n   int
}

// Feed consumes p and calls emit once per complete reading, in stream order.
func (d *Decoder) Feed(p []byte, emit func(v uint32)) {
	for len(p) > 0 {
		if d.n == 0 && len(p) >= Size {
			// fast path for whole frames:
			emit(Decode(p))
			p = p[Size:]
			continue
		}

		c := copy(d.buf[d.n:], p)
		d.n += c
		p = p[c:]
		if d.n == Size {
			emit(Decode(d.buf[:]))
			d.n = 0
		}
	}
}

// Pending returns the number of buffered bytes of an incomplete reading.
func (d *Decoder) Pending() int { return d.n }

// Reset drops any partially received reading.
func (d *Decoder) Reset() { d.n = 0 }
