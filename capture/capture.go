// Package capture records register readings to a file and reads them back.
//
// A capture starts with the 8-byte magic "VLEDCAP1". Each record follows as a
// length-delimited protobuf message:
//
//	1: varint   nanoseconds since the start of the capture
//	2: fixed32  register value
//
// Unknown fields are skipped so records can grow.
package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

const Magic = "VLEDCAP1"

const (
	fieldAt    protowire.Number = 1
	fieldValue protowire.Number = 2
)

type Record struct {
	At    time.Duration
	Value uint32
}

func (r Record) marshal(b []byte) []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, fieldAt, protowire.VarintType)
	msg = protowire.AppendVarint(msg, uint64(r.At))
	msg = protowire.AppendTag(msg, fieldValue, protowire.Fixed32Type)
	msg = protowire.AppendFixed32(msg, r.Value)
	return protowire.AppendBytes(b, msg)
}

func unmarshalRecord(msg []byte) (Record, error) {
	var r Record
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return r, protowire.ParseError(n)
		}
		msg = msg[n:]

		switch {
		case num == fieldAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return r, protowire.ParseError(n)
			}
			r.At = time.Duration(v)
			msg = msg[n:]
		case num == fieldValue && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(msg)
			if n < 0 {
				return r, protowire.ParseError(n)
			}
			r.Value = v
			msg = msg[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return r, protowire.ParseError(n)
			}
			msg = msg[n:]
		}
	}
	return r, nil
}

// ReadAll parses a whole capture.
func ReadAll(r io.Reader) ([]Record, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(b, []byte(Magic)) {
		return nil, fmt.Errorf("capture: missing %s header", Magic)
	}
	b = b[len(Magic):]

	recs := make([]Record, 0, len(b)/12)
	for len(b) > 0 {
		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("capture: record %d: %w", len(recs), protowire.ParseError(n))
		}
		b = b[n:]

		rec, err := unmarshalRecord(msg)
		if err != nil {
			return nil, fmt.Errorf("capture: record %d: %w", len(recs), err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAll(f)
}

type Writer struct {
	c      io.Closer
	w      *bufio.Writer
	start  time.Time
	buf    []byte
	closed bool
}

// NewWriter writes the header to w. Record times are measured from start.
func NewWriter(w io.Writer, start time.Time) (*Writer, error) {
	bw := bufio.NewWriterSize(w, 16*1024)
	if _, err := bw.WriteString(Magic); err != nil {
		return nil, err
	}
	ww := &Writer{w: bw, start: start}
	if c, ok := w.(io.Closer); ok {
		ww.c = c
	}
	return ww, nil
}

func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, time.Now())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func (ww *Writer) Write(now time.Time, value uint32) error {
	if ww.closed {
		return errors.New("capture writer is closed")
	}

	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	ww.buf = Record{At: d, Value: value}.marshal(ww.buf[:0])
	_, err := ww.w.Write(ww.buf)
	return err
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	err := ww.w.Flush()
	ww.closed = true
	if ww.c != nil {
		if cerr := ww.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type Summary struct {
	Count    int
	Min      uint32
	Max      uint32
	NonZero  int
	Duration time.Duration
}

func Summarize(recs []Record) Summary {
	var s Summary
	for i, r := range recs {
		if i == 0 || r.Value < s.Min {
			s.Min = r.Value
		}
		if i == 0 || r.Value > s.Max {
			s.Max = r.Value
		}
		if r.Value != 0 {
			s.NonZero++
		}
		if r.At > s.Duration {
			s.Duration = r.At
		}
	}
	s.Count = len(recs)
	return s
}
