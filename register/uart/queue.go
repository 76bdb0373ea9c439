package uart

import (
	"errors"
	"fmt"
	"io"
	"os"
	"vled/le32"
	"vled/register"
)

const (
	opRead  = 'R'
	opWrite = 'W'
	ack     = 'K'
)

type Queue struct {
	register.BaseQueue

	name string
	f    io.ReadWriteCloser
}

func NewQueue(name string, f io.ReadWriteCloser) *Queue {
	q := &Queue{name: name, f: f}
	q.BaseInit(driverName, q)
	return q
}

func (q *Queue) IsTerminalError(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed)
}

func (q *Queue) ReadRegister(address uint32) (uint32, error) {
	sb := make([]byte, 0, 5)
	sb = append(sb, opRead)
	sb = le32.Append(sb, address)
	if err := sendSerial(q.f, sb); err != nil {
		return 0, fmt.Errorf("uart: %s: read 0x%X: %w", q.name, address, err)
	}

	rsp := make([]byte, le32.Size)
	if err := recvSerial(q.f, rsp, le32.Size); err != nil {
		return 0, fmt.Errorf("uart: %s: read 0x%X: %w", q.name, address, err)
	}
	return le32.Decode(rsp), nil
}

func (q *Queue) WriteRegister(address uint32, value uint32) error {
	sb := make([]byte, 0, 9)
	sb = append(sb, opWrite)
	sb = le32.Append(sb, address)
	sb = le32.Append(sb, value)
	if err := sendSerial(q.f, sb); err != nil {
		return fmt.Errorf("uart: %s: write 0x%X: %w", q.name, address, err)
	}

	rsp := make([]byte, 1)
	if err := recvSerial(q.f, rsp, 1); err != nil {
		return fmt.Errorf("uart: %s: write 0x%X: %w", q.name, address, err)
	}
	if rsp[0] != ack {
		return fmt.Errorf("uart: %s: write 0x%X: unexpected reply %#02x", q.name, address, rsp[0])
	}
	return nil
}

func (q *Queue) CloseBackend() error {
	return q.f.Close()
}

func sendSerial(f io.Writer, buf []byte) error {
	sent := 0
	for sent < len(buf) {
		n, e := f.Write(buf[sent:])
		if e != nil {
			return e
		}
		sent += n
	}
	return nil
}

func recvSerial(f io.Reader, rsp []byte, expected int) error {
	o := 0
	for o < expected {
		n, err := f.Read(rsp[o:expected])
		if err != nil {
			if err == io.EOF && o > 0 {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if n <= 0 {
			return fmt.Errorf("recvSerial: Read returned %d", n)
		}
		o += n
	}
	return nil
}
