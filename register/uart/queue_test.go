package uart

import (
	"context"
	"io"
	"net"
	"testing"
	"vled/le32"
	"vled/register"
)

// bridge emulates the FPGA side of the serial link over one end of a pipe.
func bridge(t *testing.T, conn net.Conn, regs map[uint32]uint32) {
	t.Helper()
	go func() {
		defer conn.Close()
		op := make([]byte, 1)
		word := make([]byte, 4)
		for {
			if _, err := io.ReadFull(conn, op); err != nil {
				return
			}
			if _, err := io.ReadFull(conn, word); err != nil {
				return
			}
			addr := le32.Decode(word)
			switch op[0] {
			case opRead:
				if _, err := conn.Write(le32.Append(nil, regs[addr])); err != nil {
					return
				}
			case opWrite:
				if _, err := io.ReadFull(conn, word); err != nil {
					return
				}
				regs[addr] = le32.Decode(word)
				if _, err := conn.Write([]byte{ack}); err != nil {
					return
				}
			default:
				return
			}
		}
	}()
}

func TestQueue_ReadWrite(t *testing.T) {
	host, dev := net.Pipe()
	regs := map[uint32]uint32{0xFF: 1}
	bridge(t, dev, regs)

	q := NewQueue("pipe", host)
	defer q.Close()

	ctx := context.Background()
	v, err := register.ReadValue(ctx, q, 0xFF)
	if err != nil || v != 1 {
		t.Fatalf("v=%d err=%v", v, err)
	}
	if err := register.WriteValue(ctx, q, 0x100, 500_000_000); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	v, err = register.ReadValue(ctx, q, 0x100)
	if err != nil || v != 500_000_000 {
		t.Fatalf("v=%d err=%v", v, err)
	}
}

func TestQueue_BridgeGoneIsTerminal(t *testing.T) {
	host, dev := net.Pipe()
	_ = dev.Close()

	q := NewQueue("pipe", host)
	_, err := register.ReadValue(context.Background(), q, 0xFF)
	if !register.IsDeviceDisconnected(err) {
		t.Fatalf("err=%v want device disconnected", err)
	}
	<-q.Closed()
}
