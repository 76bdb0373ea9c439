package sniffer

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
	"vled/le32"
	"vled/register"
)

// serveOnce accepts conns connections in turn and writes each payload, split
// in two to exercise frames that straddle TCP reads.
func serveOnce(t *testing.T, payloads ...[]byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for _, p := range payloads {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write(p[:len(p)/2+1])
			time.Sleep(20 * time.Millisecond)
			_, _ = conn.Write(p[len(p)/2+1:])
			time.Sleep(20 * time.Millisecond)
			_ = conn.Close()
		}
	}()
	return ln.Addr().String()
}

func TestStream_DecodesAndReconnects(t *testing.T) {
	first := le32.Append(le32.Append(nil, 1), 0)
	second := le32.Append(le32.Append(nil, 0x12345678), 1)
	addr := serveOnce(t, first, second)

	q := NewQueue(Config{Addr: addr, ReconnectDelay: 10 * time.Millisecond})
	defer q.Close()

	if _, err := register.ReadValue(context.Background(), q, 0); !errors.Is(err, register.ErrNoReading) {
		t.Fatalf("read before stream err=%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan uint32, 16)
	errc := make(chan error, 1)
	go func() { errc <- q.Stream(ctx, func(v uint32) { got <- v }) }()

	want := []uint32{1, 0, 0x12345678, 1}
	for i, w := range want {
		select {
		case v := <-got:
			if v != w {
				t.Fatalf("reading[%d]=%#x want %#x", i, v, w)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for reading %d", i)
		}
	}

	v, err := register.ReadValue(context.Background(), q, 0)
	if err != nil || v != 1 {
		t.Fatalf("last reading=%d err=%v", v, err)
	}
	if snap := q.Snapshot(); snap.Readings != 4 || snap.Addr != addr {
		t.Fatalf("snapshot=%+v", snap)
	}

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Stream returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Stream did not return after cancel")
	}
}

func TestStream_StopsOnClose(t *testing.T) {
	// nothing listening: Stream keeps retrying until the queue is closed.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	q := NewQueue(Config{Addr: addr, ReconnectDelay: 10 * time.Millisecond})
	errc := make(chan error, 1)
	go func() { errc <- q.Stream(context.Background(), func(uint32) {}) }()

	time.Sleep(50 * time.Millisecond)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, register.ErrClosed) {
			t.Fatalf("Stream returned %v want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Stream did not return after Close")
	}
	if snap := q.Snapshot(); snap.State != "stopped" {
		t.Fatalf("state=%q", snap.State)
	}
}

func TestWriteIsReadOnly(t *testing.T) {
	q := NewQueue(Config{Addr: DefaultAddr})
	defer q.Close()

	err := register.WriteValue(context.Background(), q, 0, 1)
	if !errors.Is(err, register.ErrReadOnly) {
		t.Fatalf("err=%v want ErrReadOnly", err)
	}
}
