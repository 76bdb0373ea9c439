package replay

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
	"vled/capture"
	"vled/register"
)

func writeCapture(t *testing.T, values ...uint32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cap.bin")
	w, err := capture.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	start := time.Now()
	for i, v := range values {
		if err := w.Write(start.Add(time.Duration(i)*time.Millisecond), v); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestReplay_StreamsInOrder(t *testing.T) {
	path := writeCapture(t, 1, 0, 1, 5)

	q, err := register.Open(driverName, register.Target{Name: path, Options: map[string]string{"speed": "4"}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	var got []uint32
	s := q.(register.Streamer)
	if err := s.Stream(context.Background(), func(v uint32) { got = append(got, v) }); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 4 || got[0] != 1 || got[1] != 0 || got[2] != 1 || got[3] != 5 {
		t.Fatalf("got=%v", got)
	}

	v, err := register.ReadValue(context.Background(), q, 0)
	if err != nil || v != 5 {
		t.Fatalf("last=%d err=%v", v, err)
	}
	if err := register.WriteValue(context.Background(), q, 0, 1); !errors.Is(err, register.ErrReadOnly) {
		t.Fatalf("write err=%v", err)
	}
}

func TestReplay_LoopStopsOnCancel(t *testing.T) {
	path := writeCapture(t, 1, 0)
	q, err := (&Driver{}).Open(register.Target{Name: path, Options: map[string]string{"loop": "true"}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	err = q.(register.Streamer).Stream(ctx, func(uint32) {
		n++
		if n == 10 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if n < 10 {
		t.Fatalf("n=%d", n)
	}
}

func TestReplay_OpenErrors(t *testing.T) {
	d := &Driver{}
	if _, err := d.Open(register.Target{}); err == nil {
		t.Fatalf("expected error without path")
	}
	path := writeCapture(t, 1)
	if _, err := d.Open(register.Target{Name: path, Options: map[string]string{"speed": "0"}}); err == nil {
		t.Fatalf("expected error for speed 0")
	}
}
