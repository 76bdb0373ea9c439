package mock

import (
	"context"
	"testing"
	"time"
	"vled/register"
)

func TestMock_ReadWrite(t *testing.T) {
	q, err := register.Open(driverName, register.Target{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	ctx := context.Background()
	if err := register.WriteValue(ctx, q, 0xFF, 42); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	v, err := register.ReadValue(ctx, q, 0xFF)
	if err != nil || v != 42 {
		t.Fatalf("v=%d err=%v", v, err)
	}
}

func TestMock_EmulatedLEDBlinks(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	now := time.Unix(0, 0)
	q.mu.Lock()
	q.now = func() time.Time { return now }
	q.mu.Unlock()
	q.EmulateLED(0x04, 0x08, 50_000_000)

	ctx := context.Background()
	read := func() uint32 {
		t.Helper()
		v, err := register.ReadValue(ctx, q, 0x04)
		if err != nil {
			t.Fatalf("ReadValue: %v", err)
		}
		return v
	}

	if v := read(); v != 0 {
		t.Fatalf("LED with no counter=%d want 0", v)
	}

	// 2 Hz: on for 250ms, off for 250ms.
	if err := register.WriteValue(ctx, q, 0x08, 2*50_000_000); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if v := read(); v != 1 {
		t.Fatalf("LED at t=0 is %d want 1", v)
	}
	now = now.Add(300 * time.Millisecond)
	if v := read(); v != 0 {
		t.Fatalf("LED at t=300ms is %d want 0", v)
	}
	now = now.Add(250 * time.Millisecond)
	if v := read(); v != 1 {
		t.Fatalf("LED at t=550ms is %d want 1", v)
	}
}

func TestMock_OpenOptions(t *testing.T) {
	d := &Driver{}
	if _, err := d.Open(register.Target{Options: map[string]string{"counter_scale": "0"}}); err == nil {
		t.Fatalf("expected error for zero scale")
	}
	q, err := d.Open(register.Target{Options: map[string]string{"led_address": "0x4", "counter_address": "0x8"}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()
	mq := q.(*Queue)
	if !mq.emulate || mq.ledAddress != 4 || mq.counterAddress != 8 {
		t.Fatalf("emulation not configured: %+v", mq)
	}
}

func TestMock_EmulatedLEDFasterThanClock(t *testing.T) {
	q := NewQueue()
	defer q.Close()
	q.EmulateLED(0xFF, 0xFF, 1)

	ctx := context.Background()
	if err := register.WriteValue(ctx, q, 0xFF, 600_000_000); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	v, err := register.ReadValue(ctx, q, 0xFF)
	if err != nil || v != 1 {
		t.Fatalf("v=%d err=%v", v, err)
	}

	// the largest counter must not overflow the half period math either:
	if err := register.WriteValue(ctx, q, 0xFF, 0xFFFFFFFF); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if v, err := register.ReadValue(ctx, q, 0xFF); err != nil || v != 1 {
		t.Fatalf("v=%d err=%v", v, err)
	}
}

func TestDriver_RejectsBadOptions(t *testing.T) {
	cases := []map[string]string{
		{"led_address": "nope"},
		{"counter_address": "x"},
		{"counter_scale": "0"},
		{"counter_scale": "-5"},
	}
	for _, opts := range cases {
		q, err := (&Driver{}).Open(register.Target{Options: opts})
		if err == nil {
			_ = q.Close()
			t.Fatalf("options %v: expected error", opts)
		}
		if q != nil {
			t.Fatalf("options %v: queue returned with error", opts)
		}
	}
}
