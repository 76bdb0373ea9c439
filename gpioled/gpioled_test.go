package gpioled

import (
	"errors"
	"testing"
)

type fakeOutput struct {
	values []int
	fail   error
	closed bool
}

func (f *fakeOutput) SetValue(v int) error {
	if f.fail != nil {
		return f.fail
	}
	f.values = append(f.values, v)
	return nil
}

func (f *fakeOutput) Close() error {
	f.closed = true
	return nil
}

func TestLED_MirrorsReadings(t *testing.T) {
	out := &fakeOutput{}
	led := newLED("fake", out)

	for _, v := range []uint32{1, 5, 0, 0, 1} {
		led.NotifyValue(v)
	}
	want := []int{1, 0, 1}
	if len(out.values) != len(want) {
		t.Fatalf("writes=%v want %v", out.values, want)
	}
	for i := range want {
		if out.values[i] != want[i] {
			t.Fatalf("writes=%v want %v", out.values, want)
		}
	}
	if !led.On() {
		t.Fatalf("LED should be on")
	}

	if err := led.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !out.closed || out.values[len(out.values)-1] != 0 {
		t.Fatalf("Close should turn off and release: %+v", out)
	}
	if err := led.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestLED_RetriesAfterFailure(t *testing.T) {
	out := &fakeOutput{fail: errors.New("busy")}
	led := newLED("fake", out)

	if err := led.Set(true); err == nil {
		t.Fatalf("expected error")
	}
	out.fail = nil
	if err := led.Set(true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(out.values) != 1 || out.values[0] != 1 {
		t.Fatalf("writes=%v", out.values)
	}
}
