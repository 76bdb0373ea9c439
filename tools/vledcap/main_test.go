package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"vled/capture"
)

func TestReport(t *testing.T) {
	var recs []capture.Record
	for i := 0; i < 100; i++ {
		at := time.Duration(i) * 10 * time.Millisecond
		recs = append(recs, capture.Record{At: at, Value: uint32((i / 10) % 2)})
	}

	var buf bytes.Buffer
	if err := report(&buf, recs, 4); err != nil {
		t.Fatalf("report=%v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "100 readings") || !strings.Contains(out, "estimated 5.00 Hz") {
		t.Fatalf("out=%q", out)
	}
}

func TestReport_Steady(t *testing.T) {
	var buf bytes.Buffer
	if err := report(&buf, []capture.Record{{Value: 1}}, 4); err != nil {
		t.Fatalf("report=%v", err)
	}
	if !strings.Contains(buf.String(), "no blinking seen") {
		t.Fatalf("out=%q", buf.String())
	}
}

func TestReport_Histogram(t *testing.T) {
	// half periods alternate between 90ms and 110ms:
	var recs []capture.Record
	at := time.Duration(0)
	for i := 0; i < 20; i++ {
		recs = append(recs, capture.Record{At: at, Value: uint32(i % 2)})
		if i%2 == 0 {
			at += 90 * time.Millisecond
		} else {
			at += 110 * time.Millisecond
		}
	}

	var buf bytes.Buffer
	if err := report(&buf, recs, 4); err != nil {
		t.Fatalf("report=%v", err)
	}
	if !strings.Contains(buf.String(), "half period (ms):") {
		t.Fatalf("out=%q", buf.String())
	}
}
