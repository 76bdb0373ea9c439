package capture

import (
	"math"
	"testing"
	"time"
)

// blink builds a 2 Hz square wave sampled every 10ms.
func blink(n int) []Record {
	recs := make([]Record, n)
	for i := range recs {
		at := time.Duration(i) * 10 * time.Millisecond
		v := uint32(0)
		if (at/(250*time.Millisecond))%2 == 0 {
			v = 1
		}
		recs[i] = Record{At: at, Value: v}
	}
	return recs
}

func TestEdges(t *testing.T) {
	edges := Edges(blink(200))
	if len(edges) == 0 {
		t.Fatalf("no edges")
	}
	for _, d := range edges {
		if d != 250*time.Millisecond {
			t.Fatalf("edge=%v", d)
		}
	}
}

func TestEstimateHz(t *testing.T) {
	if hz := EstimateHz(blink(200)); math.Abs(hz-2) > 0.01 {
		t.Fatalf("hz=%v", hz)
	}
	if hz := EstimateHz([]Record{{Value: 1}, {At: time.Millisecond, Value: 1}}); hz != 0 {
		t.Fatalf("steady reading hz=%v", hz)
	}
	if hz := EstimateHz(nil); hz != 0 {
		t.Fatalf("empty hz=%v", hz)
	}
}
