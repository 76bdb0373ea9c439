package capture

import "time"

// Edges returns the time between successive changes of the reading, which for
// a blinking LED is its half period.
func Edges(recs []Record) []time.Duration {
	var out []time.Duration
	var lastAt time.Duration
	seen := false

	for i := 1; i < len(recs); i++ {
		if (recs[i].Value != 0) == (recs[i-1].Value != 0) {
			continue
		}
		if seen {
			out = append(out, recs[i].At-lastAt)
		}
		lastAt = recs[i].At
		seen = true
	}
	return out
}

// EstimateHz estimates the blink frequency from the mean half period.
// It returns 0 with fewer than two edges.
func EstimateHz(recs []Record) float64 {
	edges := Edges(recs)
	if len(edges) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range edges {
		sum += d
	}
	half := sum / time.Duration(len(edges))
	if half <= 0 {
		return 0
	}
	return float64(time.Second) / float64(2*half)
}
