// vledcap records register readings from any driver into a capture file, or
// analyses an existing capture, and prints the blink timing as a histogram.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/aybabtme/uniplot/histogram"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	"vled/capture"
	"vled/register"
)

// include these register drivers:
import (
	_ "vled/register/devmem"
	_ "vled/register/mock"
	_ "vled/register/replay"
	_ "vled/register/rwmem"
	_ "vled/register/sniffer"
	_ "vled/register/uart"
)

var (
	driver   = flag.String("driver", "sniffer", "register driver to record from")
	target   = flag.String("target", "127.0.0.1:30001", "driver target")
	address  = flag.String("address", "0xFF", "register address to poll")
	interval = flag.Duration("interval", 10*time.Millisecond, "poll interval for non-streaming drivers")
	duration = flag.Duration("duration", 5*time.Second, "how long to record")
	out      = flag.String("o", "", "capture file to write (required when recording)")
	in       = flag.String("read", "", "analyse this capture file instead of recording")
	bins     = flag.Int("bins", 10, "histogram bins")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)

	path := *in
	if path == "" {
		if *out == "" {
			log.Fatal("-o is required when recording")
		}
		if err := record(*out); err != nil {
			log.Fatal(err)
		}
		path = *out
	}

	recs, err := capture.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	if err := report(os.Stdout, recs, *bins); err != nil {
		log.Fatal(err)
	}
}

func record(path string) error {
	addr, err := strconv.ParseUint(*address, 0, 32)
	if err != nil {
		return fmt.Errorf("-address %q: %w", *address, err)
	}

	q, err := register.Open(*driver, register.Target{Name: *target})
	if err != nil {
		return err
	}
	defer q.Close()

	w, err := capture.Create(path)
	if err != nil {
		return err
	}
	rec := capture.NewRecorder(w)
	defer rec.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	log.Printf("recording %s %q for %v into '%s'\n", *driver, *target, *duration, path)

	if s, ok := q.(register.Streamer); ok {
		err = s.Stream(ctx, rec.NotifyValue)
	} else {
		err = poll(ctx, q, uint32(addr), rec)
	}
	if ctx.Err() != nil {
		// the recording ended on time or by signal:
		err = nil
	}
	if err != nil {
		return err
	}
	return rec.Close()
}

func poll(ctx context.Context, q register.Queue, addr uint32, rec *capture.Recorder) error {
	t := time.NewTicker(*interval)
	defer t.Stop()

	for {
		v, err := register.ReadValue(ctx, q, addr)
		if err != nil {
			if ctx.Err() != nil || register.IsDeviceDisconnected(err) || errors.Is(err, register.ErrClosed) {
				return err
			}
			log.Printf("read 0x%X: %v\n", addr, err)
		} else {
			rec.NotifyValue(v)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func report(w io.Writer, recs []capture.Record, bins int) error {
	s := capture.Summarize(recs)
	fmt.Fprintf(w, "%d readings over %v, min %d, max %d, %d non-zero\n",
		s.Count, s.Duration, s.Min, s.Max, s.NonZero)

	edges := capture.Edges(recs)
	if len(edges) == 0 {
		fmt.Fprintln(w, "no blinking seen")
		return nil
	}
	fmt.Fprintf(w, "estimated %.2f Hz from %d half periods\n", capture.EstimateHz(recs), len(edges))

	ms := make([]float64, len(edges))
	spread := false
	for i, d := range edges {
		ms[i] = float64(d) / float64(time.Millisecond)
		spread = spread || d != edges[0]
	}
	if !spread {
		// a histogram of identical values has no width:
		fmt.Fprintf(w, "every half period was %v\n", edges[0])
		return nil
	}
	fmt.Fprintln(w, "half period (ms):")
	return histogram.Fprint(w, histogram.Hist(bins, ms), histogram.Linear(40))
}
