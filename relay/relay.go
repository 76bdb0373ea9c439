// Package relay connects clients to the FPGA registers: readings flow out to
// observers, frequency requests flow in and are written as counter values.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
	"vled/frequency"
	"vled/interfaces"
	"vled/register"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultIOTimeout    = 2 * time.Second
)

type Config struct {
	ReadAddress  uint32
	WriteAddress uint32
	PollInterval time.Duration

	Range   frequency.Range
	Initial int
	Scale   frequency.Scale

	// IOTimeout bounds a single register read or write.
	IOTimeout time.Duration
}

type Relay struct {
	cfg  Config
	knob *frequency.Knob

	reader register.Queue
	writer register.Queue

	observers interfaces.ObserverList

	mu          sync.Mutex
	counter     uint32
	written     bool
	last        uint32
	lastAt      time.Time
	readings    uint64
	readErrors  uint64
	writeErrors uint64
	lastErr     string
	readOnlyLog bool
}

// New builds a relay reading from reader and writing frequencies to writer.
// writer may be the same queue as reader.
func New(cfg Config, reader, writer register.Queue) (*Relay, error) {
	if reader == nil {
		return nil, fmt.Errorf("relay: reader queue is nil")
	}
	if writer == nil {
		writer = reader
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = DefaultIOTimeout
	}
	if cfg.Range == (frequency.Range{}) {
		cfg.Range = frequency.DefaultRange()
	}
	if cfg.Scale == 0 {
		cfg.Scale = frequency.DefaultCounterScale
	}
	if err := cfg.Range.Validate(); err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}
	if err := frequency.CheckScale(cfg.Range, cfg.Scale); err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}

	return &Relay{
		cfg:    cfg,
		knob:   frequency.NewKnob(cfg.Range, cfg.Initial),
		reader: reader,
		writer: writer,
	}, nil
}

func (r *Relay) Subscribe(o interfaces.ValueNotifier)   { r.observers.Subscribe(o) }
func (r *Relay) Unsubscribe(o interfaces.ValueNotifier) { r.observers.Unsubscribe(o) }

func (r *Relay) Frequency() int { return r.knob.Value() }

// Run publishes readings until ctx is done or the reader fails for good.
// Push-style readers are streamed; everything else is polled.
func (r *Relay) Run(ctx context.Context) error {
	if s, ok := r.reader.(register.Streamer); ok {
		log.Printf("relay: streaming readings\n")
		err := s.Stream(ctx, r.publish)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	log.Printf("relay: polling 0x%X every %v\n", r.cfg.ReadAddress, r.cfg.PollInterval)
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := r.poll(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.reader.Closed():
			return fmt.Errorf("relay: %w", register.ErrClosed)
		case <-ticker.C:
		}
	}
}

// poll reads once. Only errors that end the reader are returned.
func (r *Relay) poll(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(ctx, r.cfg.IOTimeout)
	v, err := register.ReadValue(rctx, r.reader, r.cfg.ReadAddress)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if register.IsDeviceDisconnected(err) || errors.Is(err, register.ErrClosed) {
			r.recordError(&r.readErrors, err)
			return fmt.Errorf("relay: read: %w", err)
		}
		if r.recordError(&r.readErrors, err) {
			log.Printf("relay: read 0x%X: %v\n", r.cfg.ReadAddress, err)
		}
		return nil
	}

	r.publish(v)
	return nil
}

func (r *Relay) publish(v uint32) {
	r.mu.Lock()
	r.last = v
	r.lastAt = time.Now()
	r.readings++
	r.mu.Unlock()

	r.observers.NotifyValue(v)
}

// recordError counts err and reports whether it differs from the previous one,
// so repeated failures are logged once.
func (r *Relay) recordError(counter *uint64, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	*counter++
	msg := err.Error()
	changed := msg != r.lastErr
	r.lastErr = msg
	return changed
}

// HandleMessage applies a client message: an integer sets the frequency, an A
// or D key steps it. The counter for the resulting frequency is then written
// to the write register; if that write fails the previous frequency is kept.
func (r *Relay) HandleMessage(ctx context.Context, text string) error {
	prev := r.knob.Value()
	hz, err := r.apply(text)
	if err != nil {
		return err
	}
	if err := r.WriteFrequency(ctx, hz); err != nil {
		r.knob.Set(prev)
		return err
	}
	return nil
}

func (r *Relay) apply(text string) (int, error) {
	if hz, ok := r.knob.HandleKey(text); ok {
		return hz, nil
	}
	hz, err := frequency.Parse(text)
	if err != nil {
		return 0, fmt.Errorf("relay: %w", err)
	}
	return r.knob.Set(hz), nil
}

// WriteFrequency writes the counter for hz. Read-only backends only remember it.
func (r *Relay) WriteFrequency(ctx context.Context, hz int) error {
	counter := r.cfg.Scale.Counter(hz)

	wctx, cancel := context.WithTimeout(ctx, r.cfg.IOTimeout)
	defer cancel()
	err := register.WriteValue(wctx, r.writer, r.cfg.WriteAddress, counter)

	r.mu.Lock()
	defer r.mu.Unlock()

	if errors.Is(err, register.ErrReadOnly) {
		r.counter = counter
		if !r.readOnlyLog {
			log.Printf("relay: writer is read-only; frequency changes are not written\n")
			r.readOnlyLog = true
		}
		log.Printf("relay: frequency %d Hz (counter %d)\n", hz, counter)
		return nil
	}
	if err != nil {
		r.writeErrors++
		r.lastErr = err.Error()
		return fmt.Errorf("relay: write 0x%X=%d: %w", r.cfg.WriteAddress, counter, err)
	}

	r.counter = counter
	r.written = true
	log.Printf("relay: frequency %d Hz, wrote %d to 0x%X\n", hz, counter, r.cfg.WriteAddress)
	return nil
}

type Status struct {
	Frequency      int                   `json:"frequency"`
	Min            int                   `json:"min"`
	Max            int                   `json:"max"`
	Counter        uint32                `json:"counter"`
	CounterWritten bool                  `json:"counter_written"`
	LastReading    uint32                `json:"last_reading"`
	LED            bool                  `json:"led"`
	LastReadingUTC string                `json:"last_reading_utc,omitempty"`
	Readings       uint64                `json:"readings"`
	ReadErrors     uint64                `json:"read_errors"`
	WriteErrors    uint64                `json:"write_errors"`
	LastError      string                `json:"last_error,omitempty"`
	Observers      int                   `json:"observers"`
	Stream         *register.StreamState `json:"stream,omitempty"`
}

func (r *Relay) Status() Status {
	rng := r.knob.Range()
	st := Status{
		Frequency: r.knob.Value(),
		Min:       rng.Min,
		Max:       rng.Max,
		Observers: r.observers.Len(),
	}

	r.mu.Lock()
	st.Counter = r.counter
	st.CounterWritten = r.written
	st.LastReading = r.last
	st.LED = r.last != 0
	if !r.lastAt.IsZero() {
		st.LastReadingUTC = r.lastAt.UTC().Format(time.RFC3339Nano)
	}
	st.Readings = r.readings
	st.ReadErrors = r.readErrors
	st.WriteErrors = r.writeErrors
	st.LastError = r.lastErr
	r.mu.Unlock()

	if s, ok := r.reader.(register.Snapshotter); ok {
		ss := s.Snapshot()
		st.Stream = &ss
	}
	return st
}

// StatusModel implements interfaces.StatusProvider.
func (r *Relay) StatusModel() interface{} { return r.Status() }
