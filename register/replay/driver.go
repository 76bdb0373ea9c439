// Package replay plays a capture file back as if it were the sniffer.
package replay

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
	"vled/capture"
	"vled/register"
)

const driverName = "replay"

type Driver struct{}

func (d *Driver) DisplayOrder() int {
	return 5
}

func (d *Driver) DisplayName() string {
	return "Replay"
}

func (d *Driver) DisplayDescription() string {
	return "Stream readings from a capture file (read-only)"
}

// Open loads the capture at target.Name. Options: speed (float, default 1),
// loop (bool, default false).
func (d *Driver) Open(target register.Target) (register.Queue, error) {
	if target.Name == "" {
		return nil, fmt.Errorf("replay: capture path is required")
	}
	recs, err := capture.ReadFile(target.Name)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	speed := 1.0
	if s := target.Option("speed", ""); s != "" {
		if speed, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("replay: speed: %w", err)
		}
		if speed <= 0 {
			return nil, fmt.Errorf("replay: speed must be > 0")
		}
	}
	loop, err := target.BoolOption("loop", false)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	return NewQueue(target.Name, recs, speed, loop), nil
}

type Queue struct {
	register.BaseQueue

	path  string
	recs  []capture.Record
	speed float64
	loop  bool

	stop     chan struct{}
	stopOnce sync.Once

	mu    sync.RWMutex
	last  uint32
	have  bool
	count uint64
	state string
}

func NewQueue(path string, recs []capture.Record, speed float64, loop bool) *Queue {
	q := &Queue{
		path:  path,
		recs:  recs,
		speed: speed,
		loop:  loop,
		stop:  make(chan struct{}),
		state: "idle",
	}
	q.BaseInit(driverName, q)
	return q
}

func (q *Queue) ReadRegister(_ uint32) (uint32, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.have {
		return 0, register.ErrNoReading
	}
	return q.last, nil
}

func (q *Queue) WriteRegister(_ uint32, _ uint32) error {
	return fmt.Errorf("replay: %w", register.ErrReadOnly)
}

func (q *Queue) CloseBackend() error {
	q.stopOnce.Do(func() { close(q.stop) })
	return nil
}

func (q *Queue) Snapshot() register.StreamState {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return register.StreamState{
		Name:     driverName,
		Addr:     q.path,
		State:    q.state,
		Readings: q.count,
	}
}

// Stream emits the capture's readings at their recorded offsets divided by
// speed. Without loop it returns nil after the last reading.
func (q *Queue) Stream(ctx context.Context, onValue func(v uint32)) error {
	q.setState("playing")
	for {
		if err := ctx.Err(); err != nil {
			q.setState("stopped")
			return err
		}

		start := time.Now()
		for _, r := range q.recs {
			due := start.Add(time.Duration(float64(r.At) / q.speed))
			if wait := time.Until(due); wait > 0 {
				t := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					t.Stop()
					q.setState("stopped")
					return ctx.Err()
				case <-q.stop:
					t.Stop()
					q.setState("stopped")
					return fmt.Errorf("replay: %w", register.ErrClosed)
				case <-t.C:
				}
			}

			q.mu.Lock()
			q.last = r.Value
			q.have = true
			q.count++
			q.mu.Unlock()
			onValue(r.Value)
		}

		if !q.loop || len(q.recs) == 0 {
			q.setState("finished")
			return nil
		}
	}
}

func (q *Queue) setState(state string) {
	q.mu.Lock()
	q.state = state
	q.mu.Unlock()
}

func init() {
	register.Register(driverName, &Driver{})
}
