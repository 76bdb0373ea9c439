package sniffer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
	"vled/le32"
	"vled/register"
)

type Config struct {
	Addr           string
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
}

type Queue struct {
	register.BaseQueue

	cfg Config

	// closed by CloseBackend to stop any running Stream:
	stop     chan struct{}
	stopOnce sync.Once

	streaming atomic.Bool

	mu       sync.RWMutex
	last     uint32
	have     bool
	state    string
	lastErr  string
	lastSeen time.Time
	count    uint64
}

func NewQueue(cfg Config) *Queue {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 1 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}

	q := &Queue{
		cfg:   cfg,
		stop:  make(chan struct{}),
		state: "idle",
	}
	q.BaseInit(driverName, q)
	return q
}

// ReadRegister returns the most recent reading. The sniffer streams a single
// register, so the address is not consulted.
func (q *Queue) ReadRegister(_ uint32) (uint32, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.have {
		return 0, register.ErrNoReading
	}
	return q.last, nil
}

func (q *Queue) WriteRegister(_ uint32, _ uint32) error {
	return fmt.Errorf("sniffer: %w", register.ErrReadOnly)
}

func (q *Queue) CloseBackend() error {
	q.stopOnce.Do(func() { close(q.stop) })
	return nil
}

func (q *Queue) Snapshot() register.StreamState {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := register.StreamState{
		Name:      driverName,
		Addr:      q.cfg.Addr,
		State:     q.state,
		LastError: q.lastErr,
		Readings:  q.count,
	}
	if !q.lastSeen.IsZero() {
		out.LastSeenUTC = q.lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return out
}

// Stream connects to the sniffer and calls onValue for every decoded reading,
// reconnecting after ReconnectDelay whenever the connection drops. It returns
// when ctx is done or the queue is closed.
func (q *Queue) Stream(ctx context.Context, onValue func(v uint32)) error {
	if onValue == nil {
		return fmt.Errorf("sniffer: onValue is nil")
	}
	if q.streaming.Swap(true) {
		return fmt.Errorf("sniffer: already streaming")
	}
	defer q.streaming.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-q.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	dialer := &net.Dialer{Timeout: q.cfg.DialTimeout}
	for {
		q.setState("connecting", "")
		conn, err := dialer.DialContext(ctx, "tcp", q.cfg.Addr)
		if err != nil {
			if ctx.Err() != nil {
				return q.stopped(ctx)
			}
			q.setState("error", err.Error())
		} else {
			log.Printf("sniffer: connected to %s\n", q.cfg.Addr)
			q.setState("connected", "")
			err = q.readConn(ctx, conn, onValue)
			if ctx.Err() != nil {
				return q.stopped(ctx)
			}
			log.Printf("sniffer: disconnected from %s: %v\n", q.cfg.Addr, err)
			q.setState("disconnected", errString(err))
		}

		select {
		case <-ctx.Done():
			return q.stopped(ctx)
		case <-time.After(q.cfg.ReconnectDelay):
		}
	}
}

func (q *Queue) stopped(ctx context.Context) error {
	q.setState("stopped", "")
	select {
	case <-q.stop:
		return fmt.Errorf("sniffer: %w", register.ErrClosed)
	default:
		return ctx.Err()
	}
}

func (q *Queue) readConn(ctx context.Context, conn net.Conn, onValue func(v uint32)) error {
	defer conn.Close()

	// unblock the Read below when ctx ends:
	unwatch := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer unwatch()

	var dec le32.Decoder
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n], func(v uint32) {
				q.record(v)
				onValue(v)
			})
		}
		if err != nil {
			if dec.Pending() > 0 {
				log.Printf("sniffer: dropping %d bytes of an incomplete reading\n", dec.Pending())
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (q *Queue) record(v uint32) {
	q.mu.Lock()
	q.last = v
	q.have = true
	q.count++
	q.lastSeen = time.Now()
	q.mu.Unlock()
}

func (q *Queue) setState(state string, lastErr string) {
	q.mu.Lock()
	q.state = state
	if lastErr != "" {
		q.lastErr = lastErr
	} else if state == "connected" || state == "stopped" {
		q.lastErr = ""
	}
	q.mu.Unlock()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
