// Package sniffd serves register readings over TCP as a stream of 4-byte
// little-endian words, one per interval, for the relay's sniffer backend.
package sniffd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"syscall"
	"time"
	"vled/le32"
	"vled/register"
)

const (
	DefaultAddr        = "127.0.0.1:30001"
	DefaultInterval    = 10 * time.Millisecond
	DefaultMaxReadings = 0xFFFF
)

// Source produces one register reading.
type Source interface {
	Read32(ctx context.Context) (uint32, error)
}

// QueueSource reads Address through a register queue.
type QueueSource struct {
	Queue   register.Queue
	Address uint32
}

func (s QueueSource) Read32(ctx context.Context) (uint32, error) {
	return register.ReadValue(ctx, s.Queue, s.Address)
}

type Config struct {
	Addr     string
	Interval time.Duration

	// MaxReadings closes a connection after that many readings; 0 never closes.
	MaxReadings int
}

type Server struct {
	cfg Config
	src Source

	srcMu sync.Mutex

	mu    sync.Mutex
	ln    net.Listener
	conns int
	total uint64
}

func NewServer(cfg Config, src Source) (*Server, error) {
	if src == nil {
		return nil, fmt.Errorf("sniffd: source is nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxReadings < 0 {
		return nil, fmt.Errorf("sniffd: max readings must be >= 0")
	}
	return &Server{cfg: cfg, src: src}, nil
}

// Listen binds the configured address. Serve calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("sniffd: listen %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	log.Printf("sniffd: listening on %s\n", ln.Addr())
	return nil
}

func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is done. Each connection gets its own
// stream of readings.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("sniffd: accept: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

type Snapshot struct {
	Connections int    `json:"connections"`
	Readings    uint64 `json:"readings"`
}

func (s *Server) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Connections: s.conns, Readings: s.total}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr()
	log.Printf("sniffd: %s connected\n", remote)

	s.mu.Lock()
	s.conns++
	s.mu.Unlock()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		s.conns--
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	buf := make([]byte, 0, le32.Size)
	for sent := 0; s.cfg.MaxReadings == 0 || sent < s.cfg.MaxReadings; sent++ {
		v, err := s.read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("sniffd: %s: read: %v\n", remote, err)
			}
			return
		}

		if _, err := conn.Write(le32.Append(buf[:0], v)); err != nil {
			switch {
			case errors.Is(err, syscall.ECONNRESET):
				log.Printf("sniffd: %s: connection reset by peer\n", remote)
			case errors.Is(err, syscall.EPIPE):
				log.Printf("sniffd: %s: broken pipe\n", remote)
			default:
				log.Printf("sniffd: %s: write: %v\n", remote, err)
			}
			return
		}

		s.mu.Lock()
		s.total++
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	log.Printf("sniffd: %s: sent %d readings, closing\n", remote, s.cfg.MaxReadings)
}

func (s *Server) read(ctx context.Context) (uint32, error) {
	s.srcMu.Lock()
	defer s.srcMu.Unlock()
	return s.src.Read32(ctx)
}
