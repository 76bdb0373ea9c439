package register

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Driver opens a Queue onto one kind of register backend: a privileged memory tool,
// a sniffer byte stream, a serial bridge, /dev/mem, or an in-memory fake.
type Driver interface {
	DisplayOrder() int
	DisplayName() string
	DisplayDescription() string

	Open(target Target) (Queue, error)
}

// Target addresses a backend instance. Name is driver-specific: a tool path,
// a host:port, a serial port name or a capture file path.
type Target struct {
	Name    string            `yaml:"target"`
	Options map[string]string `yaml:"options"`
}

func (t Target) Option(key, def string) string {
	if v, ok := t.Options[key]; ok && v != "" {
		return v
	}
	return def
}

func (t Target) IntOption(key string, def int) (int, error) {
	v, ok := t.Options[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		return def, fmt.Errorf("option %s=%q: %w", key, v, err)
	}
	return int(n), nil
}

func (t Target) BoolOption(key string, def bool) (bool, error) {
	v, ok := t.Options[key]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("option %s=%q: %w", key, v, err)
	}
	return b, nil
}

// Queue executes read and write commands against a backend in the order received.
// For reads, the value is delivered via the Completion of the Read request.
type Queue interface {
	Enqueue(cmd CommandWithCompletion) error

	MakeReadCommands(reqs []Read, batchComplete Completion) CommandSequence
	MakeWriteCommands(reqs []Write, batchComplete Completion) CommandSequence

	// IsTerminalError reports whether err means the backend is gone for good.
	IsTerminalError(err error) bool

	Close() error
	Closed() <-chan struct{}
}

// Streamer is implemented by push-style backends that deliver readings as they
// arrive instead of answering polls.
type Streamer interface {
	// Stream calls onValue for every reading until ctx is done or the backend fails.
	Stream(ctx context.Context, onValue func(v uint32)) error
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a register driver available by the provided name.
// If Register is called twice with the same name or if driver is nil,
// it panics.
func Register(name string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("register: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("register: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

func unregisterAllDrivers() {
	driversMu.Lock()
	defer driversMu.Unlock()
	// For tests.
	drivers = make(map[string]Driver)
}

// Drivers returns a sorted list of the names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	list := make([]string, 0, len(drivers))
	for name := range drivers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

func DriverByName(name string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	return d, ok
}

func Open(driverName string, target Target) (Queue, error) {
	d, ok := DriverByName(driverName)
	if !ok {
		return nil, fmt.Errorf("register: unknown driver %q (forgotten import?)", driverName)
	}

	return d.Open(target)
}

// StreamState describes the connection of a push-style backend.
type StreamState struct {
	Name        string `json:"name"`
	Addr        string `json:"addr"`
	State       string `json:"state"`
	LastError   string `json:"last_error,omitempty"`
	LastSeenUTC string `json:"last_seen_utc,omitempty"`
	Readings    uint64 `json:"readings"`
}

// Snapshotter is implemented by backends that can report their connection state.
type Snapshotter interface {
	Snapshot() StreamState
}
