// Package gpioled mirrors register readings onto a physical LED wired to a GPIO line.
package gpioled

import (
	"log"
	"sync"
)

type Config struct {
	Chip      string `yaml:"chip"`
	Line      string `yaml:"line"` // offset ("17") or line name ("GPIO17")
	ActiveLow bool   `yaml:"active_low"`
}

type output interface {
	SetValue(v int) error
	Close() error
}

type LED struct {
	name string
	out  output

	mu    sync.Mutex
	known bool
	on    bool
}

func newLED(name string, out output) *LED {
	return &LED{name: name, out: out}
}

// Set drives the line; writes are skipped when the state does not change.
func (l *LED) Set(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.known && l.on == on {
		return nil
	}
	v := 0
	if on {
		v = 1
	}
	if err := l.out.SetValue(v); err != nil {
		return err
	}
	l.known = true
	l.on = on
	return nil
}

func (l *LED) On() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

// NotifyValue lights the LED for any non-zero reading.
func (l *LED) NotifyValue(v uint32) {
	if err := l.Set(v != 0); err != nil {
		log.Printf("gpioled: %s: %v\n", l.name, err)
	}
}

// Close turns the LED off and releases the line.
func (l *LED) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out == nil {
		return nil
	}
	_ = l.out.SetValue(0)
	err := l.out.Close()
	l.out = nil
	return err
}
