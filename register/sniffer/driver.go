// Package sniffer reads register values from the sniffer service: a local TCP
// socket streaming raw 4-byte little-endian readings.
package sniffer

import (
	"fmt"
	"time"
	"vled/register"
)

const driverName = "sniffer"

const DefaultAddr = "127.0.0.1:30001"

type Driver struct{}

func (d *Driver) DisplayOrder() int {
	return 2
}

func (d *Driver) DisplayName() string {
	return "Sniffer"
}

func (d *Driver) DisplayDescription() string {
	return "Stream register readings from the sniffer TCP socket (read-only)"
}

// Open connects lazily: the connection is made by Stream. target.Name is the
// sniffer host:port; options reconnect_delay and dial_timeout are Go durations.
func (d *Driver) Open(target register.Target) (register.Queue, error) {
	cfg := Config{Addr: target.Name}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	var err error
	if s := target.Option("reconnect_delay", ""); s != "" {
		if cfg.ReconnectDelay, err = time.ParseDuration(s); err != nil {
			return nil, fmt.Errorf("sniffer: reconnect_delay: %w", err)
		}
	}
	if s := target.Option("dial_timeout", ""); s != "" {
		if cfg.DialTimeout, err = time.ParseDuration(s); err != nil {
			return nil, fmt.Errorf("sniffer: dial_timeout: %w", err)
		}
	}

	return NewQueue(cfg), nil
}

func init() {
	register.Register(driverName, &Driver{})
}
