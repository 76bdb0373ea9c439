// Package rwmem drives registers through a privileged memory read/write tool,
// equivalent to running
//
//	echo '<password>' | sudo -S /fusion2/rwmem.elf <hex-address> [value]
//
// for every read or write.
package rwmem

import (
	"fmt"
	"os"
	"time"
	"vled/register"
)

const driverName = "rwmem"

const (
	DefaultTool        = "/fusion2/rwmem.elf"
	DefaultValueOffset = 21
	DefaultTimeout     = 2 * time.Second

	// PasswordEnv is consulted when the target carries no sudo_password option.
	PasswordEnv = "VLED_SUDO_PASSWORD"
)

type Driver struct{}

func (d *Driver) DisplayOrder() int {
	return 1
}

func (d *Driver) DisplayName() string {
	return "rwmem"
}

func (d *Driver) DisplayDescription() string {
	return "Read and write registers by running the privileged rwmem tool under sudo"
}

// Open understands the options sudo (default true), sudo_password,
// value_offset (default 21) and timeout (Go duration, default 2s).
// target.Name is the tool path.
func (d *Driver) Open(target register.Target) (register.Queue, error) {
	cfg := Config{
		Tool:     target.Name,
		Password: target.Option("sudo_password", os.Getenv(PasswordEnv)),
	}
	if cfg.Tool == "" {
		cfg.Tool = DefaultTool
	}

	var err error
	if cfg.UseSudo, err = target.BoolOption("sudo", true); err != nil {
		return nil, fmt.Errorf("rwmem: %w", err)
	}
	if cfg.ValueOffset, err = target.IntOption("value_offset", DefaultValueOffset); err != nil {
		return nil, fmt.Errorf("rwmem: %w", err)
	}
	if cfg.ValueOffset < 0 {
		return nil, fmt.Errorf("rwmem: value_offset must be >= 0")
	}
	cfg.Timeout = DefaultTimeout
	if s := target.Option("timeout", ""); s != "" {
		if cfg.Timeout, err = time.ParseDuration(s); err != nil {
			return nil, fmt.Errorf("rwmem: timeout: %w", err)
		}
	}

	return NewQueue(cfg), nil
}

func init() {
	register.Register(driverName, &Driver{})
}
