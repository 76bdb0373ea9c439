//go:build linux

package gpioled

import (
	"fmt"
	"strconv"

	"github.com/warthog618/go-gpiocdev"
)

// Open requests cfg.Line on cfg.Chip as an output, initially off.
func Open(cfg Config) (*LED, error) {
	chipName := cfg.Chip
	if chipName == "" {
		chipName = "gpiochip0"
	}
	if cfg.Line == "" {
		return nil, fmt.Errorf("gpioled: line is required")
	}

	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("vled"))
	if err != nil {
		return nil, fmt.Errorf("gpioled: open %s: %w", chipName, err)
	}

	offset, err := strconv.Atoi(cfg.Line)
	if err != nil {
		offset, err = chip.FindLine(cfg.Line)
		if err != nil {
			_ = chip.Close()
			return nil, fmt.Errorf("gpioled: line %q not found on %s: %w", cfg.Line, chipName, err)
		}
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := chip.RequestLine(offset, opts...)
	if err != nil {
		_ = chip.Close()
		return nil, fmt.Errorf("gpioled: request %s:%d: %w", chipName, offset, err)
	}

	return newLED(fmt.Sprintf("%s:%d", chipName, offset), &cdevLine{chip: chip, line: line}), nil
}

type cdevLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (c *cdevLine) SetValue(v int) error {
	return c.line.SetValue(v)
}

func (c *cdevLine) Close() error {
	err := c.line.Close()
	if cerr := c.chip.Close(); err == nil {
		err = cerr
	}
	return err
}
