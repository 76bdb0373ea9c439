package mock

import (
	"fmt"
	"vled/frequency"
	"vled/register"
)

const driverName = "mock"

type Driver struct{}

func (d *Driver) DisplayOrder() int {
	return 1000
}

func (d *Driver) DisplayName() string {
	return "Mock Registers"
}

func (d *Driver) DisplayDescription() string {
	return "In-memory register file with an emulated blinking LED, for testing without hardware"
}

// Open understands the options:
//
//	led_address      register that reads back the LED state (0 or 1)
//	counter_address  register holding the blink counter written by the relay
//	counter_scale    counter value per Hz (defaults to the 50 MHz clock)
//
// When both addresses are set, reading led_address toggles at the frequency
// implied by the last counter written.
func (d *Driver) Open(target register.Target) (register.Queue, error) {
	led, err := target.IntOption("led_address", -1)
	if err != nil {
		return nil, fmt.Errorf("mock: %w", err)
	}
	counter, err := target.IntOption("counter_address", -1)
	if err != nil {
		return nil, fmt.Errorf("mock: %w", err)
	}
	scale, err := target.IntOption("counter_scale", frequency.DefaultCounterScale)
	if err != nil {
		return nil, fmt.Errorf("mock: %w", err)
	}
	if scale <= 0 {
		return nil, fmt.Errorf("mock: counter_scale must be > 0")
	}

	q := NewQueue()
	if led >= 0 && counter >= 0 {
		q.EmulateLED(uint32(led), uint32(counter), uint32(scale))
	}

	return q, nil
}

func init() {
	register.Register(driverName, &Driver{})
}
