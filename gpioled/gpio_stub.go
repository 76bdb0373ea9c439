//go:build !linux

package gpioled

import "fmt"

func Open(cfg Config) (*LED, error) {
	return nil, fmt.Errorf("gpioled: gpio unsupported on this platform")
}
