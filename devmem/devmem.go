// Package devmem reads and writes 32-bit words of physical memory through
// /dev/mem, which is how the sniffer service peeks the FPGA register.
package devmem

import "errors"

const DefaultPath = "/dev/mem"

var ErrUnsupported = errors.New("devmem: unsupported on this platform")
