//go:build linux

package devmem

import (
	"fmt"
	"vled/le32"

	"golang.org/x/sys/unix"
)

type Mem struct {
	path string
	fd   int
}

// Open opens path with O_SYNC so every access reaches the device.
func Open(path string, writable bool) (*Mem, error) {
	flags := unix.O_RDONLY
	if writable {
		flags = unix.O_RDWR
	}
	fd, err := unix.Open(path, flags|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("devmem: open %s: %w", path, err)
	}
	return &Mem{path: path, fd: fd}, nil
}

func (m *Mem) Read32(address uint32) (uint32, error) {
	var buf [le32.Size]byte
	n, err := unix.Pread(m.fd, buf[:], int64(address))
	if err != nil {
		return 0, fmt.Errorf("devmem: pread %s@0x%X: %w", m.path, address, err)
	}
	if n != le32.Size {
		return 0, fmt.Errorf("devmem: pread %s@0x%X: short read (%d bytes)", m.path, address, n)
	}
	return le32.Decode(buf[:]), nil
}

func (m *Mem) Write32(address uint32, value uint32) error {
	buf := le32.Append(make([]byte, 0, le32.Size), value)
	n, err := unix.Pwrite(m.fd, buf, int64(address))
	if err != nil {
		return fmt.Errorf("devmem: pwrite %s@0x%X: %w", m.path, address, err)
	}
	if n != le32.Size {
		return fmt.Errorf("devmem: pwrite %s@0x%X: short write (%d bytes)", m.path, address, n)
	}
	return nil
}

func (m *Mem) Close() error {
	if m.fd < 0 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = -1
	return err
}
