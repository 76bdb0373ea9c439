//go:build !linux

package devmem

type Mem struct{}

func Open(path string, writable bool) (*Mem, error) {
	return nil, ErrUnsupported
}

func (m *Mem) Read32(address uint32) (uint32, error) { return 0, ErrUnsupported }

func (m *Mem) Write32(address uint32, value uint32) error { return ErrUnsupported }

func (m *Mem) Close() error { return nil }
