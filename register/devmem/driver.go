package devmem

import (
	"fmt"
	physmem "vled/devmem"
	"vled/register"
)

const driverName = "devmem"

type Driver struct{}

func (d *Driver) DisplayOrder() int {
	return 4
}

func (d *Driver) DisplayName() string {
	return "/dev/mem"
}

func (d *Driver) DisplayDescription() string {
	return "Read and write registers directly through /dev/mem (Linux, root)"
}

// Open maps target.Name (default /dev/mem); option writable defaults to true.
func (d *Driver) Open(target register.Target) (register.Queue, error) {
	path := target.Name
	if path == "" {
		path = physmem.DefaultPath
	}
	writable, err := target.BoolOption("writable", true)
	if err != nil {
		return nil, fmt.Errorf("devmem: %w", err)
	}

	m, err := physmem.Open(path, writable)
	if err != nil {
		return nil, err
	}

	q := &Queue{mem: m, writable: writable}
	q.BaseInit(driverName, q)
	return q, nil
}

type Queue struct {
	register.BaseQueue

	mem      *physmem.Mem
	writable bool
}

func (q *Queue) ReadRegister(address uint32) (uint32, error) {
	return q.mem.Read32(address)
}

func (q *Queue) WriteRegister(address uint32, value uint32) error {
	if !q.writable {
		return fmt.Errorf("devmem: %w", register.ErrReadOnly)
	}
	return q.mem.Write32(address, value)
}

func (q *Queue) CloseBackend() error {
	return q.mem.Close()
}

func init() {
	register.Register(driverName, &Driver{})
}
