package mock

import (
	"sync"
	"time"
	"vled/register"
)

type Queue struct {
	register.BaseQueue

	mu   sync.Mutex
	regs map[uint32]uint32

	emulate        bool
	ledAddress     uint32
	counterAddress uint32
	scale          uint32
	epoch          time.Time

	now func() time.Time
}

func NewQueue() *Queue {
	q := &Queue{
		regs: make(map[uint32]uint32),
		now:  time.Now,
	}
	q.epoch = q.now()
	q.BaseInit(driverName, q)
	return q
}

func (q *Queue) EmulateLED(ledAddress, counterAddress, scale uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.emulate = true
	q.ledAddress = ledAddress
	q.counterAddress = counterAddress
	q.scale = scale
}

// Peek returns a register without going through the queue.
func (q *Queue) Peek(address uint32) uint32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.regs[address]
}

// Poke sets a register without going through the queue.
func (q *Queue) Poke(address, value uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.regs[address] = value
}

func (q *Queue) ReadRegister(address uint32) (uint32, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.emulate && address == q.ledAddress {
		return q.ledState(), nil
	}
	return q.regs[address], nil
}

func (q *Queue) WriteRegister(address uint32, value uint32) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.regs[address] = value
	if q.emulate && address == q.counterAddress {
		// restart the blink phase on every new frequency:
		q.epoch = q.now()
	}
	return nil
}

func (q *Queue) CloseBackend() error {
	return nil
}

// ledState must be called with mu held.
func (q *Queue) ledState() uint32 {
	hz := uint64(q.regs[q.counterAddress] / q.scale)
	if hz == 0 {
		return 0
	}

	half := time.Second / time.Duration(2*hz)
	if half <= 0 {
		// faster than the clock can resolve: the LED looks steadily on.
		return 1
	}
	phase := q.now().Sub(q.epoch) / half
	if phase%2 == 0 {
		return 1
	}
	return 0
}
