package frequency

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

const (
	DefaultMin     = 1
	DefaultMax     = 10
	DefaultInitial = 5

	// DefaultCounterScale is the FPGA clock in Hz.
	DefaultCounterScale = 50_000_000
)

type Range struct {
	Min int
	Max int
}

func DefaultRange() Range { return Range{Min: DefaultMin, Max: DefaultMax} }

func (r Range) Validate() error {
	if r.Min < 0 {
		return fmt.Errorf("frequency: min %d must be >= 0", r.Min)
	}
	if r.Max < r.Min {
		return fmt.Errorf("frequency: max %d must be >= min %d", r.Max, r.Min)
	}
	return nil
}

func (r Range) Clamp(hz int) int {
	if hz < r.Min {
		return r.Min
	}
	if hz > r.Max {
		return r.Max
	}
	return hz
}

// Scale converts a frequency into the counter value written to the register.
type Scale uint32

// Counter returns hz * s. Callers validate with CheckScale that the range cannot overflow.
func (s Scale) Counter(hz int) uint32 {
	if hz <= 0 {
		return 0
	}
	return uint32(hz) * uint32(s)
}

// CheckScale reports an error when r.Max * s does not fit a 32-bit register.
func CheckScale(r Range, s Scale) error {
	if s == 0 {
		return fmt.Errorf("frequency: counter scale must be > 0")
	}
	if uint64(r.Max)*uint64(s) > math.MaxUint32 {
		return fmt.Errorf("frequency: %d Hz * %d overflows a 32-bit register", r.Max, s)
	}
	return nil
}

// Knob is the current frequency, always inside its Range.
type Knob struct {
	mu    sync.Mutex
	r     Range
	value int
}

func NewKnob(r Range, initial int) *Knob {
	return &Knob{r: r, value: r.Clamp(initial)}
}

func (k *Knob) Range() Range { return k.r }

func (k *Knob) Value() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.value
}

// Set stores hz clamped into range and returns the stored value.
func (k *Knob) Set(hz int) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.value = k.r.Clamp(hz)
	return k.value
}

func (k *Knob) Increment() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.value < k.r.Max {
		k.value++
	}
	return k.value
}

func (k *Knob) Decrement() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.value > k.r.Min {
		k.value--
	}
	return k.value
}

// HandleKey applies a keyboard key: A increases, D decreases (case-insensitive).
// ok is false for any other key, in which case the value is unchanged.
func (k *Knob) HandleKey(key string) (hz int, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "A":
		return k.Increment(), true
	case "D":
		return k.Decrement(), true
	default:
		return k.Value(), false
	}
}

// Parse reads the ASCII integer sent by the browser.
func Parse(text string) (int, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, fmt.Errorf("frequency: empty message")
	}
	hz, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("frequency: parse %q: %w", s, err)
	}
	return hz, nil
}
