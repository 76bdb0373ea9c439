package capture

import (
	"log"
	"sync"
	"time"
)

// Recorder appends every reading it is notified of to a Writer.
type Recorder struct {
	mu     sync.Mutex
	w      *Writer
	now    func() time.Time
	failed bool
}

func NewRecorder(w *Writer) *Recorder {
	return &Recorder{w: w, now: time.Now}
}

func (r *Recorder) NotifyValue(v uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.w.Write(r.now(), v); err != nil {
		if !r.failed {
			log.Printf("capture: %v\n", err)
		}
		r.failed = true
		return
	}
	r.failed = false
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Close()
}
