package util

import (
	"log"
	"sync"
	"testing"
)

// NewTestingLogger returns a writer that forwards each complete line to tb.Log.
func NewTestingLogger(tb testing.TB) *CommitLogger {
	return &CommitLogger{
		Committer: func(p []byte) {
			tb.Log(string(p))
		},
		AutoCommit: true,
	}
}

var testLogMu sync.Mutex

// RedirectLog sends the standard logger to tb until the test ends.
func RedirectLog(tb testing.TB) {
	testLogMu.Lock()
	w := &lockedWriter{l: NewTestingLogger(tb)}
	prev := log.Writer()
	log.SetOutput(w)
	testLogMu.Unlock()

	tb.Cleanup(func() {
		testLogMu.Lock()
		defer testLogMu.Unlock()
		log.SetOutput(prev)
	})
}

type lockedWriter struct {
	mu sync.Mutex
	l  *CommitLogger
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.l.Write(p)
}
