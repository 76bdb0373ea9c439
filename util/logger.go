package util

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"
)

// PanicSafeLogger tees log output to stderr and a file that is synced before a
// panic takes the process down.
type PanicSafeLogger struct {
	f  *os.File
	mw io.Writer
}

var std *PanicSafeLogger

func NewPanicSafeLogger(f *os.File) *PanicSafeLogger {
	std = &PanicSafeLogger{
		f:  f,
		mw: io.MultiWriter(f, os.Stderr),
	}
	return std
}

func (l *PanicSafeLogger) Write(p []byte) (n int, err error) {
	return l.mw.Write(p)
}

func (l *PanicSafeLogger) Flush() error {
	return l.f.Sync()
}

func FlushLogger() error {
	if std == nil {
		return nil
	}
	return std.Flush()
}

func LogPanic(err any) {
	log.Printf("paniced with %v\n%s\n", err, string(debug.Stack()))
	_ = FlushLogger()
}

// SetupLogging configures the standard logger for a command: microsecond UTC
// timestamps, and a copy of everything in <tmp>/<name>-<timestamp>.log.
// It returns the log file path, or "" when the file could not be created.
func SetupLogging(name string) string {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)

	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.ReplaceAll(ts, ":", "-")
	ts = strings.ReplaceAll(ts, ".", "-")
	logPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s.log", name, ts))

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("could not open log file '%s' for writing\n", logPath)
		return ""
	}

	log.SetOutput(NewPanicSafeLogger(logFile))
	log.Printf("logging to '%s'\n", logPath)
	return logPath
}
