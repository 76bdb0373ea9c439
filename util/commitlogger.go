package util

import "bytes"

// CommitLogger buffers writes and hands the accumulated bytes to Committer.
// With AutoCommit set, every completed line is committed as it is written,
// which suits a log.Logger output.
type CommitLogger struct {
	Committer  func(p []byte)
	AutoCommit bool
	buf        []byte
}

func (l *CommitLogger) Reserve(n int) {
	if cap(l.buf) >= n {
		return
	}

	newbuf := make([]byte, len(l.buf), n)
	copy(newbuf, l.buf)
	l.buf = newbuf
}

func (l *CommitLogger) Write(p []byte) (n int, err error) {
	l.buf = append(l.buf, p...)
	if l.AutoCommit {
		for {
			i := bytes.IndexByte(l.buf, '\n')
			if i < 0 {
				break
			}
			if l.Committer != nil {
				l.Committer(l.buf[:i])
			}
			l.buf = append(l.buf[:0], l.buf[i+1:]...)
		}
	}
	return len(p), nil
}

func (l *CommitLogger) Commit() {
	if l.Committer != nil {
		l.Committer(l.buf)
	}
	l.Reset()
}

func (l *CommitLogger) Reset() {
	l.buf = l.buf[:0]
}
