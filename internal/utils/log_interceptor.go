package utils

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

const logTimeFormat = "2006-01-02 15:04:05"

// LogInterceptor is an io.Writer that prefixes every complete line with a
// sequence number and a UTC timestamp before handing it to the target.
// Incomplete lines are held back until their newline arrives or Close is called.
type LogInterceptor struct {
	target io.Writer
	now    func() time.Time

	mu  sync.Mutex
	seq uint64
	buf bytes.Buffer
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{
		target: target,
		now:    time.Now,
	}
}

func (i *LogInterceptor) Write(p []byte) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.buf.Write(p)
	for {
		idx := bytes.IndexByte(i.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := i.buf.Next(idx + 1)
		if err := i.writeLine(bytes.TrimRight(line, "\r\n")); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Close flushes a trailing partial line. It does not close the target.
func (i *LogInterceptor) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.buf.Len() == 0 {
		return nil
	}
	line := bytes.Clone(i.buf.Bytes())
	i.buf.Reset()
	return i.writeLine(line)
}

func (i *LogInterceptor) writeLine(line []byte) error {
	i.seq++
	_, err := fmt.Fprintf(i.target, "%06d %s %s\n", i.seq, i.now().UTC().Format(logTimeFormat), line)
	return err
}
