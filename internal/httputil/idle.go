// ABOUTME: io.Reader wrapper that fires a callback when no data arrives within a window
// ABOUTME: Bounds the wait for each streamed chunk and counts bytes received

package httputil

import (
	"io"
	"time"
)

// IdleReader calls onIdle if the wrapped reader goes quiet for longer than timeout.
// Every successful read re-arms the timer.
type IdleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	read    int64
}

// NewIdleReader wraps r. A zero or negative timeout disables the watchdog.
func NewIdleReader(r io.Reader, timeout time.Duration, onIdle func()) *IdleReader {
	ir := &IdleReader{r: r, timeout: timeout}
	if timeout > 0 {
		ir.timer = time.AfterFunc(timeout, onIdle)
	}
	return ir
}

// Read implements io.Reader.
func (ir *IdleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	ir.read += int64(n)
	if n > 0 && ir.timer != nil {
		ir.timer.Reset(ir.timeout)
	}
	return n, err
}

// BytesRead returns the number of bytes read through the wrapper.
func (ir *IdleReader) BytesRead() int64 {
	return ir.read
}

// Stop disarms the watchdog. It is safe to call more than once.
func (ir *IdleReader) Stop() {
	if ir.timer != nil {
		ir.timer.Stop()
	}
}
