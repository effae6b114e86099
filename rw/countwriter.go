// Package rw holds small io helpers.
package rw

import (
	"errors"
	"io"
)

// ErrLimitExceeded is returned once a CountWriter would pass its limit.
var ErrLimitExceeded = errors.New("rw: write limit exceeded")

// CountWriter counts the bytes passed to the underlying writer and, with a
// positive Limit, refuses writes that would go past it. A refused write
// writes nothing.
type CountWriter struct {
	w     io.Writer
	n     int64
	Limit int64
}

func NewCountWriter(w io.Writer) *CountWriter {
	return &CountWriter{w: w}
}

// NewLimitWriter is a CountWriter that fails after limit bytes.
func NewLimitWriter(w io.Writer, limit int64) *CountWriter {
	return &CountWriter{w: w, Limit: limit}
}

// Write implements io.Writer
func (cw *CountWriter) Write(p []byte) (int, error) {
	if cw.Limit > 0 && cw.n+int64(len(p)) > cw.Limit {
		return 0, ErrLimitExceeded
	}
	n, err := cw.w.Write(p)
	cw.n += int64(n) // cuz Write() can be called multiple times internally
	return n, err
}

// BytesWritten returns the total number of bytes written
func (cw *CountWriter) BytesWritten() int64 {
	return cw.n
}
