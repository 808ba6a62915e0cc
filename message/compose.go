package message

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

var ErrCompose = errors.New("compose")

// Composer helps compose a message. Operations that fail call panic, which
// should be caught with recover(), checking for ErrCompose. Writes are
// buffered.
//
// Lines are written with bare newlines. Composer is meant to write through a
// Writer, which turns them into CRLF.
type Composer struct {
	Size int64 // Total bytes written.

	bw *bufio.Writer
}

// NewComposer initializes a new composer with a buffered writer around w.
// Operations on a Composer do not return an error. Caller must use recover()
// to catch ErrCompose errors.
func NewComposer(w io.Writer) *Composer {
	return &Composer{bw: bufio.NewWriter(w)}
}

// Write implements io.Writer, but calls panic (that is handled higher up) on
// i/o errors.
func (c *Composer) Write(buf []byte) (int, error) {
	n, err := c.bw.Write(buf)
	if n > 0 {
		c.Size += int64(n)
	}
	c.Checkf(err, "write")
	return n, nil
}

// Checkf checks err, panicing with sentinel error value.
func (c *Composer) Checkf(err error, format string, args ...any) {
	if err != nil {
		panic(fmt.Errorf("%w: %v: %w", ErrCompose, fmt.Sprintf(format, args...), err))
	}
}

// Flush writes any buffered output.
func (c *Composer) Flush() {
	err := c.bw.Flush()
	c.Checkf(err, "flush")
}

// Header writes a message header.
func (c *Composer) Header(k, v string) {
	fmt.Fprintf(c, "%s: %s\n", k, v)
}

// Line writes an empty line.
func (c *Composer) Line() {
	_, _ = c.Write([]byte("\n"))
}
