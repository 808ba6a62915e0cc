package message

import (
	"io"
)

// Writer is a write-through helper that replaces bare \n line endings with
// \r\n, turning internal-form text into a wire-format message.
type Writer struct {
	writer io.Writer

	Size int64 // Number of bytes written, may be larger than bytes passed in due to LF to CRLF conversion.

	lastCR bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{writer: w}
}

// Write implements io.Writer, writing buf to the underlying io.Writer with
// bare new lines (LF) converted to carriage returns with new lines (CRLF).
// Input already carrying CRLF passes through unchanged.
func (w *Writer) Write(buf []byte) (int, error) {
	wrote := 0
	o := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] != '\n' {
			continue
		}
		if i > 0 && buf[i-1] == '\r' || i == 0 && w.lastCR {
			continue
		}
		if i > o {
			n, err := w.writer.Write(buf[o:i])
			if n > 0 {
				wrote += n
				w.Size += int64(n)
			}
			if err != nil {
				return wrote, err
			}
		}
		n, err := w.writer.Write([]byte{'\r', '\n'})
		if n == 2 {
			wrote++ // For only the newline.
			w.Size += int64(2)
		}
		if err != nil {
			return wrote, err
		}
		o = i + 1
	}
	if o < len(buf) {
		n, err := w.writer.Write(buf[o:])
		if n > 0 {
			wrote += n
			w.Size += int64(n)
		}
		if err != nil {
			return wrote, err
		}
	}
	if len(buf) > 0 {
		w.lastCR = buf[len(buf)-1] == '\r'
	}
	return wrote, nil
}
