package sylio

import (
	"encoding/base64"
	"io"
)

// Input bytes per encoded line, resulting in 76 characters of base64 output.
const b64LineSize = 57

// Base64Writer turns a writer for data into one that writes base64 content on
// \r\n separated lines of 76 characters, each line encoding a full 57-byte
// input chunk. Close flushes the final partial chunk.
func Base64Writer(w io.Writer) io.WriteCloser {
	return &base64Writer{w: w}
}

type base64Writer struct {
	w   io.Writer
	buf [b64LineSize]byte
	n   int // Buffered in buf.
}

func (bw *base64Writer) Write(buf []byte) (int, error) {
	wrote := 0
	for len(buf) > 0 {
		n := copy(bw.buf[bw.n:], buf)
		bw.n += n
		buf = buf[n:]
		wrote += n
		if bw.n == b64LineSize {
			if err := bw.flushLine(); err != nil {
				return wrote, err
			}
		}
	}
	return wrote, nil
}

func (bw *base64Writer) flushLine() error {
	line := make([]byte, base64.StdEncoding.EncodedLen(bw.n)+2)
	base64.StdEncoding.Encode(line, bw.buf[:bw.n])
	line[len(line)-2] = '\r'
	line[len(line)-1] = '\n'
	bw.n = 0
	_, err := bw.w.Write(line)
	return err
}

func (bw *base64Writer) Close() error {
	if bw.n == 0 {
		return nil
	}
	return bw.flushLine()
}
