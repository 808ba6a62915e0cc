package message

import (
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/jan0sch/sylpheed/sylio"
)

// Encoding is a MIME content transfer encoding.
type Encoding int

const (
	Enc7bit Encoding = iota
	Enc8bit
	EncQuotedPrintable
	EncBase64
)

var encodingStrings = map[Encoding]string{
	Enc7bit:            "7bit",
	Enc8bit:            "8bit",
	EncQuotedPrintable: "quoted-printable",
	EncBase64:          "base64",
}

func (e Encoding) String() string {
	return encodingStrings[e]
}

// ParseEncoding returns the encoding for a Content-Transfer-Encoding header
// value.
func ParseEncoding(s string) (Encoding, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for e, name := range encodingStrings {
		if s == name {
			return e, true
		}
	}
	return Enc7bit, false
}

// EncodingForCharset returns the default transfer encoding for body text in
// the given charset: 7bit for charsets that are pure 7-bit on the wire, 8bit
// for single-byte charsets whose high half survives most transports, base64
// for everything else.
func EncodingForCharset(cs string) Encoding {
	l := strings.ToLower(cs)
	switch {
	case l == "us-ascii" || strings.HasPrefix(l, "iso-2022-"):
		return Enc7bit
	case strings.HasPrefix(l, "iso-8859-") || strings.HasPrefix(l, "koi8-") || strings.HasPrefix(l, "windows-125") || l == "tis-620":
		return Enc8bit
	default:
		return EncBase64
	}
}

// WriteEncoded writes buf to w in the given transfer encoding: fixed-width
// base64 lines, quoted-printable with soft line breaks, or verbatim for
// 7bit and 8bit.
func WriteEncoded(w io.Writer, buf []byte, enc Encoding) error {
	switch enc {
	case EncBase64:
		bw := sylio.Base64Writer(w)
		if _, err := bw.Write(buf); err != nil {
			return err
		}
		return bw.Close()
	case EncQuotedPrintable:
		qw := quotedprintable.NewWriter(w)
		if _, err := qw.Write(buf); err != nil {
			return err
		}
		return qw.Close()
	default:
		_, err := w.Write(buf)
		return err
	}
}
