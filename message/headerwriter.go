package message

import (
	"fmt"
	"strings"
)

// HeaderWriter helps create header values, folding to the next line when they
// would become too large. The line-length budget accounts for the header name
// and colon-space already written by the caller. Folds are a bare newline
// followed by a tab; writing the value through a Writer yields CRLF.
type HeaderWriter struct {
	b        *strings.Builder
	lineLen  int
	nonfirst bool
}

// NewHeaderWriter returns a writer for a header value that continues a line
// of which prefixLen bytes are already in use.
func NewHeaderWriter(prefixLen int) *HeaderWriter {
	return &HeaderWriter{b: &strings.Builder{}, lineLen: prefixLen}
}

// Addf formats the string and calls Add.
func (w *HeaderWriter) Addf(separator string, format string, args ...any) {
	w.Add(separator, fmt.Sprintf(format, args...))
}

// Add adds texts, each separated by separator. Individual elements in text
// are not wrapped.
func (w *HeaderWriter) Add(separator string, texts ...string) {
	for _, text := range texts {
		n := len(text)
		if w.nonfirst && w.lineLen > 1 && w.lineLen+len(separator)+n > 78 {
			// Punctuation stays on the old line, the fold eats the space.
			w.b.WriteString(strings.TrimRight(separator, " "))
			w.b.WriteString("\n\t")
			w.lineLen = 1
		} else if w.nonfirst && separator != "" {
			w.b.WriteString(separator)
			w.lineLen += len(separator)
		}
		w.b.WriteString(text)
		w.lineLen += n
		w.nonfirst = true
	}
}

// String returns the folded header value, without trailing newline.
func (w *HeaderWriter) String() string {
	return w.b.String()
}
