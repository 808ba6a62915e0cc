// Package charset converts text between the internal UTF-8 representation
// and named MIME charsets, for message headers and bodies.
//
// Lookup of encodings is through the IANA-registered MIME names from
// golang.org/x/text. Encoding to a charset that cannot represent the text
// returns an error, callers decide on fallback behavior.
package charset

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// Internal is the charset of all in-memory text in this code base.
const Internal = "UTF-8"

// ASCII is the charset label for 7-bit text.
const ASCII = "US-ASCII"

// Lookup returns the encoding for a MIME charset name, case-insensitive.
func Lookup(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.MIME.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("lookup charset %q: %v", name, err)
	}
	if enc == nil {
		// The index has entries without implementation.
		return nil, fmt.Errorf("charset %q not supported", name)
	}
	return enc, nil
}

// Encode converts UTF-8 s to the named charset. Text the charset cannot
// represent results in an error, not replacement characters.
func Encode(s, toCharset string) (string, error) {
	if IsASCII(s) {
		return s, nil
	}
	switch strings.ToLower(toCharset) {
	case "utf-8":
		return s, nil
	case "us-ascii":
		return "", fmt.Errorf("non-ascii text cannot be encoded as %s", ASCII)
	}
	enc, err := Lookup(toCharset)
	if err != nil {
		return "", err
	}
	out, err := enc.NewEncoder().String(s)
	if err != nil {
		return "", fmt.Errorf("encoding text to %q: %v", toCharset, err)
	}
	return out, nil
}

// Decode converts s in the named charset to UTF-8. Invalid input bytes become
// replacement characters.
func Decode(s, fromCharset string) (string, error) {
	switch strings.ToLower(fromCharset) {
	case "", "utf-8", "us-ascii":
		return s, nil
	}
	enc, err := Lookup(fromCharset)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().String(s)
	if err != nil {
		return "", fmt.Errorf("decoding text from %q: %v", fromCharset, err)
	}
	return out, nil
}

// Reader returns a reader producing UTF-8 from r in the named charset.
// Usable as the CharsetReader of a mime.WordDecoder.
func Reader(name string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "us-ascii":
		return r, nil
	}
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(r), nil
}

// IsASCII reports whether s consists of 7-bit bytes only.
func IsASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
