package message

import (
	"mime"
	"net/mail"
	"strings"

	"github.com/jan0sch/sylpheed/charset"
)

// EncodeHeader returns a header value ready for emission after a header name
// taking up prefixLen bytes, including the colon and space. Pure-ASCII input
// is returned folded but otherwise unchanged, no encoded-words are
// introduced. Non-ASCII text is converted to the named charset and wrapped
// in RFC 2047 encoded-words. Lines are folded under the 78-character budget,
// continuation lines start with a tab.
//
// Address fields are first normalized to the canonical `"Display Name"
// <addr>` shape, and only display names are encoded.
//
// If the text cannot be represented in charsetName, the returned value
// carries the internal UTF-8 form and the error describes the failed
// conversion. The value is still usable: degraded, not dropped.
func EncodeHeader(text string, prefixLen int, addrField bool, charsetName string) (string, error) {
	if addrField {
		return encodeAddressHeader(text, prefixLen, charsetName)
	}
	v, err := encodeWords(strings.TrimSpace(text), charsetName)
	return foldHeader(v, prefixLen), err
}

// encodeWords returns text unchanged when ASCII, otherwise as RFC 2047
// encoded-words in the given charset, or in UTF-8 with an error when the
// charset cannot represent the text.
func encodeWords(text, charsetName string) (string, error) {
	if charset.IsASCII(text) {
		return text, nil
	}
	cs := charsetName
	s, err := charset.Encode(text, cs)
	if err != nil {
		cs = charset.Internal
		s = text
	}
	return mime.QEncoding.Encode(cs, s), err
}

// EncodeMailbox returns a single `name <addr>` mailbox value. The display
// name is handled as one unit, never split on commas: quoted when it contains
// address specials, RFC 2047 encoded when non-ASCII. An empty name yields the
// bare address.
func EncodeMailbox(name, addr, charsetName string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return addr, nil
	}
	var rerr error
	if charset.IsASCII(name) {
		name = QuoteIfRequired(name)
	} else {
		name, rerr = encodeWords(name, charsetName)
	}
	return name + " <" + addr + ">", rerr
}

func encodeAddressHeader(text string, prefixLen int, charsetName string) (string, error) {
	var rerr error
	w := NewHeaderWriter(prefixLen)
	for _, tok := range SplitAddresses(text) {
		a, err := mail.ParseAddress(tok)
		if err != nil {
			// Not parseable as an address, treat as free text.
			v, xerr := encodeWords(tok, charsetName)
			if xerr != nil && rerr == nil {
				rerr = xerr
			}
			w.Add(", ", v)
			continue
		}
		s := a.Address
		if a.Name != "" {
			name := a.Name
			if charset.IsASCII(name) {
				name = QuoteIfRequired(name)
			} else {
				var xerr error
				name, xerr = encodeWords(name, charsetName)
				if xerr != nil && rerr == nil {
					rerr = xerr
				}
			}
			s = name + " <" + a.Address + ">"
		}
		w.Add(", ", s)
	}
	return w.String(), rerr
}

func foldHeader(v string, prefixLen int) string {
	w := NewHeaderWriter(prefixLen)
	for _, word := range strings.Split(v, " ") {
		w.Add(" ", word)
	}
	return w.String()
}
