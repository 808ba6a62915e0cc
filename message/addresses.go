package message

import (
	"net/mail"
	"strings"
	"unicode"
)

// SplitAddresses splits a raw address header value into individual address
// tokens. Commas inside double quotes or angle brackets do not split.
// Tokens are trimmed of surrounding whitespace, empty tokens are dropped.
func SplitAddresses(s string) []string {
	var l []string
	var inQuote bool
	var depth int
	start := 0
	flush := func(end int) {
		tok := strings.TrimSpace(s[start:end])
		if tok != "" {
			l = append(l, tok)
		}
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case '<':
			if !inQuote {
				depth++
			}
		case '>':
			if !inQuote && depth > 0 {
				depth--
			}
		case ',':
			if !inQuote && depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(s))
	return l
}

// SplitNewsgroups splits a newsgroups header value on commas. Newsgroup
// names cannot contain whitespace so all of it is removed first. Empty and
// duplicate entries are dropped.
func SplitNewsgroups(s string) []string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	var l []string
	seen := map[string]bool{}
	for _, g := range strings.Split(s, ",") {
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		l = append(l, g)
	}
	return l
}

// QuoteIfRequired wraps a display name in double quotes when it contains
// characters that are specials in an address header and is not already
// quoted.
func QuoteIfRequired(s string) string {
	if !strings.HasPrefix(s, `"`) && strings.ContainsAny(s, ",.[]<>") {
		return `"` + s + `"`
	}
	return s
}

// ExtractAddress returns the bare addr-spec of an address token, e.g. a@b
// for `Name <a@b>`. Unparseable tokens are returned trimmed as-is.
func ExtractAddress(tok string) string {
	if a, err := mail.ParseAddress(tok); err == nil {
		return a.Address
	}
	return strings.TrimSpace(tok)
}
