package message

import (
	"fmt"
	"strings"
	"time"
)

// GenerateMessageID returns a message-id, without angle brackets, built from
// the local time, a random token and the sending address. An address without
// a domain part gets domain appended, an empty address falls back to
// user@domain.
func GenerateMessageID(addr, user, domain string, now time.Time, random uint32) string {
	if addr == "" {
		addr = user + "@" + domain
	} else if !strings.Contains(addr, "@") {
		addr += "@" + domain
	}
	return fmt.Sprintf("%s.%08x.%s", now.Format("20060102150405"), random, addr)
}
