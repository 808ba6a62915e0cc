package queue

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/jan0sch/sylpheed/message"
)

// Fileinfo is the delivery envelope parsed from a staged queue file's
// preamble. The preamble is a fixed line-oriented key:value schema written
// by the composer, frozen for compatibility with the delivery session.
type Fileinfo struct {
	MessageID  string // Without brackets.
	Sender     string
	Recipients []string // Bare addresses, brackets stripped.
	SMTPServer string
	NNTPServer string
	AccountID  int
}

// ParseFileinfo reads the preamble from br up to and including the blank
// separator line, leaving br positioned at the raw message bytes. Keys not
// carrying envelope data are skipped.
func ParseFileinfo(br *bufio.Reader) (*Fileinfo, error) {
	fi := &Fileinfo{}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading queue preamble: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed queue preamble line %q", line)
		}
		switch key {
		case "MID":
			if ids := message.ParseMsgIDs(val); len(ids) > 0 {
				fi.MessageID = ids[0]
			}
		case "S":
			fi.Sender = strings.TrimSpace(val)
		case "R":
			for _, r := range strings.Split(val, ",") {
				r = strings.TrimSpace(r)
				r = strings.TrimPrefix(r, "<")
				r = strings.TrimSuffix(r, ">")
				if r != "" {
					fi.Recipients = append(fi.Recipients, r)
				}
			}
		case "SSV":
			fi.SMTPServer = strings.TrimSpace(val)
		case "NSV":
			fi.NNTPServer = strings.TrimSpace(val)
		case "AID":
			fi.AccountID, err = strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				return nil, fmt.Errorf("malformed queue preamble account id %q", val)
			}
		}
	}
	if fi.Sender == "" {
		return nil, fmt.Errorf("queue preamble without sender")
	}
	return fi, nil
}
