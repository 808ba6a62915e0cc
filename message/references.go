package message

import "strings"

// Hard ceiling on the byte length of a References header value. Each id is
// counted with its angle brackets and fold overhead.
const maxReferencesLen = 999

// ParseMsgIDs returns the message-ids, without angle brackets, from a
// References or In-Reply-To style header value, in order. Text outside angle
// brackets and truncated entries are skipped.
func ParseMsgIDs(refs string) []string {
	var ids []string
	for refs != "" {
		refs = strings.TrimLeft(refs, " \t\r\n")
		i := strings.IndexByte(refs, '<')
		if i < 0 {
			break
		}
		refs = refs[i+1:]
		j := strings.IndexAny(refs, "<>")
		if j < 0 {
			break
		}
		if refs[j] == '<' {
			// Truncated entry, start over at the new bracket.
			refs = refs[j:]
			continue
		}
		id := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
				return -1
			}
			return r
		}, refs[:j])
		refs = refs[j+1:]
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// BuildReferences builds a References header value from the reference chain
// of the message being replied to and that message's own id. The returned
// value has one bracketed id per line, continuation lines tab-indented.
//
// While the value would exceed the length ceiling, the second id is removed:
// the first id anchors the thread root, the newest ids keep the immediate
// context. If fewer than three ids would remain, the empty string is
// returned: no References header rather than a gutted one.
func BuildReferences(priorChain, msgid string) string {
	ids := ParseMsgIDs(priorChain)
	if len(ids) == 0 {
		return ""
	}
	if msgid != "" {
		ids = append(ids, msgid)
	}

	for {
		size := 0
		for _, id := range ids {
			size += len(id) + 5
		}
		if size <= maxReferencesLen {
			break
		}
		if len(ids) < 3 {
			return ""
		}
		ids = append(ids[:1], ids[2:]...)
	}

	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteString("\n\t")
		}
		sb.WriteString("<")
		sb.WriteString(id)
		sb.WriteString(">")
	}
	return sb.String()
}
