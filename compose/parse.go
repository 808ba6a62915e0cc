package compose

import (
	"bufio"
	"fmt"
	"io"
	"mime"
	"net/textproto"
	"os"
	"strconv"
	"strings"

	"github.com/jan0sch/sylpheed/charset"
	"github.com/jan0sch/sylpheed/message"
	"github.com/jan0sch/sylpheed/mlog"
)

// SourceHeaders are the fields reply, forward and re-edit composition
// inherits from a stored source message.
type SourceHeaders struct {
	From, To, Cc, Bcc, ReplyTo string
	Newsgroups, FollowupTo     string
	ListPost                   string // Bare posting address from List-Post.
	Subject                    string
	Date                       string // Raw Date value.
	MessageID                  string // Without brackets.
	InReplyTo                  string // Without brackets.
	References                 string // Raw header value.
	Charset                    string // From the Content-Type charset parameter.
	TransferEncoding           string // Raw Content-Transfer-Encoding value.
	AccountID                  int    // From the draft marker header, 0 if absent.
}

// ParseSourceHeaders reads the header fields of a stored message, decoding
// encoded-words to the internal charset.
func ParseSourceHeaders(path string) (*SourceHeaders, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source message: %w", err)
	}
	defer func() {
		xlog.Check(f.Close(), "closing source message")
	}()

	tr := textproto.NewReader(bufio.NewReader(f))
	hdr, err := tr.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing source message headers: %v", err)
	}

	dec := mime.WordDecoder{CharsetReader: charset.Reader}
	get := func(k string) string {
		v := hdr.Get(k)
		if v == "" {
			return ""
		}
		s, err := dec.DecodeHeader(v)
		if err != nil {
			xlog.Debugx("decoding source header, keeping raw value", err, mlog.Field("header", k))
			return v
		}
		return s
	}

	h := &SourceHeaders{
		From:             get("From"),
		To:               get("To"),
		Cc:               get("Cc"),
		Bcc:              get("Bcc"),
		ReplyTo:          get("Reply-To"),
		Newsgroups:       hdr.Get("Newsgroups"),
		FollowupTo:       hdr.Get("Followup-To"),
		Subject:          get("Subject"),
		Date:             hdr.Get("Date"),
		References:       hdr.Get("References"),
		TransferEncoding: strings.ToLower(strings.TrimSpace(hdr.Get("Content-Transfer-Encoding"))),
	}
	if ids := message.ParseMsgIDs(hdr.Get("Message-Id")); len(ids) > 0 {
		h.MessageID = ids[0]
	}
	if ids := message.ParseMsgIDs(hdr.Get("In-Reply-To")); len(ids) > 0 {
		h.InReplyTo = ids[len(ids)-1]
	}
	if lp := hdr.Get("List-Post"); lp != "" {
		h.ListPost = parseListPost(lp)
	}
	if ct := hdr.Get("Content-Type"); ct != "" {
		if _, params, err := mime.ParseMediaType(ct); err == nil {
			h.Charset = params["charset"]
		}
	}
	if v := hdr.Get("X-Sylpheed-Account-Id"); v != "" {
		h.AccountID, _ = strconv.Atoi(strings.TrimSpace(v))
	}
	return h, nil
}

// parseListPost extracts the posting address from a List-Post value like
// <mailto:list@example.org>.
func parseListPost(s string) string {
	i := strings.Index(s, "<mailto:")
	if i < 0 {
		return ""
	}
	s = s[i+len("<mailto:"):]
	j := strings.IndexByte(s, '>')
	if j < 0 {
		return ""
	}
	addr := s[:j]
	if k := strings.IndexByte(addr, '?'); k >= 0 {
		addr = addr[:k]
	}
	return addr
}

// PrepareReply fills the recipient, subject and threading fields from the
// reply source. Reply-to-list prefers the List-Post address, reply-all adds
// the original To and Cc recipients minus the account's own address.
func (c *Compose) PrepareReply() error {
	m, ok := c.Mode.(ModeReply)
	if !ok {
		return fmt.Errorf("%w: mode is %s, not reply", ErrPrecondition, c.Mode.modeName())
	}
	if m.Source == nil {
		return fmt.Errorf("%w: reply without source message", ErrPrecondition)
	}
	h, err := ParseSourceHeaders(m.Source.Path)
	if err != nil {
		return err
	}

	c.InReplyTo = h.MessageID
	if h.References != "" {
		c.References = message.BuildReferences(h.References, h.MessageID)
	} else {
		// No chain to extend, seed it from the source's own threading
		// fields: its parent first, then the source itself.
		switch {
		case h.InReplyTo != "" && h.MessageID != "":
			c.References = "<" + h.InReplyTo + ">\n\t<" + h.MessageID + ">"
		case h.InReplyTo != "":
			c.References = "<" + h.InReplyTo + ">"
		case h.MessageID != "":
			c.References = "<" + h.MessageID + ">"
		}
	}

	switch {
	case m.ToList && h.ListPost != "":
		c.To = h.ListPost
	case h.ReplyTo != "":
		c.To = h.ReplyTo
	default:
		c.To = h.From
	}
	if m.All {
		own := ""
		if c.Account != nil {
			own = c.Account.Address
		}
		primary := message.ExtractAddress(c.To)
		var cc []string
		for _, tok := range append(message.SplitAddresses(h.To), message.SplitAddresses(h.Cc)...) {
			addr := message.ExtractAddress(tok)
			if strings.EqualFold(addr, own) || strings.EqualFold(addr, primary) {
				continue
			}
			cc = append(cc, tok)
		}
		if len(cc) > 0 {
			c.Cc = strings.Join(cc, ", ")
		}
	}

	if h.FollowupTo != "" {
		c.Newsgroups = h.FollowupTo
	} else {
		c.Newsgroups = h.Newsgroups
	}
	c.Subject = replySubject(h.Subject)
	return nil
}

func replySubject(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) >= 3 && strings.EqualFold(s[:3], "re:") {
		return s
	}
	return "Re: " + s
}

// PrepareForward fills subject and content from the forward source: the raw
// message as a message/rfc822 part for attached forwards, a quoted copy of
// the body otherwise.
func (c *Compose) PrepareForward() error {
	m, ok := c.Mode.(ModeForward)
	if !ok {
		return fmt.Errorf("%w: mode is %s, not forward", ErrPrecondition, c.Mode.modeName())
	}
	if m.Source == nil {
		return fmt.Errorf("%w: forward without source message", ErrPrecondition)
	}
	h, err := ParseSourceHeaders(m.Source.Path)
	if err != nil {
		return err
	}
	c.Subject = forwardSubject(h.Subject)

	if m.AsAttach {
		fi, err := os.Stat(m.Source.Path)
		if err != nil {
			return fmt.Errorf("forward source: %w", err)
		}
		c.Attachments = append(c.Attachments, &AttachInfo{
			File:        m.Source.Path,
			ContentType: "message/rfc822",
			Encoding:    message.Enc8bit,
			Name:        "forwarded message",
			Size:        fi.Size(),
		})
		return nil
	}

	body, err := c.readPlainBody(m.Source.Path, h)
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString("\n\nBegin forwarded message:\n\n")
	for _, kv := range [][2]string{
		{"Date", h.Date}, {"From", h.From}, {"To", h.To},
		{"Newsgroups", h.Newsgroups}, {"Subject", h.Subject},
	} {
		if kv[1] != "" {
			sb.WriteString(kv[0] + ": " + kv[1] + "\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(body)
	c.Body = sb.String()
	return nil
}

func forwardSubject(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) >= 4 && strings.EqualFold(s[:4], "fwd:") {
		return s
	}
	return "Fwd: " + s
}

// readPlainBody returns the body of a stored message in internal form. Only
// identity transfer encodings are read back, decoding base64 or QP bodies
// is MIME parsing and lives outside this engine.
func (c *Compose) readPlainBody(path string, h *SourceHeaders) (string, error) {
	switch h.TransferEncoding {
	case "", "7bit", "8bit", "binary":
	default:
		xlog.Warn("source body in non-identity transfer encoding, leaving body empty",
			mlog.Field("encoding", h.TransferEncoding), mlog.Field("path", path))
		return "", nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading source message: %w", err)
	}
	s := string(buf)
	body := ""
	for _, sep := range []string{"\r\n\r\n", "\n\n"} {
		if _, rest, ok := strings.Cut(s, sep); ok {
			body = rest
			break
		}
	}
	body = strings.ReplaceAll(body, "\r\n", "\n")
	if h.Charset != "" {
		dec, err := charset.Decode(body, h.Charset)
		if err != nil {
			xlog.Warnx("decoding source body charset, keeping raw text", err, mlog.Field("charset", h.Charset))
		} else {
			body = dec
		}
	}
	return body, nil
}
