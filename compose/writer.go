package compose

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jan0sch/sylpheed/charset"
	"github.com/jan0sch/sylpheed/message"
	"github.com/jan0sch/sylpheed/mlog"
)

// WriteToFile writes the composed message to path, in wire format with CRLF
// line endings. The file is created exclusively with mode 0600. On any
// failure after creation the partial file is removed, the caller never sees
// a partial artifact at path.
//
// Recipients are resolved while writing headers; without any recipient and
// without the draft flag the write is rejected with ErrNoRecipients before
// any body is emitted.
func (c *Compose) WriteToFile(path string) (rerr error) {
	kind := "compose"
	if c.Flags.Draft {
		kind = "draft"
	}
	defer func() {
		metricWrites.WithLabelValues(kind, resultLabel(rerr)).Inc()
	}()

	if c.Account == nil {
		return fmt.Errorf("%w: composing requires an account", ErrPrecondition)
	}

	bodyCS, bodyEnc, body := c.resolveBody()
	hdrCS := c.outgoingCharset(c.HeaderCharset)

	if c.PreProcess != nil {
		if err := c.PreProcess(); err != nil {
			return fmt.Errorf("pre-process: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating message file: %w", err)
	}
	defer func() {
		if x := recover(); x != nil {
			err, ok := x.(error)
			if !ok || !errors.Is(err, message.ErrCompose) {
				panic(x)
			}
			rerr = err
		}
		if f == nil {
			return
		}
		// Failed partway, the partial file must not remain.
		xlog.Check(f.Close(), "closing partial message file")
		if err := os.Remove(path); err != nil {
			xlog.Errorx("removing partial message file", err, mlog.Field("path", path))
		}
	}()

	xc := message.NewComposer(message.NewWriter(f))

	if err := c.writeHeaders(xc, hdrCS, bodyCS, bodyEnc); err != nil {
		return err
	}

	if len(c.Attachments) > 0 {
		c.writeMultipart(xc, bodyCS, bodyEnc, body)
	} else {
		xc.Checkf(message.WriteEncoded(xc, body, bodyEnc), "writing body")
	}
	xc.Flush()

	cf := f
	f = nil
	if err := cf.Close(); err != nil {
		if rmerr := os.Remove(path); rmerr != nil {
			xlog.Errorx("removing message file after failed close", rmerr, mlog.Field("path", path))
		}
		return fmt.Errorf("closing message file: %w", err)
	}

	if c.PostProcess != nil {
		// The file is valid, a failing hook does not undo it.
		if err := c.PostProcess(path); err != nil {
			return fmt.Errorf("post-process: %w", err)
		}
	}
	return nil
}

// resolveBody picks the body charset label, the transfer encoding and the
// bytes to serialize. A pure-ASCII body forces US-ASCII with 7bit encoding
// regardless of the configured outgoing charset. When conversion to the
// outgoing charset fails, the body goes out untranslated in the internal
// charset, reported as a warning.
func (c *Compose) resolveBody() (string, message.Encoding, []byte) {
	if charset.IsASCII(c.Body) {
		return charset.ASCII, message.Enc7bit, []byte(c.Body)
	}
	cs := c.outgoingCharset(c.BodyCharset)
	body, err := charset.Encode(c.Body, cs)
	if err != nil {
		xlog.Warnx("converting body to outgoing charset, sending untranslated", err, mlog.Field("charset", cs))
		metricCharsetFallback.Inc()
		cs = charset.Internal
		body = c.Body
	}
	return cs, c.resolveEncoding(cs), []byte(body)
}

func (c *Compose) resolveEncoding(cs string) message.Encoding {
	if c.encodingSet {
		return c.bodyEncoding
	}
	if e, ok := message.ParseEncoding(c.Prefs.EncodingMethod); ok {
		return e
	}
	return message.EncodingForCharset(cs)
}

// outgoingCharset applies the per-message override and promotes a configured
// us-ascii to ISO-8859-1: plain ASCII is handled by the 7bit path, anything
// else needs a real 8-bit charset.
func (c *Compose) outgoingCharset(override string) string {
	cs := override
	if cs == "" {
		cs = c.Prefs.OutgoingCharset
	}
	if cs == "" {
		cs = charset.Internal
	}
	if strings.EqualFold(cs, "us-ascii") {
		cs = "ISO-8859-1"
	}
	return cs
}

// Headers custom headers cannot replace.
var reservedHeaders = []string{
	"Date", "From", "To", "Message-Id", "In-Reply-To", "References",
	"Mime-Version", "Content-Type", "Content-Transfer-Encoding",
}

func isReservedHeader(name string) bool {
	for _, h := range reservedHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// customHeader reports whether the account configures a custom header with
// this name, in which case the standard header is suppressed.
func (c *Compose) customHeader(name string) bool {
	if !c.Account.SetCustomHeaders {
		return false
	}
	for _, h := range c.Account.CustomHeaders {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

// writeHeaders emits the header block in its fixed order and rebuilds the
// transport recipient lists from the To, Cc, Bcc and Newsgroups fields.
func (c *Compose) writeHeaders(xc *message.Composer, hdrCS, bodyCS string, bodyEnc message.Encoding) error {
	c.ToList = nil
	c.NewsgroupList = nil

	if c.Account.AddDateHeader && !c.customHeader("Date") {
		xc.Header("Date", time.Now().Format(time.RFC1123Z))
	}

	if !c.customHeader("From") {
		v, err := message.EncodeMailbox(c.Account.Name, c.Account.Address, hdrCS)
		c.warnEncode(err, "From")
		xc.Header("From", v)
	}

	c.headerAddr(xc, "To", c.To, hdrCS, true)

	if c.Newsgroups != "" {
		c.NewsgroupList = message.SplitNewsgroups(c.Newsgroups)
		if len(c.NewsgroupList) > 0 {
			xc.Header("Newsgroups", strings.Join(c.NewsgroupList, ","))
		}
	}

	c.headerAddr(xc, "Cc", c.Cc, hdrCS, true)
	c.headerAddr(xc, "Bcc", c.Bcc, hdrCS, true)

	if len(c.ToList) == 0 && len(c.NewsgroupList) == 0 && !c.Flags.Draft {
		return ErrNoRecipients
	}

	if subject := strings.TrimSpace(c.Subject); subject != "" && !c.customHeader("Subject") {
		v, err := message.EncodeHeader(subject, len("Subject: "), false, hdrCS)
		c.warnEncode(err, "Subject")
		xc.Header("Subject", v)
	}

	if c.Account.GenerateMessageID && !c.customHeader("Message-Id") {
		c.MessageID = c.generateMessageID()
		xc.Header("Message-Id", "<"+c.MessageID+">")
	}

	if c.InReplyTo != "" && len(c.ToList) > 0 {
		xc.Header("In-Reply-To", "<"+c.InReplyTo+">")
	}

	if c.References != "" {
		xc.Header("References", c.References)
	}

	if c.FollowupTo != "" {
		if groups := message.SplitNewsgroups(c.FollowupTo); len(groups) > 0 {
			xc.Header("Followup-To", strings.Join(groups, ","))
		}
	}

	c.headerAddr(xc, "Reply-To", c.ReplyTo, hdrCS, false)

	if org := strings.TrimSpace(c.Account.Organization); org != "" && !c.customHeader("Organization") {
		v, err := message.EncodeHeader(org, len("Organization: "), false, hdrCS)
		c.warnEncode(err, "Organization")
		xc.Header("Organization", v)
	}

	if c.Account.SetCustomHeaders {
		for _, h := range c.Account.CustomHeaders {
			if isReservedHeader(h.Name) {
				continue
			}
			v, err := message.EncodeHeader(h.Value, len(h.Name)+2, false, hdrCS)
			c.warnEncode(err, h.Name)
			xc.Header(h.Name, v)
		}
	}

	xc.Header("Mime-Version", "1.0")
	if len(c.Attachments) > 0 {
		if c.boundary == "" {
			c.boundary = message.GenerateBoundary()
		}
		xc.Header("Content-Type", "multipart/mixed;\n boundary=\""+c.boundary+"\"")
	} else {
		xc.Header("Content-Type", "text/plain; charset="+bodyCS)
		if c.Flags.InlineDisposition {
			xc.Header("Content-Disposition", "inline")
		}
		xc.Header("Content-Transfer-Encoding", bodyEnc.String())
	}
	if c.Flags.Draft {
		xc.Header("X-Sylpheed-Account-Id", strconv.Itoa(c.Account.ID))
	}
	xc.Line()
	return nil
}

// headerAddr writes an address header through the encoder, appending the
// bare addresses to the transport recipient list when collect is set.
func (c *Compose) headerAddr(xc *message.Composer, name, value, hdrCS string, collect bool) {
	if strings.TrimSpace(value) == "" || c.customHeader(name) {
		return
	}
	if collect {
		for _, tok := range message.SplitAddresses(value) {
			c.ToList = append(c.ToList, message.ExtractAddress(tok))
		}
	}
	v, err := message.EncodeHeader(value, len(name)+2, true, hdrCS)
	c.warnEncode(err, name)
	if v != "" {
		xc.Header(name, v)
	}
}

func (c *Compose) warnEncode(err error, header string) {
	if err == nil {
		return
	}
	xlog.Warnx("converting header to outgoing charset, sending in internal charset", err, mlog.Field("header", header))
	metricCharsetFallback.Inc()
}

func (c *Compose) generateMessageID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	return message.GenerateMessageID(c.Account.Address, user, host, time.Now(), randUint32())
}

func randUint32() uint32 {
	var buf [4]byte
	cryptorand.Read(buf[:])
	return binary.BigEndian.Uint32(buf[:])
}
