package compose

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jan0sch/sylpheed/message"
	"github.com/jan0sch/sylpheed/mlog"
)

// Headers never copied from the redirected message: trace and local
// bookkeeping fields the new transport run will regenerate, and Subject,
// which is re-emitted after the Resent fields.
var redirectDropHeaders = []string{
	"Return-Path", "Delivered-To", "Received", "Subject", "X-UIDL",
}

// WriteRedirect writes the redirect target to path: the original header
// block minus a fixed drop-list, the Resent fields for the new recipients,
// then the original body streamed byte-for-byte. Requires ModeRedirect with
// a target. As with WriteToFile, failure removes the partial file.
func (c *Compose) WriteRedirect(path string) (rerr error) {
	defer func() {
		metricWrites.WithLabelValues("redirect", resultLabel(rerr)).Inc()
	}()

	m, ok := c.Mode.(ModeRedirect)
	if !ok {
		return fmt.Errorf("%w: mode is %s, not redirect", ErrPrecondition, c.Mode.modeName())
	}
	if m.Target == nil {
		return fmt.Errorf("%w: redirect without target message", ErrPrecondition)
	}
	if c.Account == nil {
		return fmt.Errorf("%w: redirect requires an account", ErrPrecondition)
	}

	src, err := os.Open(m.Target.Path)
	if err != nil {
		return fmt.Errorf("opening redirect target: %w", err)
	}
	defer func() {
		xlog.Check(src.Close(), "closing redirect target")
	}()
	br := bufio.NewReader(src)

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
		xlog.Check(f.Close(), "closing partial message file")
		if err := os.Remove(path); err != nil {
			xlog.Errorx("removing partial message file", err, mlog.Field("path", path))
		}
	}()

	xc := message.NewComposer(message.NewWriter(f))

	subject, err := copyRedirectHeaders(xc, br)
	if err != nil {
		return err
	}
	if s := strings.TrimSpace(c.Subject); s != "" {
		subject = s
	}

	hdrCS := c.outgoingCharset(c.HeaderCharset)
	c.ToList = nil
	c.NewsgroupList = nil

	xc.Header("Resent-Date", time.Now().Format(time.RFC1123Z))
	{
		v, err := message.EncodeMailbox(c.Account.Name, c.Account.Address, hdrCS)
		c.warnEncode(err, "Resent-From")
		xc.Header("Resent-From", v)
	}
	c.headerAddr(xc, "Resent-To", c.To, hdrCS, true)
	c.headerAddr(xc, "Resent-Cc", c.Cc, hdrCS, true)
	c.headerAddr(xc, "Bcc", c.Bcc, hdrCS, true)
	if c.Newsgroups != "" {
		c.NewsgroupList = message.SplitNewsgroups(c.Newsgroups)
		if len(c.NewsgroupList) > 0 {
			xc.Header("Newsgroups", strings.Join(c.NewsgroupList, ","))
		}
	}
	if len(c.ToList) == 0 && len(c.NewsgroupList) == 0 {
		return ErrNoRecipients
	}
	if subject != "" {
		v, err := message.EncodeHeader(subject, len("Subject: "), false, hdrCS)
		c.warnEncode(err, "Subject")
		xc.Header("Subject", v)
	}
	if c.Account.GenerateMessageID {
		c.MessageID = c.generateMessageID()
		xc.Header("Resent-Message-Id", "<"+c.MessageID+">")
	}
	if c.FollowupTo != "" {
		if groups := message.SplitNewsgroups(c.FollowupTo); len(groups) > 0 {
			xc.Header("Followup-To", strings.Join(groups, ","))
		}
	}
	c.headerAddr(xc, "Resent-Reply-To", c.ReplyTo, hdrCS, false)
	xc.Line()
	xc.Flush()

	// The body passes through untouched, byte-for-byte.
	if _, err := io.Copy(f, br); err != nil {
		return fmt.Errorf("copying redirect body: %w", err)
	}

	cf := f
	f = nil
	if err := cf.Close(); err != nil {
		if rmerr := os.Remove(path); rmerr != nil {
			xlog.Errorx("removing message file after failed close", rmerr, mlog.Field("path", path))
		}
		return fmt.Errorf("closing message file: %w", err)
	}
	return nil
}

// copyRedirectHeaders copies the header block from br up to and excluding
// the blank separator line, skipping the drop-list fields with their
// continuation lines. The original Subject value is returned, raw and
// unfolded into a single line.
func copyRedirectHeaders(xc *message.Composer, br *bufio.Reader) (string, error) {
	var subject string
	var inSubject, skipping bool
	for {
		line, err := br.ReadString('\n')
		if line == "" && err == io.EOF {
			return subject, nil
		}
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("reading redirect target headers: %w", err)
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			return subject, nil
		}
		if line[0] == ' ' || line[0] == '\t' {
			if inSubject {
				subject += " " + strings.TrimSpace(trimmed)
			} else if !skipping {
				xc.Write([]byte(trimmed + "\n"))
			}
			continue
		}
		name, value, _ := strings.Cut(trimmed, ":")
		inSubject = strings.EqualFold(name, "Subject")
		if inSubject {
			subject = strings.TrimSpace(value)
		}
		skipping = false
		for _, drop := range redirectDropHeaders {
			if strings.EqualFold(name, drop) {
				skipping = true
				break
			}
		}
		if !skipping {
			xc.Write([]byte(trimmed + "\n"))
		}
	}
}
