package compose

import (
	"fmt"
	"strings"

	"github.com/jan0sch/sylpheed/message"
)

// PrepareReedit loads a previously saved draft or queued message back into
// the composition: header fields as stored, the reference chain kept
// verbatim rather than rebuilt, and the body when it was stored in an
// identity transfer encoding.
func (c *Compose) PrepareReedit() error {
	m, ok := c.Mode.(ModeReedit)
	if !ok {
		return fmt.Errorf("%w: mode is %s, not reedit", ErrPrecondition, c.Mode.modeName())
	}
	if m.Target == nil {
		return fmt.Errorf("%w: re-edit without target message", ErrPrecondition)
	}
	h, err := ParseSourceHeaders(m.Target.Path)
	if err != nil {
		return err
	}

	c.To = h.To
	c.Cc = h.Cc
	c.Bcc = h.Bcc
	c.ReplyTo = h.ReplyTo
	c.Newsgroups = h.Newsgroups
	c.FollowupTo = h.FollowupTo
	c.Subject = h.Subject
	c.InReplyTo = h.InReplyTo
	// The stored chain is trusted as-is, only the fold is restored.
	if ids := message.ParseMsgIDs(h.References); len(ids) > 0 {
		c.References = "<" + strings.Join(ids, ">\n\t<") + ">"
	}
	if h.Charset != "" {
		c.BodyCharset = h.Charset
	}

	body, err := c.readPlainBody(m.Target.Path, h)
	if err != nil {
		return err
	}
	c.Body = body
	return nil
}

// RemoveReeditTarget removes the stored draft or queued message a finished
// re-edit replaced.
func (c *Compose) RemoveReeditTarget() error {
	m, ok := c.Mode.(ModeReedit)
	if !ok {
		return fmt.Errorf("%w: mode is %s, not reedit", ErrPrecondition, c.Mode.modeName())
	}
	if m.Target == nil || m.Target.Folder == nil {
		return fmt.Errorf("%w: re-edit without stored target", ErrPrecondition)
	}
	return m.Target.Folder.RemoveMessage(m.Target.Num)
}
