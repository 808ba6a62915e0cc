// Package compose builds RFC 822/MIME messages from structured intent:
// recipients, subject, body text, attachments and an account identity. The
// result is a wire-format file ready for delivery, deferred-send queueing or
// draft storage. A failed write never leaves a partial file at the target
// path.
package compose

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jan0sch/sylpheed/config"
	"github.com/jan0sch/sylpheed/message"
	"github.com/jan0sch/sylpheed/mlog"
)

var xlog = mlog.New("compose")

var (
	// ErrPrecondition indicates a caller bug: wrong mode for the requested
	// writer, or a missing required account or target. Never retried.
	ErrPrecondition = errors.New("precondition failed")

	// ErrNoRecipients indicates no recipient resolved from the To, Cc, Bcc
	// and Newsgroups fields. The caller must add one, drafts are exempt.
	ErrNoRecipients = errors.New("no recipients")
)

// Mode selects the kind of message under construction. Each variant carries
// the source or target message it needs, so a redirect without a target is
// not representable.
type Mode interface {
	modeName() string
}

// ModeNew is a freshly composed message.
type ModeNew struct{}

// ModeReply is a reply to Source.
type ModeReply struct {
	Source *MsgInfo
	All    bool // Also address the original To and Cc recipients.
	ToList bool // Address the mailing list posting address instead of the sender.
}

// ModeForward forwards Source, either quoted inline or as a message/rfc822
// attachment.
type ModeForward struct {
	Source   *MsgInfo
	AsAttach bool
}

// ModeRedirect resends Target unmodified to new recipients.
type ModeRedirect struct {
	Target *MsgInfo
}

// ModeReedit continues composing a previously saved draft or queued message.
type ModeReedit struct {
	Target *MsgInfo
}

func (ModeNew) modeName() string      { return "new" }
func (ModeReply) modeName() string    { return "reply" }
func (ModeForward) modeName() string  { return "forward" }
func (ModeRedirect) modeName() string { return "redirect" }
func (ModeReedit) modeName() string   { return "reedit" }

// MsgInfo identifies a stored message used as a reply/forward source or as a
// redirect/re-edit target. Non-owning: the message outlives the composition.
type MsgInfo struct {
	Path   string // Path to the raw message file.
	Num    int64  // Message number within Folder, for re-edit removal.
	Folder Folder // Folder holding the message, may be nil.
}

// Folder is the storage collaborator finished messages are inserted into and
// re-edited messages removed from. Implemented by the queue.
type Folder interface {
	// InsertMessage stores the file at path as a new message and returns
	// its message number. The file at path is not consumed.
	InsertMessage(path string) (int64, error)

	// RemoveMessage removes a stored message.
	RemoveMessage(num int64) error
}

// Flags modify how the message is written.
type Flags struct {
	MIMEPrologText       bool // Write the notice line before the first multipart boundary.
	InlineDisposition    bool // Mark the main text part with Content-Disposition: inline.
	ProtectTrailingSpace bool // Upgrade 7bit/8bit attachment encodings so trailing spaces survive transport.
	Draft                bool // Draft save: no recipients required, account id marker header added.
}

// AttachInfo describes one attachment: a source file with its declared
// content-type, transfer encoding and display name.
type AttachInfo struct {
	File        string
	ContentType string
	Encoding    message.Encoding
	Name        string
	Size        int64
}

// Compose is one message under construction. Create with New, populate with
// the setters, then consume with WriteToFile, WriteRedirect or Queue.
//
// Compose is exclusively owned by its caller. Concurrent use is out of
// contract.
type Compose struct {
	Account *config.Account // Non-owning identity reference.
	Prefs   config.Prefs
	Mode    Mode
	Flags   Flags

	// Raw outgoing header fields, not yet encoded. Empty means omit.
	To, Cc, Bcc, ReplyTo, Newsgroups, FollowupTo, Subject string

	InReplyTo  string // Message-id being replied to, without brackets.
	References string // Formatted, folded reference chain.
	MessageID  string // Generated during the header write, without brackets.

	// Charset overrides, empty falls back to Prefs.OutgoingCharset.
	HeaderCharset string
	BodyCharset   string

	// Forced body transfer encoding, when encodingSet.
	bodyEncoding message.Encoding
	encodingSet  bool

	Body string // Internal form: UTF-8, bare \n line endings.

	Attachments []*AttachInfo

	// Transport envelope, rebuilt on every header write.
	ToList        []string
	NewsgroupList []string

	boundary string

	// Hooks around the file write. PreProcess failure aborts before the
	// output file exists. PostProcess failure is reported but leaves the
	// finished file in place.
	PreProcess  func() error
	PostProcess func(path string) error
}

// New returns an empty composition for the given account and mode.
func New(acc *config.Account, prefs config.Prefs, mode Mode) *Compose {
	return &Compose{Account: acc, Prefs: prefs, Mode: mode}
}

// SetHeaders replaces the outgoing mail header fields. Empty values omit the
// header.
func (c *Compose) SetHeaders(to, cc, bcc, replyTo, subject string) {
	c.To = to
	c.Cc = cc
	c.Bcc = bcc
	c.ReplyTo = replyTo
	c.Subject = subject
}

// SetNewsHeaders replaces the news header fields.
func (c *Compose) SetNewsHeaders(newsgroups, followupTo string) {
	c.Newsgroups = newsgroups
	c.FollowupTo = followupTo
}

// SetBody replaces the body text, normalizing line endings to the internal
// form.
func (c *Compose) SetBody(body string) {
	c.Body = strings.ReplaceAll(body, "\r\n", "\n")
}

// SetEncoding forces the body transfer encoding, overriding both the
// preference and the charset default.
func (c *Compose) SetEncoding(enc message.Encoding) {
	c.bodyEncoding = enc
	c.encodingSet = true
}

// SetAttachments replaces the attachment sequence.
func (c *Compose) SetAttachments(atts ...*AttachInfo) {
	c.Attachments = atts
}

// AttachFile builds an attachment descriptor for a file. The transfer
// encoding follows the content type: 8bit for message types, content-based
// 7bit/8bit for text, base64 otherwise. An empty name defaults to the file's
// base name.
func AttachFile(path, contentType, name string) (*AttachInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("attachment %s: %w", path, err)
	}
	if name == "" {
		name = filepath.Base(path)
	}
	enc := message.EncBase64
	switch {
	case strings.HasPrefix(contentType, "message/"):
		enc = message.Enc8bit
	case strings.HasPrefix(contentType, "text/"):
		enc, err = encodingForTextFile(path)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", path, err)
		}
	}
	return &AttachInfo{File: path, ContentType: contentType, Encoding: enc, Name: name, Size: fi.Size()}, nil
}

// encodingForTextFile returns 8bit when the file contains bytes with the
// high bit set, 7bit otherwise.
func encodingForTextFile(path string) (message.Encoding, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	for _, b := range buf {
		if b&0x80 != 0 {
			return message.Enc8bit, nil
		}
	}
	return message.Enc7bit, nil
}
