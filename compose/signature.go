package compose

import (
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/jan0sch/sylpheed/mlog"
)

// GetSignature returns the account's signature text preceded by a newline
// and the configured separator line. The signature comes from the account's
// signature file, or from running it as a shell command when configured so.
// A missing or failing signature returns the empty string with a warning,
// composing continues without one.
func (c *Compose) GetSignature() string {
	if c.Account == nil || c.Account.SignaturePath == "" {
		return ""
	}
	var data []byte
	var err error
	if c.Account.SignatureIsCommand {
		data, err = exec.Command("/bin/sh", "-c", c.Account.SignaturePath).Output()
	} else {
		data, err = os.ReadFile(c.Account.SignaturePath)
	}
	if err != nil {
		xlog.Warnx("reading signature, composing without", err, mlog.Field("signature", c.Account.SignaturePath))
		return ""
	}
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !utf8.ValidString(s) {
		xlog.Warn("signature is not valid utf-8, composing without", mlog.Field("signature", c.Account.SignaturePath))
		return ""
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return "\n" + c.Prefs.SignatureSeparator + "\n" + s
}

// AppendSignature appends the signature to the current body.
func (c *Compose) AppendSignature() {
	c.Body += c.GetSignature()
}
