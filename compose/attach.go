package compose

import (
	"io"
	"mime"
	"mime/quotedprintable"
	"os"
	"strings"

	"github.com/jan0sch/sylpheed/charset"
	"github.com/jan0sch/sylpheed/message"
	"github.com/jan0sch/sylpheed/mlog"
	"github.com/jan0sch/sylpheed/sylio"
)

const mimePrologText = "This is a multi-part message in MIME format.\n"

// writeMultipart writes the body as the first part of a multipart/mixed
// message, followed by one part per attachment and the closing boundary.
// One boundary token serves the whole write.
func (c *Compose) writeMultipart(xc *message.Composer, bodyCS string, bodyEnc message.Encoding, body []byte) {
	if c.Flags.MIMEPrologText {
		xc.Write([]byte(mimePrologText))
	}

	xc.Write([]byte("\n--" + c.boundary + "\n"))
	xc.Header("Content-Type", "text/plain; charset="+bodyCS)
	if c.Flags.InlineDisposition {
		xc.Header("Content-Disposition", "inline")
	}
	xc.Header("Content-Transfer-Encoding", bodyEnc.String())
	xc.Line()
	xc.Checkf(message.WriteEncoded(xc, body, bodyEnc), "writing body part")

	for _, a := range c.Attachments {
		c.writeAttachment(xc, a)
	}

	xc.Write([]byte("\n--" + c.boundary + "--\n"))
}

// writeAttachment writes one attachment part. An unopenable source file
// skips the attachment with a warning, the write continues.
func (c *Compose) writeAttachment(xc *message.Composer, a *AttachInfo) {
	f, err := os.Open(a.File)
	if err != nil {
		xlog.Warnx("opening attachment, skipping", err, mlog.Field("file", a.File))
		metricAttachmentSkipped.Inc()
		return
	}
	defer func() {
		xlog.Check(f.Close(), "closing attachment file")
	}()

	isMessage := strings.HasPrefix(a.ContentType, "message/")
	enc := a.Encoding
	if isMessage {
		// Message parts go out verbatim, never base64 or QP wrapped.
		enc = message.Enc8bit
	} else if c.Flags.ProtectTrailingSpace {
		switch enc {
		case message.Enc7bit:
			enc = message.EncQuotedPrintable
		case message.Enc8bit:
			enc = message.EncBase64
		}
	}

	xc.Write([]byte("\n--" + c.boundary + "\n"))
	if isMessage {
		xc.Header("Content-Type", a.ContentType)
		xc.Header("Content-Disposition", "inline")
	} else if c.Prefs.FilenameEncoding == "plain" {
		name, err := charset.Encode(a.Name, c.outgoingCharset(""))
		if err != nil {
			c.warnEncode(err, "Content-Type")
			name = a.Name
		}
		xc.Header("Content-Type", a.ContentType+";\n name=\""+name+"\"")
		xc.Header("Content-Disposition", "attachment;\n filename=\""+name+"\"")
	} else {
		xc.Header("Content-Type", mime.FormatMediaType(a.ContentType, map[string]string{"name": a.Name}))
		xc.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	}
	xc.Header("Content-Transfer-Encoding", enc.String())
	xc.Line()

	var src io.Reader = f
	if enc == message.EncBase64 && (isMessage || strings.HasPrefix(a.ContentType, "text/")) {
		// Text gets its line endings canonicalized before encoding, through
		// a private temp file so the source is read only once.
		tf, err := canonicalTempCopy(f)
		if err != nil {
			xlog.Warnx("canonicalizing attachment, skipping", err, mlog.Field("file", a.File))
			metricAttachmentSkipped.Inc()
			return
		}
		defer sylio.CloseRemoveTempFile(xlog, tf, "canonicalized attachment")
		src = tf
	}

	switch enc {
	case message.EncBase64:
		bw := sylio.Base64Writer(xc)
		_, err := io.Copy(bw, src)
		xc.Checkf(err, "writing attachment")
		xc.Checkf(bw.Close(), "writing attachment")
	case message.EncQuotedPrintable:
		qw := quotedprintable.NewWriter(xc)
		_, err := io.Copy(qw, src)
		xc.Checkf(err, "writing attachment")
		xc.Checkf(qw.Close(), "writing attachment")
	default:
		_, err := io.Copy(xc, src)
		xc.Checkf(err, "writing attachment")
	}
}

// canonicalTempCopy writes r to a new temp file with CRLF line endings and
// returns the file positioned at the start.
func canonicalTempCopy(r io.Reader) (*os.File, error) {
	tf, err := sylio.CreateTempFile(os.TempDir(), "sylpheed-attach")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(message.NewWriter(tf), r); err != nil {
		sylio.CloseRemoveTempFile(xlog, tf, "canonicalized attachment")
		return nil, err
	}
	if _, err := tf.Seek(0, 0); err != nil {
		sylio.CloseRemoveTempFile(xlog, tf, "canonicalized attachment")
		return nil, err
	}
	return tf, nil
}
