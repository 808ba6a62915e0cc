package compose

import (
	"encoding/base64"
	"errors"
	"mime"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/jan0sch/sylpheed/config"
	"github.com/jan0sch/sylpheed/message"
)

func tcheck(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %s", msg, err)
	}
}

func tcompare(t *testing.T, got, expect any) {
	t.Helper()
	if !reflect.DeepEqual(got, expect) {
		t.Fatalf("got:\n%v\nexpected:\n%v", got, expect)
	}
}

func testAccount() *config.Account {
	return &config.Account{ID: 1, Address: "a@x.com"}
}

func testPrefs() config.Prefs {
	return config.Prefs{
		OutgoingCharset:    "ISO-8859-1",
		FilenameEncoding:   "rfc2231",
		SignatureSeparator: "-- ",
	}
}

func writeMsg(t *testing.T, c *Compose) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "out.txt")
	err := c.WriteToFile(p)
	tcheck(t, err, "write to file")
	buf, err := os.ReadFile(p)
	tcheck(t, err, "read output")
	return string(buf)
}

func TestWriteSimple(t *testing.T) {
	c := New(testAccount(), testPrefs(), ModeNew{})
	c.SetHeaders("b@y.com", "", "", "", "Hi")
	c.SetBody("hello")
	got := writeMsg(t, c)

	for _, want := range []string{
		"From: a@x.com\r\n",
		"To: b@y.com\r\n",
		"Subject: Hi\r\n",
		"Mime-Version: 1.0\r\n",
		"Content-Type: text/plain; charset=US-ASCII\r\n",
		"Content-Transfer-Encoding: 7bit\r\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if !strings.HasSuffix(got, "\r\nhello") {
		t.Fatalf("body not at end of output:\n%s", got)
	}
	if strings.Contains(got, "boundary") || strings.Contains(got, "Date:") {
		t.Fatalf("unexpected headers in output:\n%s", got)
	}
	tcompare(t, c.ToList, []string{"b@y.com"})
}

func TestWriteNonASCIIBody(t *testing.T) {
	c := New(testAccount(), testPrefs(), ModeNew{})
	c.SetHeaders("b@y.com", "", "", "", "Hi")
	c.SetBody("caf\u00e9\n")
	got := writeMsg(t, c)

	if !strings.Contains(got, "Content-Type: text/plain; charset=ISO-8859-1\r\n") {
		t.Fatalf("missing charset-labeled content-type:\n%s", got)
	}
	if !strings.Contains(got, "Content-Transfer-Encoding: 8bit\r\n") {
		t.Fatalf("missing 8bit transfer encoding:\n%s", got)
	}
	if !strings.Contains(got, "caf\xe9\r\n") {
		t.Fatalf("body not in ISO-8859-1:\n%q", got)
	}
}

func TestWriteForcedEncoding(t *testing.T) {
	prefs := testPrefs()
	prefs.EncodingMethod = "base64"
	c := New(testAccount(), prefs, ModeNew{})
	c.SetHeaders("b@y.com", "", "", "", "Hi")
	c.SetBody("caf\u00e9\n")
	got := writeMsg(t, c)

	if !strings.Contains(got, "Content-Transfer-Encoding: base64\r\n") {
		t.Fatalf("missing base64 transfer encoding:\n%s", got)
	}
	_, body, ok := strings.Cut(got, "\r\n\r\n")
	if !ok {
		t.Fatalf("no body:\n%s", got)
	}
	dec, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body, "\r\n", ""))
	tcheck(t, err, "decode body")
	tcompare(t, string(dec), "caf\xe9\n")
}

func TestWriteASCIIOverridesCharset(t *testing.T) {
	// A pure-ASCII body is always US-ASCII 7bit, the configured charset
	// does not apply.
	prefs := testPrefs()
	prefs.OutgoingCharset = "KOI8-R"
	c := New(testAccount(), prefs, ModeNew{})
	c.SetHeaders("b@y.com", "", "", "", "Hi")
	c.SetBody("plain ascii\n")
	got := writeMsg(t, c)

	if !strings.Contains(got, "charset=US-ASCII") || !strings.Contains(got, "Content-Transfer-Encoding: 7bit\r\n") {
		t.Fatalf("ascii body not 7bit/us-ascii:\n%s", got)
	}
}

func TestWriteNoRecipients(t *testing.T) {
	c := New(testAccount(), testPrefs(), ModeNew{})
	c.SetBody("hello")
	p := filepath.Join(t.TempDir(), "out.txt")
	err := c.WriteToFile(p)
	if !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("got err %v, expected ErrNoRecipients", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("partial file left behind after failed write")
	}
}

func TestWriteDraft(t *testing.T) {
	c := New(testAccount(), testPrefs(), ModeNew{})
	c.Flags.Draft = true
	c.SetBody("draft body\n")
	got := writeMsg(t, c)
	if !strings.Contains(got, "X-Sylpheed-Account-Id: 1\r\n") {
		t.Fatalf("draft marker header missing:\n%s", got)
	}
}

func TestWriteHeadersEncoded(t *testing.T) {
	acc := testAccount()
	acc.Name = "J\u00f6rg"
	acc.Organization = "Caf\u00e9 GmbH"
	c := New(acc, testPrefs(), ModeNew{})
	c.SetHeaders("Alice <b@y.com>", "", "", "", "caf\u00e9 plans")
	c.SetBody("hello")
	got := writeMsg(t, c)

	for _, want := range []string{
		"From: =?ISO-8859-1?q?J=F6rg?= <a@x.com>\r\n",
		"Subject: =?ISO-8859-1?q?caf=E9_plans?=\r\n",
		"Organization: =?ISO-8859-1?q?Caf=E9_GmbH?=\r\n",
		"To: Alice <b@y.com>\r\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestWriteFromNameComma(t *testing.T) {
	// A display name with a comma is one quoted unit, not two mailboxes.
	acc := testAccount()
	acc.Name = "Doe, John"
	c := New(acc, testPrefs(), ModeNew{})
	c.SetHeaders("b@y.com", "", "", "", "Hi")
	c.SetBody("hello")
	got := writeMsg(t, c)

	if !strings.Contains(got, "From: \"Doe, John\" <a@x.com>\r\n") {
		t.Fatalf("from display name not quoted:\n%s", got)
	}
}

func TestWriteBodyCharsetFallback(t *testing.T) {
	// A body the outgoing charset cannot represent goes out untranslated in
	// the internal charset, labeled as such.
	c := New(testAccount(), testPrefs(), ModeNew{})
	c.SetHeaders("b@y.com", "", "", "", "Hi")
	c.SetBody("Привет\n")
	got := writeMsg(t, c)

	if !strings.Contains(got, "Content-Type: text/plain; charset=UTF-8\r\n") {
		t.Fatalf("degraded body not labeled with internal charset:\n%s", got)
	}
	if !strings.Contains(got, "Content-Transfer-Encoding: base64\r\n") {
		t.Fatalf("missing base64 transfer encoding:\n%s", got)
	}
	_, body, ok := strings.Cut(got, "\r\n\r\n")
	if !ok {
		t.Fatalf("no body:\n%s", got)
	}
	dec, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body, "\r\n", ""))
	tcheck(t, err, "decode body")
	tcompare(t, string(dec), "Привет\n")
}

func TestWriteCustomHeaders(t *testing.T) {
	acc := testAccount()
	acc.SetCustomHeaders = true
	acc.CustomHeaders = []config.CustomHeader{
		{Name: "X-Mailer", Value: "sylpheed"},
		{Name: "Message-Id", Value: "<fake@id>"}, // Reserved, must be dropped.
	}
	c := New(acc, testPrefs(), ModeNew{})
	c.SetHeaders("b@y.com", "", "", "", "Hi")
	c.SetBody("hello")
	got := writeMsg(t, c)

	if !strings.Contains(got, "X-Mailer: sylpheed\r\n") {
		t.Fatalf("custom header missing:\n%s", got)
	}
	if strings.Contains(got, "fake@id") {
		t.Fatalf("reserved custom header not dropped:\n%s", got)
	}
}

func TestWriteThreading(t *testing.T) {
	c := New(testAccount(), testPrefs(), ModeNew{})
	c.SetHeaders("b@y.com", "", "", "", "Re: Hi")
	c.SetBody("hello")
	c.InReplyTo = "parent@y.com"
	c.References = "<root@y.com>\n\t<parent@y.com>"
	got := writeMsg(t, c)

	if !strings.Contains(got, "In-Reply-To: <parent@y.com>\r\n") {
		t.Fatalf("missing in-reply-to:\n%s", got)
	}
	if !strings.Contains(got, "References: <root@y.com>\r\n\t<parent@y.com>\r\n") {
		t.Fatalf("missing folded references:\n%s", got)
	}
}

func TestWriteNewsgroups(t *testing.T) {
	acc := testAccount()
	acc.NNTPServer = "news.example.org"
	c := New(acc, testPrefs(), ModeNew{})
	c.SetNewsHeaders(" comp.lang.misc , alt.test ", "comp.lang.misc")
	c.SetBody("posting\n")
	got := writeMsg(t, c)

	if !strings.Contains(got, "Newsgroups: comp.lang.misc,alt.test\r\n") {
		t.Fatalf("missing newsgroups:\n%s", got)
	}
	if !strings.Contains(got, "Followup-To: comp.lang.misc\r\n") {
		t.Fatalf("missing followup-to:\n%s", got)
	}
	tcompare(t, c.NewsgroupList, []string{"comp.lang.misc", "alt.test"})
}

var boundaryRe = regexp.MustCompile(`boundary="([^"]+)"`)

func TestWriteAttachments(t *testing.T) {
	dir := t.TempDir()
	af := filepath.Join(dir, "data.txt")
	err := os.WriteFile(af, []byte("attached text\n"), 0o600)
	tcheck(t, err, "write attachment file")

	c := New(testAccount(), testPrefs(), ModeNew{})
	c.Flags.MIMEPrologText = true
	c.SetHeaders("b@y.com", "", "", "", "With attachment")
	c.SetBody("see attachment\n")
	a, err := AttachFile(af, "text/plain", "")
	tcheck(t, err, "attach file")
	tcompare(t, a.Encoding, message.Enc7bit)
	c.SetAttachments(a)

	got := writeMsg(t, c)

	m := boundaryRe.FindStringSubmatch(got)
	if m == nil {
		t.Fatalf("no boundary in content-type:\n%s", got)
	}
	boundary := m[1]
	if !strings.Contains(got, "Content-Type: multipart/mixed;\r\n boundary=\""+boundary+"\"\r\n") {
		t.Fatalf("bad multipart content-type:\n%s", got)
	}
	if !strings.Contains(got, "This is a multi-part message in MIME format.\r\n") {
		t.Fatalf("missing prolog notice:\n%s", got)
	}
	if n := strings.Count(got, "\r\n--"+boundary+"\r\n"); n != 2 {
		t.Fatalf("got %d part delimiters, expected 2:\n%s", n, got)
	}
	if !strings.HasSuffix(got, "\r\n--"+boundary+"--\r\n") {
		t.Fatalf("missing closing boundary:\n%s", got)
	}
	if !strings.Contains(got, "name=data.txt") || !strings.Contains(got, "filename=data.txt") {
		t.Fatalf("attachment filename missing:\n%s", got)
	}
	if !strings.Contains(got, "attached text\r\n") {
		t.Fatalf("attachment body missing:\n%s", got)
	}
}

func TestWriteAttachmentBase64(t *testing.T) {
	dir := t.TempDir()
	af := filepath.Join(dir, "blob.bin")
	data := []byte{0, 1, 2, 0xff, 0xfe, '\n', 'x'}
	err := os.WriteFile(af, data, 0o600)
	tcheck(t, err, "write attachment file")

	c := New(testAccount(), testPrefs(), ModeNew{})
	c.SetHeaders("b@y.com", "", "", "", "Blob")
	c.SetBody("see attachment\n")
	a, err := AttachFile(af, "application/octet-stream", "")
	tcheck(t, err, "attach file")
	tcompare(t, a.Encoding, message.EncBase64)
	c.SetAttachments(a)

	got := writeMsg(t, c)
	boundary := boundaryRe.FindStringSubmatch(got)[1]

	parts := strings.Split(got, "\r\n--"+boundary)
	// Preamble, body part, attachment part, closing.
	if len(parts) != 4 {
		t.Fatalf("got %d boundary-split chunks, expected 4:\n%s", len(parts), got)
	}
	attpart := parts[2]
	_, b64, ok := strings.Cut(attpart, "\r\n\r\n")
	if !ok {
		t.Fatalf("attachment part has no body:\n%s", attpart)
	}
	dec, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(b64, "\r\n", ""))
	tcheck(t, err, "decode attachment")
	// Binary data is not canonicalized, it round-trips exactly.
	tcompare(t, dec, data)
}

func TestWriteAttachmentMessage(t *testing.T) {
	dir := t.TempDir()
	af := filepath.Join(dir, "orig.eml")
	err := os.WriteFile(af, []byte("From: c@z.org\r\n\r\nforwarded body\r\n"), 0o600)
	tcheck(t, err, "write attachment file")

	c := New(testAccount(), testPrefs(), ModeNew{})
	c.Flags.ProtectTrailingSpace = true
	c.SetHeaders("b@y.com", "", "", "", "Fwd")
	c.SetBody("see attachment\n")
	a, err := AttachFile(af, "message/rfc822", "")
	tcheck(t, err, "attach file")
	c.SetAttachments(a)

	got := writeMsg(t, c)
	boundary := boundaryRe.FindStringSubmatch(got)[1]
	parts := strings.Split(got, "\r\n--"+boundary)
	attpart := parts[2]

	// Message parts stay 8bit inline even with trailing-space protection.
	if !strings.Contains(attpart, "Content-Type: message/rfc822\r\n") ||
		!strings.Contains(attpart, "Content-Disposition: inline\r\n") ||
		!strings.Contains(attpart, "Content-Transfer-Encoding: 8bit\r\n") {
		t.Fatalf("bad message part headers:\n%s", attpart)
	}
	if !strings.Contains(attpart, "forwarded body") {
		t.Fatalf("message part body missing:\n%s", attpart)
	}
}

func TestWriteAttachmentProtectTrailingSpace(t *testing.T) {
	dir := t.TempDir()
	af := filepath.Join(dir, "notes.txt")
	err := os.WriteFile(af, []byte("line with trailing space \nmore\n"), 0o600)
	tcheck(t, err, "write attachment file")

	c := New(testAccount(), testPrefs(), ModeNew{})
	c.Flags.ProtectTrailingSpace = true
	c.SetHeaders("b@y.com", "", "", "", "Notes")
	c.SetBody("see attachment\n")
	a, err := AttachFile(af, "text/plain", "")
	tcheck(t, err, "attach file")
	tcompare(t, a.Encoding, message.Enc7bit)
	c.SetAttachments(a)

	got := writeMsg(t, c)
	if !strings.Contains(got, "Content-Transfer-Encoding: quoted-printable\r\n") {
		t.Fatalf("7bit attachment not upgraded to quoted-printable:\n%s", got)
	}
}

func TestWriteAttachmentMissingFile(t *testing.T) {
	c := New(testAccount(), testPrefs(), ModeNew{})
	c.SetHeaders("b@y.com", "", "", "", "Hi")
	c.SetBody("see attachment\n")
	c.SetAttachments(&AttachInfo{File: filepath.Join(t.TempDir(), "absent"), ContentType: "text/plain", Encoding: message.Enc7bit, Name: "absent"})

	// The write succeeds, the attachment is skipped.
	got := writeMsg(t, c)
	boundary := boundaryRe.FindStringSubmatch(got)[1]
	if n := strings.Count(got, "\r\n--"+boundary+"\r\n"); n != 1 {
		t.Fatalf("got %d part delimiters, expected only the body part:\n%s", n, got)
	}
}

func TestWriteRFC2231Filename(t *testing.T) {
	dir := t.TempDir()
	af := filepath.Join(dir, "r\u00e9sum\u00e9.txt")
	err := os.WriteFile(af, []byte("text\n"), 0o600)
	tcheck(t, err, "write attachment file")

	c := New(testAccount(), testPrefs(), ModeNew{})
	c.SetHeaders("b@y.com", "", "", "", "CV")
	c.SetBody("see attachment\n")
	a, err := AttachFile(af, "text/plain", "")
	tcheck(t, err, "attach file")
	c.SetAttachments(a)

	got := writeMsg(t, c)
	want := mime.FormatMediaType("attachment", map[string]string{"filename": "r\u00e9sum\u00e9.txt"})
	if !strings.Contains(got, "Content-Disposition: "+want+"\r\n") {
		t.Fatalf("missing rfc2231 filename %q:\n%s", want, got)
	}
}

func TestWritePlainFilename(t *testing.T) {
	dir := t.TempDir()
	af := filepath.Join(dir, "data.txt")
	err := os.WriteFile(af, []byte("text\n"), 0o600)
	tcheck(t, err, "write attachment file")

	prefs := testPrefs()
	prefs.FilenameEncoding = "plain"
	c := New(testAccount(), prefs, ModeNew{})
	c.SetHeaders("b@y.com", "", "", "", "Data")
	c.SetBody("see attachment\n")
	a, err := AttachFile(af, "text/plain", "")
	tcheck(t, err, "attach file")
	c.SetAttachments(a)

	got := writeMsg(t, c)
	if !strings.Contains(got, "Content-Type: text/plain;\r\n name=\"data.txt\"\r\n") ||
		!strings.Contains(got, "Content-Disposition: attachment;\r\n filename=\"data.txt\"\r\n") {
		t.Fatalf("missing plain quoted filename:\n%s", got)
	}
}

func TestHooks(t *testing.T) {
	c := New(testAccount(), testPrefs(), ModeNew{})
	c.SetHeaders("b@y.com", "", "", "", "Hi")
	c.SetBody("hello")
	p := filepath.Join(t.TempDir(), "out.txt")

	boom := errors.New("boom")
	c.PreProcess = func() error { return boom }
	err := c.WriteToFile(p)
	if !errors.Is(err, boom) {
		t.Fatalf("got err %v, expected pre-process failure", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("file created despite failing pre-process hook")
	}

	c.PreProcess = nil
	var hookPath string
	c.PostProcess = func(path string) error { hookPath = path; return boom }
	err = c.WriteToFile(p)
	if !errors.Is(err, boom) {
		t.Fatalf("got err %v, expected post-process failure", err)
	}
	tcompare(t, hookPath, p)
	// The finished file remains valid, the hook's job is auxiliary.
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("finished file removed after post-process failure: %v", err)
	}
}
