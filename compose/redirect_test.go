package compose

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const redirectSource = "Return-Path: <bounce@lists.example>\r\n" +
	"Received: from mx.example (mx.example [10.0.0.1])\r\n" +
	"\tby mail.example; Mon, 1 Apr 2024 10:00:00 +0000\r\n" +
	"From: orig@z.org\r\n" +
	"To: a@x.com\r\n" +
	"Subject: the original\r\n" +
	"\tsubject\r\n" +
	"Message-Id: <orig@z.org>\r\n" +
	"X-UIDL: 00042\r\n" +
	"\r\n" +
	"body line1\r\nbare lf line\nlast\r\n"

func TestWriteRedirect(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "orig.eml")
	err := os.WriteFile(src, []byte(redirectSource), 0o600)
	tcheck(t, err, "write source message")

	c := New(testAccount(), testPrefs(), ModeRedirect{Target: &MsgInfo{Path: src}})
	c.To = "new@dest.org"
	p := filepath.Join(dir, "out.txt")
	err = c.WriteRedirect(p)
	tcheck(t, err, "write redirect")
	buf, err := os.ReadFile(p)
	tcheck(t, err, "read output")
	got := string(buf)

	for _, dropped := range []string{"Return-Path", "Received", "X-UIDL"} {
		if strings.Contains(got, dropped) {
			t.Fatalf("dropped header %s still present:\n%s", dropped, got)
		}
	}
	for _, want := range []string{
		"From: orig@z.org\r\n",
		"Message-Id: <orig@z.org>\r\n",
		"Resent-From: a@x.com\r\n",
		"Resent-To: new@dest.org\r\n",
		"Subject: the original subject\r\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if !strings.Contains(got, "Resent-Date: ") {
		t.Fatalf("missing resent-date:\n%s", got)
	}
	// The body passes through byte-for-byte, bare LF included.
	if !strings.HasSuffix(got, "\r\n\r\nbody line1\r\nbare lf line\nlast\r\n") {
		t.Fatalf("body not copied verbatim:\n%q", got)
	}
	tcompare(t, c.ToList, []string{"new@dest.org"})
}

func TestWriteRedirectPreconditions(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out.txt")

	c := New(testAccount(), testPrefs(), ModeNew{})
	if err := c.WriteRedirect(p); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("got err %v, expected ErrPrecondition for wrong mode", err)
	}

	c = New(testAccount(), testPrefs(), ModeRedirect{})
	if err := c.WriteRedirect(p); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("got err %v, expected ErrPrecondition for missing target", err)
	}

	src := filepath.Join(dir, "orig.eml")
	err := os.WriteFile(src, []byte(redirectSource), 0o600)
	tcheck(t, err, "write source message")
	c = New(testAccount(), testPrefs(), ModeRedirect{Target: &MsgInfo{Path: src}})
	if err := c.WriteRedirect(p); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("got err %v, expected ErrNoRecipients", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("partial file left behind after failed redirect")
	}
}
