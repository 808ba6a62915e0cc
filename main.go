// Command sylpheed composes RFC 822/MIME messages: new messages, replies,
// forwards, redirects of stored messages and re-edits of drafts. Finished
// messages are written to a file in wire format and can be staged into a
// send queue directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/jan0sch/sylpheed/compose"
	"github.com/jan0sch/sylpheed/config"
	"github.com/jan0sch/sylpheed/mlog"
	"github.com/jan0sch/sylpheed/queue"
)

var xlog = mlog.New("main")

var commands []struct {
	cmd string
	fn  func(c *cmd)
}

func init() {
	commands = []struct {
		cmd string
		fn  func(c *cmd)
	}{
		{"compose", cmdCompose},
		{"redirect", cmdRedirect},
		{"queue list", cmdQueueList},
		{"queue add", cmdQueueAdd},
		{"queue dump", cmdQueueDump},
		{"queue remove", cmdQueueRemove},
		{"describeconf", cmdDescribeconf},
		{"version", cmdVersion},
		{"help", cmdHelp},
	}
}

type cmd struct {
	words []string
	fn    func(c *cmd)

	flag     *flag.FlagSet
	flagArgs []string

	// Set by the command while parsing, used for usage output.
	params string
	help   string

	args []string
}

// Parse parses the command flags and returns the remaining arguments.
func (c *cmd) Parse() []string {
	c.flag.Usage = c.Usage
	c.flag.Parse(c.flagArgs)
	c.args = c.flag.Args()
	return c.args
}

func (c *cmd) Usage() {
	name := "sylpheed " + strings.Join(c.words, " ")
	if c.params != "" {
		fmt.Fprintf(os.Stderr, "usage: %s %s\n", name, c.params)
	} else {
		fmt.Fprintf(os.Stderr, "usage: %s\n", name)
	}
	if c.help != "" {
		fmt.Fprintln(os.Stderr, c.help)
	}
	c.flag.SetOutput(os.Stderr)
	c.flag.PrintDefaults()
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: sylpheed [-config sylpheed.conf] [-loglevel level] command ...")
	for _, xc := range commands {
		fmt.Fprintf(os.Stderr, "       sylpheed %s\n", xc.cmd)
	}
	os.Exit(2)
}

var (
	configPath string
	loglevel   string
	loadedConf *config.Config
)

func main() {
	flag.StringVar(&configPath, "config", "sylpheed.conf", "path to configuration file")
	flag.StringVar(&loglevel, "loglevel", "", "log level, overrides the configured level")
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	// Longest matching command wins, so "queue list" beats a hypothetical
	// "queue" command.
	var match *cmd
	for _, xc := range commands {
		words := strings.Split(xc.cmd, " ")
		if len(args) < len(words) {
			continue
		}
		ok := true
		for i, w := range words {
			if args[i] != w {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if match == nil || len(words) > len(match.words) {
			match = &cmd{words: words, fn: xc.fn, flagArgs: args[len(words):]}
		}
	}
	if match == nil {
		usage()
	}
	match.flag = flag.NewFlagSet("sylpheed "+strings.Join(match.words, " "), flag.ExitOnError)
	match.fn(match)
}

// xconfig loads the config file once and applies its log levels.
func xconfig() *config.Config {
	if loadedConf != nil {
		return loadedConf
	}
	c, err := config.Load(configPath)
	if err != nil {
		xlog.Fatalx("loading config", err)
	}
	applyLogConfig(c)
	loadedConf = c
	return c
}

func applyLogConfig(c *config.Config) {
	level := c.Prefs.LogLevel
	if loglevel != "" {
		level = loglevel
	}
	lc := map[string]mlog.Level{"": mlog.LevelInfo}
	if level != "" {
		l, ok := mlog.Levels[level]
		if !ok {
			xlog.Fatal("unknown log level", mlog.Field("level", level))
		}
		lc[""] = l
	}
	for pkg, s := range c.Prefs.PackageLogLevels {
		l, ok := mlog.Levels[s]
		if !ok {
			xlog.Fatal("unknown log level", mlog.Field("level", s), mlog.Field("pkg", pkg))
		}
		lc[pkg] = l
	}
	mlog.SetConfig(lc)
}

func xaccount(c *config.Config, name string) *config.Account {
	a, err := c.Account(name)
	if err != nil {
		xlog.Fatalx("account", err)
	}
	return &a
}

// stringsFlag is a repeatable string flag.
type stringsFlag []string

func (l *stringsFlag) String() string     { return strings.Join(*l, ",") }
func (l *stringsFlag) Set(s string) error { *l = append(*l, s); return nil }

// contentTypeForFile guesses a content-type from the file extension,
// defaulting to application/octet-stream. Parameters added by the mime
// tables are stripped, the charset of the part is decided while writing.
func contentTypeForFile(path string) string {
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		return "application/octet-stream"
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

func cmdCompose(c *cmd) {
	c.params = "[flags] outputfile"
	c.help = `Compose a message and write it to outputfile in wire format.

With -reply, -forward or -reedit the headers and body are prefilled from the
stored source message, flags given on the command line override them.`
	var account, to, cc, bcc, replyTo, subject, newsgroups, followupTo, bodyFile, queueDir string
	var replyPath, forwardPath, reeditPath string
	var replyAll, replyList, forwardAttach, draft, signature bool
	var prolog, inline, protectSpace bool
	var attachments stringsFlag
	c.flag.StringVar(&account, "account", "", "account name, may be empty with a single configured account")
	c.flag.StringVar(&to, "to", "", "To addresses, comma-separated")
	c.flag.StringVar(&cc, "cc", "", "Cc addresses, comma-separated")
	c.flag.StringVar(&bcc, "bcc", "", "Bcc addresses, comma-separated")
	c.flag.StringVar(&replyTo, "replyto", "", "Reply-To address")
	c.flag.StringVar(&subject, "subject", "", "Subject text")
	c.flag.StringVar(&newsgroups, "newsgroups", "", "newsgroups to post to, comma-separated")
	c.flag.StringVar(&followupTo, "followupto", "", "Followup-To newsgroups")
	c.flag.StringVar(&bodyFile, "body", "", "file with UTF-8 body text, - for stdin, empty for an empty body")
	c.flag.Var(&attachments, "attach", "file to attach, can be given multiple times")
	c.flag.StringVar(&replyPath, "reply", "", "path of a stored message to reply to")
	c.flag.BoolVar(&replyAll, "replyall", false, "with -reply, also address the original To and Cc recipients")
	c.flag.BoolVar(&replyList, "replylist", false, "with -reply, address the mailing list posting address")
	c.flag.StringVar(&forwardPath, "forward", "", "path of a stored message to forward")
	c.flag.BoolVar(&forwardAttach, "forwardattach", false, "with -forward, attach the message as message/rfc822 instead of quoting it inline")
	c.flag.StringVar(&reeditPath, "reedit", "", "path of a draft or queued message to continue editing")
	c.flag.BoolVar(&draft, "draft", false, "save as draft, recipients not required")
	c.flag.BoolVar(&signature, "signature", false, "append the account signature to the body")
	c.flag.BoolVar(&prolog, "mimeprolog", false, "write the notice line before the first multipart boundary")
	c.flag.BoolVar(&inline, "inline", false, "mark the main text part with Content-Disposition: inline")
	c.flag.BoolVar(&protectSpace, "protectspace", false, "upgrade attachment transfer encodings so trailing spaces survive transport")
	c.flag.StringVar(&queueDir, "queue", "", "stage the finished message into the send queue at this directory")
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}

	conf := xconfig()
	acc := xaccount(conf, account)

	var mode compose.Mode = compose.ModeNew{}
	switch {
	case replyPath != "":
		mode = compose.ModeReply{Source: &compose.MsgInfo{Path: replyPath}, All: replyAll, ToList: replyList}
	case forwardPath != "":
		mode = compose.ModeForward{Source: &compose.MsgInfo{Path: forwardPath}, AsAttach: forwardAttach}
	case reeditPath != "":
		mode = compose.ModeReedit{Target: &compose.MsgInfo{Path: reeditPath}}
	}

	co := compose.New(acc, conf.Prefs, mode)
	co.Flags.Draft = draft
	co.Flags.MIMEPrologText = prolog
	co.Flags.InlineDisposition = inline
	co.Flags.ProtectTrailingSpace = protectSpace

	var err error
	switch mode.(type) {
	case compose.ModeReply:
		err = co.PrepareReply()
	case compose.ModeForward:
		err = co.PrepareForward()
	case compose.ModeReedit:
		err = co.PrepareReedit()
	}
	if err != nil {
		xlog.Fatalx("preparing from source message", err)
	}

	// Command-line headers override anything prefilled from a source.
	if to != "" {
		co.To = to
	}
	if cc != "" {
		co.Cc = cc
	}
	if bcc != "" {
		co.Bcc = bcc
	}
	if replyTo != "" {
		co.ReplyTo = replyTo
	}
	if subject != "" {
		co.Subject = subject
	}
	if newsgroups != "" {
		co.Newsgroups = newsgroups
	}
	if followupTo != "" {
		co.FollowupTo = followupTo
	}

	if bodyFile != "" {
		var buf []byte
		if bodyFile == "-" {
			buf, err = io.ReadAll(os.Stdin)
		} else {
			buf, err = os.ReadFile(bodyFile)
		}
		if err != nil {
			xlog.Fatalx("reading body", err)
		}
		co.SetBody(string(buf))
	}
	if signature {
		co.AppendSignature()
	}

	for _, path := range attachments {
		a, err := compose.AttachFile(path, contentTypeForFile(path), "")
		if err != nil {
			xlog.Fatalx("attaching file", err, mlog.Field("path", path))
		}
		co.Attachments = append(co.Attachments, a)
	}

	if err := co.WriteToFile(args[0]); err != nil {
		if errors.Is(err, compose.ErrNoRecipients) {
			xlog.Fatal("no recipients, pass -to, -cc, -bcc or -newsgroups, or -draft")
		}
		xlog.Fatalx("writing message", err)
	}

	if queueDir != "" {
		q, err := queue.Open(context.Background(), queueDir)
		if err != nil {
			xlog.Fatalx("opening queue", err)
		}
		defer func() {
			xlog.Check(q.Close(), "closing queue")
		}()
		num, err := co.Queue(q, args[0])
		if err != nil {
			xlog.Fatalx("staging message into queue", err)
		}
		fmt.Printf("queued as message %d\n", num)
	}
}

func cmdRedirect(c *cmd) {
	c.params = "[flags] sourcefile outputfile"
	c.help = `Redirect a stored message to new recipients.

The body and most headers of the source message pass through byte for byte,
Resent headers with the new recipients are added.`
	var account, to, cc, bcc, replyTo, subject string
	c.flag.StringVar(&account, "account", "", "account name, may be empty with a single configured account")
	c.flag.StringVar(&to, "to", "", "Resent-To addresses, comma-separated")
	c.flag.StringVar(&cc, "cc", "", "Resent-Cc addresses, comma-separated")
	c.flag.StringVar(&bcc, "bcc", "", "Bcc addresses, comma-separated")
	c.flag.StringVar(&replyTo, "replyto", "", "Resent-Reply-To address")
	c.flag.StringVar(&subject, "subject", "", "replacement Subject, empty keeps the original")
	args := c.Parse()
	if len(args) != 2 {
		c.Usage()
	}

	conf := xconfig()
	acc := xaccount(conf, account)

	co := compose.New(acc, conf.Prefs, compose.ModeRedirect{Target: &compose.MsgInfo{Path: args[0]}})
	co.SetHeaders(to, cc, bcc, replyTo, subject)
	if err := co.WriteRedirect(args[1]); err != nil {
		if errors.Is(err, compose.ErrNoRecipients) {
			xlog.Fatal("no recipients, pass -to, -cc or -bcc")
		}
		xlog.Fatalx("writing redirected message", err)
	}
}

func xqueue(dir string) *queue.Queue {
	q, err := queue.Open(context.Background(), dir)
	if err != nil {
		xlog.Fatalx("opening queue", err)
	}
	return q
}

func cmdQueueList(c *cmd) {
	c.params = "queuedir"
	c.help = "List the staged messages in the send queue."
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}
	q := xqueue(args[0])
	defer q.Close()

	msgs, err := q.List(context.Background())
	if err != nil {
		xlog.Fatalx("listing queue", err)
	}
	for _, m := range msgs {
		fmt.Printf("%d\t%s\t%s\t%s\t%d\n", m.ID, m.Queued.Format("2006-01-02 15:04:05"), m.Sender, strings.Join(m.Recipients, ","), m.Size)
	}
	if len(msgs) == 0 {
		fmt.Println("queue is empty")
	}
}

func cmdQueueAdd(c *cmd) {
	c.params = "queuedir stagedfile"
	c.help = `Add an already staged file to the send queue.

The file must start with a queue preamble, as written by compose -queue.`
	args := c.Parse()
	if len(args) != 2 {
		c.Usage()
	}
	q := xqueue(args[0])
	defer q.Close()

	id, err := q.InsertMessage(args[1])
	if err != nil {
		xlog.Fatalx("inserting message", err)
	}
	fmt.Printf("queued as message %d\n", id)
}

func cmdQueueDump(c *cmd) {
	c.params = "queuedir id"
	c.help = "Print a staged queue file, preamble included, to stdout."
	args := c.Parse()
	if len(args) != 2 {
		c.Usage()
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		xlog.Fatalx("parsing message id", err)
	}
	q := xqueue(args[0])
	defer q.Close()

	if _, err := q.Get(context.Background(), id); err != nil {
		xlog.Fatalx("looking up message", err)
	}
	f, err := os.Open(q.MsgPath(id))
	if err != nil {
		xlog.Fatalx("opening message file", err)
	}
	defer f.Close()
	if _, err := io.Copy(os.Stdout, f); err != nil {
		xlog.Fatalx("copying message", err)
	}
}

func cmdQueueRemove(c *cmd) {
	c.params = "queuedir id"
	c.help = "Remove a staged message from the send queue."
	args := c.Parse()
	if len(args) != 2 {
		c.Usage()
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		xlog.Fatalx("parsing message id", err)
	}
	q := xqueue(args[0])
	defer q.Close()

	if err := q.RemoveMessage(id); err != nil {
		xlog.Fatalx("removing message", err)
	}
}

func cmdDescribeconf(c *cmd) {
	c.params = ""
	c.help = "Print an annotated example configuration file to stdout."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	if err := config.Describe(os.Stdout); err != nil {
		xlog.Fatalx("describing config", err)
	}
}

func cmdVersion(c *cmd) {
	c.help = "Print the version of this sylpheed build."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	version := "(devel)"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		version = bi.Main.Version
	}
	fmt.Println(version)
}

func cmdHelp(c *cmd) {
	c.params = "[command ...]"
	c.help = "Print usage of a command, or the command list."
	args := c.Parse()
	if len(args) == 0 {
		usage()
	}
	for _, xc := range commands {
		if strings.Join(args, " ") != xc.cmd {
			continue
		}
		hc := &cmd{words: strings.Split(xc.cmd, " "), fn: xc.fn, flagArgs: []string{"-help"}}
		hc.flag = flag.NewFlagSet("sylpheed "+xc.cmd, flag.ExitOnError)
		xc.fn(hc)
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n", strings.Join(args, " "))
	usage()
}
