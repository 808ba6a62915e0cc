package config

import (
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"

	"github.com/mjl-/sconf"
)

// Prefs are process-wide composing preferences, threaded explicitly into the
// encoders and writers instead of read from ambient state.
type Prefs struct {
	OutgoingCharset   string            `sconf:"optional" sconf-doc:"Charset for outgoing message bodies and non-ASCII header text, e.g. ISO-8859-1, KOI8-R or UTF-8. us-ascii is promoted to ISO-8859-1. The default is UTF-8. Pure-ASCII text is always labeled US-ASCII with 7bit transfer encoding, regardless of this setting."`
	EncodingMethod    string            `sconf:"optional" sconf-doc:"Forced transfer encoding for non-ASCII bodies: base64, quoted-printable or 8bit. If empty, a charset-appropriate default is chosen."`
	FilenameEncoding  string            `sconf:"optional" sconf-doc:"How attachment file names are embedded in part headers: rfc2231 for the extended parameter syntax, plain for a simple quoted name= and filename= parameter in the source charset. The default is rfc2231."`
	SignatureSeparator string           `sconf:"optional" sconf-doc:"Separator line placed before an appended signature. The default is the conventional dash-dash-space."`
	LogLevel          string            `sconf:"optional" sconf-doc:"Default log level: print, fatal, error, warn, info or debug. The default is info."`
	PackageLogLevels  map[string]string `sconf:"optional" sconf-doc:"Overrides of log level per package, e.g. compose or queue."`
}

// CustomHeader is an extra header added to outgoing messages of an account.
type CustomHeader struct {
	Name  string `sconf-doc:"Header name, without colon. Names of protocol-managed headers such as Date, From, To, Message-Id, Mime-Version or Content-Type are ignored."`
	Value string
}

// Account is one sending identity.
type Account struct {
	ID                 int            `sconf-doc:"Numeric account id, unique across accounts. Recorded in queue files and draft markers."`
	Address            string         `sconf-doc:"Address used in the From header and as the queue envelope sender, e.g. alice@example.org."`
	Name               string         `sconf:"optional" sconf-doc:"Display name for the From header."`
	Organization       string         `sconf:"optional" sconf-doc:"Value for the Organization header. Empty omits the header."`
	SignaturePath      string         `sconf:"optional" sconf-doc:"Path to a signature file appended to composed bodies."`
	SignatureIsCommand bool           `sconf:"optional" sconf-doc:"If set, SignaturePath is a command whose output is the signature."`
	SMTPServer         string         `sconf:"optional" sconf-doc:"SMTP server the delivery session should use for this account, recorded in queue files."`
	NNTPServer         string         `sconf:"optional" sconf-doc:"NNTP server for posting, recorded in queue files when newsgroups are set."`
	GenerateMessageID  bool           `sconf:"optional" sconf-doc:"Generate a Message-Id header for outgoing messages."`
	AddDateHeader      bool           `sconf:"optional" sconf-doc:"Add a Date header with the composing time."`
	SetCustomHeaders   bool           `sconf:"optional" sconf-doc:"Add the configured custom headers to outgoing messages."`
	CustomHeaders      []CustomHeader `sconf:"optional"`
}

// Config is the parsed sylpheed.conf.
type Config struct {
	Prefs    Prefs              `sconf:"optional" sconf-doc:"Composing preferences."`
	Accounts map[string]Account `sconf-doc:"Accounts, keyed by a short name, e.g. work or lists."`
}

// Defaults for optional Prefs fields, applied by Load.
const (
	DefaultOutgoingCharset    = "UTF-8"
	DefaultFilenameEncoding   = "rfc2231"
	DefaultSignatureSeparator = "-- "
)

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	var c Config
	if err := sconf.Parse(f, &c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := c.check(); err != nil {
		return nil, fmt.Errorf("checking %s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) check() error {
	p := &c.Prefs
	if p.OutgoingCharset == "" {
		p.OutgoingCharset = DefaultOutgoingCharset
	}
	switch p.EncodingMethod {
	case "", "base64", "quoted-printable", "8bit":
	default:
		return fmt.Errorf("unknown encoding method %q", p.EncodingMethod)
	}
	switch p.FilenameEncoding {
	case "":
		p.FilenameEncoding = DefaultFilenameEncoding
	case "rfc2231", "plain":
	default:
		return fmt.Errorf("unknown filename encoding %q", p.FilenameEncoding)
	}
	if p.SignatureSeparator == "" {
		p.SignatureSeparator = DefaultSignatureSeparator
	}

	seen := map[int]string{}
	for name, a := range c.Accounts {
		if a.ID <= 0 {
			return fmt.Errorf("account %s: id must be positive", name)
		}
		if prev, ok := seen[a.ID]; ok {
			return fmt.Errorf("account %s: id %d already used by account %s", name, a.ID, prev)
		}
		seen[a.ID] = name
		if a.Address == "" {
			return fmt.Errorf("account %s: missing address", name)
		}
		if _, err := mail.ParseAddress(a.Address); err != nil {
			return fmt.Errorf("account %s: bad address %q: %v", name, a.Address, err)
		}
		for _, h := range a.CustomHeaders {
			if h.Name == "" || strings.ContainsAny(h.Name, ": \t") {
				return fmt.Errorf("account %s: bad custom header name %q", name, h.Name)
			}
		}
	}
	return nil
}

// Account returns the account for a name, or the only account when name is
// empty and exactly one is configured.
func (c *Config) Account(name string) (Account, error) {
	if name == "" && len(c.Accounts) == 1 {
		for _, a := range c.Accounts {
			return a, nil
		}
	}
	a, ok := c.Accounts[name]
	if !ok {
		return Account{}, fmt.Errorf("no account %q", name)
	}
	return a, nil
}

// AccountByID returns the account with the given id, as recorded in queue
// files and draft markers.
func (c *Config) AccountByID(id int) (Account, error) {
	for _, a := range c.Accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return Account{}, fmt.Errorf("no account with id %d", id)
}

// Describe writes an annotated example config file.
func Describe(w io.Writer) error {
	c := Config{
		Prefs: Prefs{
			OutgoingCharset:    DefaultOutgoingCharset,
			FilenameEncoding:   DefaultFilenameEncoding,
			SignatureSeparator: DefaultSignatureSeparator,
			LogLevel:           "info",
		},
		Accounts: map[string]Account{
			"x": {
				ID:                1,
				Address:           "alice@example.org",
				Name:              "Alice",
				SMTPServer:        "smtp.example.org",
				GenerateMessageID: true,
				AddDateHeader:     true,
			},
		},
	}
	return sconf.Describe(w, &c)
}
