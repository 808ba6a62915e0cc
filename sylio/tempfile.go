package sylio

import (
	"os"

	"github.com/jan0sch/sylpheed/mlog"
)

var xlog = mlog.New("sylio")

// CreateTempFile creates a uniquely named file in dir for a message being
// composed or staged, with restrictive permissions. The pattern is used as by
// os.CreateTemp. Caller is responsible for removing the file when done.
func CreateTempFile(dir, pattern string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0770); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	if err := f.Chmod(0600); err != nil {
		xerr := f.Close()
		xlog.Check(xerr, "closing temp file after chmod error")
		xerr = os.Remove(f.Name())
		xlog.Check(xerr, "removing temp file after chmod error")
		return nil, err
	}
	return f, nil
}

// CloseRemoveTempFile closes and removes a temporary file. Any errors are
// logged.
func CloseRemoveTempFile(log *mlog.Log, f *os.File, descr string) {
	name := f.Name()
	err := f.Close()
	log.Check(err, "closing temporary file", mlog.Field("kind", descr))
	err = os.Remove(name)
	log.Check(err, "removing temporary file", mlog.Field("kind", descr))
}
