// Package queue implements the deferred-send queue: a directory of staged
// message files, each a delivery preamble followed by the raw message, with
// a database index. A delivery session consumes the queue, this package only
// stores and lists.
package queue

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mjl-/bstore"

	"github.com/jan0sch/sylpheed/mlog"
	"github.com/jan0sch/sylpheed/sylio"
)

var xlog = mlog.New("queue")

// Msg is a message awaiting delivery. The envelope fields come from the
// staged file's preamble, parsed at insertion time.
type Msg struct {
	ID         int64
	Queued     time.Time `bstore:"default now"`
	MessageID  string    `bstore:"index"`
	Sender     string    `bstore:"nonzero"`
	Recipients []string
	SMTPServer string
	NNTPServer string
	AccountID  int
	Size       int64
}

// Queue is a queue folder: an indexed directory of staged message files,
// named by their message number.
type Queue struct {
	dir string
	db  *bstore.DB
}

const dbName = "index.db"

// DBTypes are the types stored in the queue database.
var DBTypes = []any{Msg{}}

// Open opens or creates the queue at dir.
func Open(ctx context.Context, dir string) (*Queue, error) {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return nil, fmt.Errorf("creating queue directory: %w", err)
	}
	db, err := bstore.Open(ctx, filepath.Join(dir, dbName), &bstore.Options{Timeout: 5 * time.Second, Perm: 0o660}, DBTypes...)
	if err != nil {
		return nil, fmt.Errorf("opening queue database: %w", err)
	}
	return &Queue{dir: dir, db: db}, nil
}

// Close closes the queue database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// MsgPath returns the path of a queued message file.
func (q *Queue) MsgPath(id int64) string {
	return filepath.Join(q.dir, strconv.FormatInt(id, 10))
}

// InsertMessage stores the staged file at path as a new queued message and
// returns its message number. The preamble is parsed for the delivery
// envelope, the file is copied in full, the source is not consumed. This is
// the folder collaborator of the composer.
func (q *Queue) InsertMessage(path string) (id int64, rerr error) {
	defer func() {
		metricInsert.WithLabelValues(resultLabel(rerr)).Inc()
	}()

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening staged file: %w", err)
	}
	defer func() {
		xlog.Check(f.Close(), "closing staged file")
	}()

	fi, err := ParseFileinfo(bufio.NewReader(f))
	if err != nil {
		return 0, err
	}
	st, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat staged file: %w", err)
	}

	m := Msg{
		MessageID:  fi.MessageID,
		Sender:     fi.Sender,
		Recipients: fi.Recipients,
		SMTPServer: fi.SMTPServer,
		NNTPServer: fi.NNTPServer,
		AccountID:  fi.AccountID,
		Size:       st.Size(),
	}
	err = q.db.Write(context.Background(), func(tx *bstore.Tx) error {
		if err := tx.Insert(&m); err != nil {
			return fmt.Errorf("inserting queue record: %w", err)
		}
		p := q.MsgPath(m.ID)
		dst, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o660)
		if err != nil {
			return fmt.Errorf("creating queued message file: %w", err)
		}
		defer func() {
			if dst != nil {
				xlog.Check(dst.Close(), "closing partial queued message file")
				if err := os.Remove(p); err != nil {
					xlog.Errorx("removing partial queued message file", err, mlog.Field("path", p))
				}
			}
		}()
		if _, err := f.Seek(0, 0); err != nil {
			return fmt.Errorf("rewinding staged file: %w", err)
		}
		if _, err := io.Copy(dst, f); err != nil {
			return fmt.Errorf("copying staged file: %w", err)
		}
		if err := dst.Sync(); err != nil {
			return fmt.Errorf("syncing queued message file: %w", err)
		}
		cdst := dst
		dst = nil
		if err := cdst.Close(); err != nil {
			if rmerr := os.Remove(p); rmerr != nil {
				xlog.Errorx("removing queued message file after failed close", rmerr, mlog.Field("path", p))
			}
			return fmt.Errorf("closing queued message file: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := sylio.SyncDir(q.dir); err != nil {
		xlog.Errorx("syncing queue directory", err, mlog.Field("dir", q.dir))
	}
	return m.ID, nil
}

// RemoveMessage removes a queued message, record first, then the file.
func (q *Queue) RemoveMessage(num int64) (rerr error) {
	defer func() {
		metricRemove.WithLabelValues(resultLabel(rerr)).Inc()
	}()

	err := q.db.Write(context.Background(), func(tx *bstore.Tx) error {
		return tx.Delete(&Msg{ID: num})
	})
	if err != nil {
		return fmt.Errorf("removing queue record %d: %w", num, err)
	}
	p := q.MsgPath(num)
	if err := os.Remove(p); err != nil {
		// The index is authoritative, a stray file only wastes space.
		xlog.Errorx("removing queued message file", err, mlog.Field("path", p))
	}
	return nil
}

// Get returns a queued message record.
func (q *Queue) Get(ctx context.Context, num int64) (Msg, error) {
	m := Msg{ID: num}
	err := q.db.Read(ctx, func(tx *bstore.Tx) error {
		return tx.Get(&m)
	})
	return m, err
}

// List returns all queued messages, oldest first.
func (q *Queue) List(ctx context.Context) ([]Msg, error) {
	return bstore.QueryDB[Msg](ctx, q.db).SortAsc("ID").List()
}

// Count returns the number of queued messages.
func (q *Queue) Count(ctx context.Context) (int, error) {
	return bstore.QueryDB[Msg](ctx, q.db).Count()
}
