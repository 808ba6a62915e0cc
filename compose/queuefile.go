package compose

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jan0sch/sylpheed/sylio"
)

// Queue stages the composed message file for deferred delivery: a fixed
// key-value preamble carrying the transport envelope, followed by the raw
// message bytes, written to a uniquely named staging file that is handed to
// the folder collaborator. The staging file is removed on every exit path,
// the folder keeps its own copy. Returns the inserted message number.
//
// The preamble schema is persisted state consumed by the delivery session,
// changing it is a compatibility break.
func (c *Compose) Queue(folder Folder, msgPath string) (num int64, rerr error) {
	defer func() {
		metricWrites.WithLabelValues("queuefile", resultLabel(rerr)).Inc()
	}()

	if c.Account == nil {
		return 0, fmt.Errorf("%w: queueing requires an account", ErrPrecondition)
	}
	if len(c.ToList) == 0 && len(c.NewsgroupList) == 0 {
		return 0, ErrNoRecipients
	}

	mf, err := os.Open(msgPath)
	if err != nil {
		return 0, fmt.Errorf("opening composed message: %w", err)
	}
	defer func() {
		xlog.Check(mf.Close(), "closing composed message")
	}()

	tf, err := sylio.CreateTempFile(os.TempDir(), "sylpheed-queue")
	if err != nil {
		return 0, err
	}
	defer sylio.CloseRemoveTempFile(xlog, tf, "queue staging file")

	bw := bufio.NewWriter(tf)
	writePreamble(bw, c)
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("writing queue preamble: %w", err)
	}
	if _, err := io.Copy(tf, mf); err != nil {
		return 0, fmt.Errorf("copying message into queue file: %w", err)
	}
	if err := tf.Sync(); err != nil {
		return 0, fmt.Errorf("syncing queue file: %w", err)
	}

	num, err = folder.InsertMessage(tf.Name())
	if err != nil {
		return 0, fmt.Errorf("inserting queue file: %w", err)
	}
	return num, nil
}

func writePreamble(w *bufio.Writer, c *Compose) {
	line := func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
	}
	mid := ""
	if c.MessageID != "" {
		mid = "<" + c.MessageID + ">"
	}
	var rcpts []string
	for _, a := range c.ToList {
		rcpts = append(rcpts, "<"+a+">")
	}

	line("AF:")
	line("NF:0")
	line("PS:10")
	line("SRH:1")
	line("SFN:")
	line("DSR:")
	line("MID:%s", mid)
	line("CFG:")
	line("PT:0")
	line("S:%s", c.Account.Address)
	line("RQ:")
	line("SSV:%s", c.Account.SMTPServer)
	line("NSV:%s", c.Account.NNTPServer)
	line("SSH:")
	line("R:%s", strings.Join(rcpts, ","))
	line("AID:%d", c.Account.ID)
	line("")
}
