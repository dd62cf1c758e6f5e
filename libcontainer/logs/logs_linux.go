// Package logs holds JSON log plumbing: ConfigureChild switches
// logrus to JSON lines on a writer, and ForwardLogs decodes such a
// stream back into the calling process's logger. cmd/crucible points
// ConfigureChild at its --log file; no log pipe is set up between the
// birth-protocol stages and main, and nothing calls ForwardLogs
// outside the tests. Grounded on runc's
// libcontainer/logs package, built on github.com/sirupsen/logrus, the
// same logging library the teacher repo configures at startup.
package logs

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Entry is one structured log line crossing the pipe, decoded back
// into a logrus.Entry by ForwardLogs.
type Entry struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

// ConfigureChild points logrus' standard logger at an io.Writer and
// switches it to JSON output, so each line decodes cleanly as one Entry.
func ConfigureChild(w io.Writer) {
	logrus.SetOutput(w)
	logrus.SetFormatter(&logrus.JSONFormatter{})
}

// ForwardLogs reads newline-delimited JSON log entries from r until it
// closes, re-emitting each one through this process's own logger;
// returns once r reaches EOF.
func ForwardLogs(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			fmt.Fprintln(os.Stderr, scanner.Text())
			continue
		}
		lvl, err := logrus.ParseLevel(e.Level)
		if err != nil {
			lvl = logrus.InfoLevel
		}
		logrus.StandardLogger().Log(lvl, e.Msg)
	}
}
