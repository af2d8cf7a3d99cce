// Package logging provides the single leveled logger used across the
// engine, following the same go-kit/level convention the teacher package
// uses: errors for failed cache write-backs and flushes, and info lines
// for a repaired tensor meta and for each new chunk the engine opens.
package logging

import (
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Logger is the process-wide leveled logger. It is a var, not a const
// singleton wired through global state elsewhere: callers that want
// isolated logging in tests can swap it.
var Logger = newDefault()

func newDefault() log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	return level.NewFilter(l, level.AllowInfo())
}
