// log.go - structured logging for control-plane events.
//
// Grounded on doismellburning-samoyed's use of charmbracelet/log: a small
// Logger seam around it so the render path (vm.go, mixer.go) never has to
// import the logging package directly, and callers can substitute their
// own sink.

package lyd

import (
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the subset of charmbracelet/log's API the engine calls. It is
// called in two places: extension registration, and the first lookup of a
// missing wave (which happens once per name, when a wave op first runs) -
// never from the per-sample loops.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
}

type charmLogger struct {
	l *charmlog.Logger
}

func (c *charmLogger) Debugf(format string, args ...any) { c.l.Debugf(format, args...) }
func (c *charmLogger) Infof(format string, args ...any)  { c.l.Infof(format, args...) }

// defaultLogger returns a stderr-writing charmbracelet/log logger at Info
// level, used whenever an Engine is created without an explicit Logger.
func defaultLogger() Logger {
	return &charmLogger{l: charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:  charmlog.InfoLevel,
		Prefix: "lyd",
	})}
}
