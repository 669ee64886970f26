// Package log is the structured logger used throughout fleet, a thin
// wrapper over logrus that gives every subsystem a consistent
// Debugf/Infof/Warnf/Errorf surface and a per-task prefix.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the interface the scheduler core depends on. Nothing in
// internal/graph, internal/tasks, or internal/runner imports logrus
// directly; they take a Logger.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	WithField(key string, value any) Logger
	Formatter() Formatter
}

// Formatter reports how output is being rendered, so callers (e.g. the
// output collator) can decide whether to strip color codes.
type Formatter interface {
	DisabledColors() bool
}

type formatter struct {
	disableColors bool
}

func (f formatter) DisabledColors() bool { return f.disableColors }

type logger struct {
	entry *logrus.Entry
	fmt   formatter
}

// New builds a Logger writing to w at the given level name
// ("debug", "info", "warn", "error"). An unrecognized level defaults to info.
func New(w io.Writer, level string, disableColors bool) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:    disableColors,
		FullTimestamp:    true,
		DisableTimestamp: false,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	l.SetLevel(lvl)

	return &logger{entry: logrus.NewEntry(l), fmt: formatter{disableColors: disableColors}}
}

// Default returns a Logger writing to stderr at info level, colors enabled
// unless output isn't a terminal (callers wire that decision in cmd/fleet).
func Default() Logger {
	return New(os.Stderr, "info", false)
}

func (l *logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *logger) WithField(key string, value any) Logger {
	return &logger{entry: l.entry.WithField(key, value), fmt: l.fmt}
}

func (l *logger) Formatter() Formatter { return l.fmt }
