// Package logging provides package-scoped loggers shared across the
// module: each subsystem gets its own named *logrus.Entry rather than
// writing through one shared, unlabeled logger.
package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.Mutex
	base    = newBaseLogger()
	loggers = map[string]*logrus.Entry{}
)

func newBaseLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Get returns the logger for a named subsystem (e.g. "record", "quorum",
// "compact"). The same name always returns the same *logrus.Entry.
func Get(name string) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()

	if entry, ok := loggers[name]; ok {
		return entry
	}
	entry := base.WithField("pkg", name)
	loggers[name] = entry
	return entry
}

// SetLevel configures the log level shared by every logger returned from
// Get, by name ("debug", "info", "warn"/"warning", "error"). Unknown
// levels fall back to info.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	base.SetLevel(parseLevel(level))
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
