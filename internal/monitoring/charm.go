package monitoring

import (
	"io"

	"github.com/charmbracelet/log"
)

// NewCharmLogger creates a leveled logger with short timestamps, e.g.
// "14:32:01.45 INFO decoded 2 markers".
func NewCharmLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// NewCharmLoggerFromString is NewCharmLogger with a level name such as
// "debug" or "warn".
func NewCharmLoggerFromString(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return NewCharmLogger(w, lvl), nil
}

// UseCharm routes Logf to l at debug level, so library diagnostics only
// appear when the binary runs with -log-level=debug.
func UseCharm(l *log.Logger) {
	if l == nil {
		SetLogger(nil)
		return
	}
	SetLogger(l.Debugf)
}
