// Package logging configures the shared github.com/op/go-logging backend
// used by every component, mirroring the teacher client's
// `var log = logging.MustGetLogger("log")` idiom (one named logger per
// package instead of one global).
package logging

import (
	"os"

	golog "github.com/op/go-logging"
)

var format = golog.MustStringFormatter(
	`%{color}%{time:2006-01-02 15:04:05.000} %{shortfunc} ▶ %{level:.4s}%{color:reset} %{message}`,
)

// InitLogger configures the process-wide go-logging backend at the given
// level (DEBUG, INFO, WARNING, ERROR, or CRITICAL, case-insensitive). Call
// once during startup before any MustGetLogger-obtained logger is used.
func InitLogger(level string) error {
	lvl, err := golog.LogLevel(level)
	if err != nil {
		return err
	}
	backend := golog.NewLogBackend(os.Stderr, "", 0)
	formatted := golog.NewBackendFormatter(backend, format)
	leveled := golog.AddModuleLevel(formatted)
	leveled.SetLevel(lvl, "")
	golog.SetBackend(leveled)
	return nil
}

// MustGetLogger returns the named logger for module, panicking if the
// underlying name is invalid (mirrors github.com/op/go-logging's own
// panic-on-misuse contract).
func MustGetLogger(module string) *golog.Logger {
	return golog.MustGetLogger(module)
}
