// Package logging hands out the prefixed gommon loggers used by every
// component, all at the level chosen by LOG_LEVEL.
package logging

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/labstack/gommon/log"
)

const header = `${time_rfc3339} ${level} ${prefix}`

var level atomic.Uint32

func init() { level.Store(uint32(log.INFO)) }

// ParseLevel maps debug, info, warn, error and off to a gommon level.
func ParseLevel(s string) (log.Lvl, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG, nil
	case "", "info":
		return log.INFO, nil
	case "warn", "warning":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off":
		return log.OFF, nil
	}
	return 0, fmt.Errorf("logging: unknown level %q", s)
}

// SetLevel changes the level of loggers created afterwards and of the
// package-level gommon logger.
func SetLevel(s string) error {
	lvl, err := ParseLevel(s)
	if err != nil {
		return err
	}
	level.Store(uint32(lvl))
	log.SetLevel(lvl)
	return nil
}

// Level is the current level.
func Level() log.Lvl { return log.Lvl(level.Load()) }

// New returns a logger tagged with prefix.
func New(prefix string) *log.Logger {
	l := log.New(prefix)
	l.SetHeader(header)
	l.SetLevel(Level())
	return l
}
