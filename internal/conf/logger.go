package conf

import (
	"sync"

	"github.com/tphakala/codescan/internal/logger"
)

var (
	confLogger     logger.Logger
	confLoggerOnce sync.Once
)

// GetLogger returns the conf package logger.
// The global logger is resolved lazily because configuration loads before it is set up.
func GetLogger() logger.Logger {
	confLoggerOnce.Do(func() {
		confLogger = logger.Global().Module("conf")
	})
	return confLogger
}
