package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs a non-fatal condition. Best-effort stages report through here
// so a degraded run is visible in the log without aborting.
func Warnf(format string, v ...interface{}) {
	Logf("warning: "+format, v...)
}

// Stage logs the start of a named pipeline stage and returns a function that
// logs its completion with the elapsed time.
//
//	done := monitoring.Stage("load")
//	defer done()
func Stage(name string) func() {
	start := time.Now()
	Logf("[%s] started", name)
	return func() {
		Logf("[%s] finished in %s", name, time.Since(start).Round(time.Millisecond))
	}
}
