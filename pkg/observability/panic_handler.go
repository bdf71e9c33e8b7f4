package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with structured logging.
// Call it in a defer statement; the panic is not re-raised.
//
//	func (j *Job) Run() {
//	    defer observability.RecoverPanic(logger, "invitation cleanup")
//	    ...
//	}
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
	}
}

// SafeRun runs fn and turns a panic into an error instead of crashing the
// caller. Used by cron jobs, where a panic would otherwise kill the scheduler
// goroutine.
func SafeRun(logger *Logger, where string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, where, r)
			err = fmt.Errorf("panic in %s: %v", where, r)
		}
	}()
	return fn()
}

func logPanic(logger *Logger, where string, r interface{}) {
	if logger == nil {
		logger = NopLogger()
	}
	logger.WithField("panic", fmt.Sprint(r)).
		WithField("stack", string(debug.Stack())).
		WithField("context", where).
		Error("PANIC recovered")
}
