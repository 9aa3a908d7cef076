package gc

import kitlog "github.com/go-kit/log"

// Logger is the diagnostics collaborator: every collection-path message
// (corrupted-cell recovery, out-of-memory, handle exhaustion) routes
// through here instead of a scattered print statement. A nil Logger is
// valid and silences all output — the hot allocation path must not pay
// for formatting when nobody is listening.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
}

// KitLogger adapts a github.com/go-kit/log.Logger to Logger, tagging
// each line with a level key the way go-kit's own level package does.
type KitLogger struct {
	Base kitlog.Logger
}

// NewKitLogger wraps base, or a no-op logger if base is nil.
func NewKitLogger(base kitlog.Logger) KitLogger {
	if base == nil {
		base = kitlog.NewNopLogger()
	}
	return KitLogger{Base: base}
}

func (l KitLogger) Debug(msg string, kv ...interface{}) { l.log("debug", msg, kv) }
func (l KitLogger) Info(msg string, kv ...interface{})  { l.log("info", msg, kv) }
func (l KitLogger) Warn(msg string, kv ...interface{})  { l.log("warn", msg, kv) }

func (l KitLogger) log(level, msg string, kv []interface{}) {
	args := append([]interface{}{"level", level, "msg", msg}, kv...)
	_ = l.Base.Log(args...)
}

// logDebug/logInfo/logWarn guard against a nil Logger so call sites on
// the hot path never have to check themselves.
func logDebug(l Logger, msg string, kv ...interface{}) {
	if l != nil {
		l.Debug(msg, kv...)
	}
}

func logInfo(l Logger, msg string, kv ...interface{}) {
	if l != nil {
		l.Info(msg, kv...)
	}
}

func logWarn(l Logger, msg string, kv ...interface{}) {
	if l != nil {
		l.Warn(msg, kv...)
	}
}
