/******************************************************************************
 *
 *  Description :
 *
 *    Package-level loggers, in the style of the "logs" package the
 *    volvlabs-towncryer-chat-server fork of tinode/chat uses throughout
 *    (logs.Info.Printf, logs.Warn.Printf, logs.Err.Printf), backed by a
 *    real structured logger instead of the standard library's log.Logger.
 *
 *****************************************************************************/

package logs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Printfer is the narrow interface every call site in this module uses;
// it matches log.Logger closely enough that porting a Printf call site
// from the teacher's style is a drop-in rename.
type Printfer interface {
	Printf(format string, args ...any)
	Println(args ...any)
}

type severityAdapter struct {
	logf func(string, ...any)
	log  func(...any)
}

func (a severityAdapter) Printf(format string, args ...any) { a.logf(format, args...) }
func (a severityAdapter) Println(args ...any)               { a.log(args...) }

var (
	base *zap.Logger

	// Info, Warn, Err, Debug mirror the four severities the teacher's
	// fork exposes. Safe to use before Init is called; a production
	// logger at info level is the default.
	Info  Printfer
	Warn  Printfer
	Err   Printfer
	Debug Printfer
)

func init() {
	l, _ := zap.NewProduction()
	setBase(l)
}

func setBase(l *zap.Logger) {
	base = l
	s := l.Sugar()
	Info = severityAdapter{logf: s.Infof, log: s.Info}
	Warn = severityAdapter{logf: s.Warnf, log: s.Warn}
	Err = severityAdapter{logf: s.Errorf, log: s.Error}
	Debug = severityAdapter{logf: s.Debugf, log: s.Debug}
}

// Init replaces the package loggers with one configured for the given
// level ("debug", "info", "warn", "error"). Call once at process startup;
// cmd/sessionproxyd does this from config.
func Init(level string) error {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	setBase(l)
	return nil
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}
