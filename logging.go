package backdrop

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Logger is the logging surface used by every part of the engine.
// Hosts may plug in their own implementation through Config.Logger.
type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type DefaultLogger struct {
	mu     sync.Mutex
	debug  bool
	prefix string
	out    *log.Logger
	err    *log.Logger
}

// NewDefaultLogger writes info and debug lines to stdout and warnings and
// errors to stderr.
func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewWriterLogger(os.Stdout, os.Stderr, prefix, debug)
}

// NewWriterLogger is NewDefaultLogger with explicit sinks.
func NewWriterLogger(out, errOut io.Writer, prefix string, debug bool) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:  debug,
		prefix: prefix,
		out:    log.New(out, "", flags),
		err:    log.New(errOut, "", flags),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) prefixf(level string, format string, args ...any) string {
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s: %s", l.prefix, level, fmt.Sprintf(format, args...))
	}
	return fmt.Sprintf("%s: %s", level, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.out.Print(l.prefixf("DEBUG", format, args...))
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Print(l.prefixf("INFO", format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.err.Print(l.prefixf("WARN", format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.err.Print(l.prefixf("ERROR", format, args...))
}

type nopLogger struct{}

func NewNopLogger() Logger                             { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

// scopedLogger tags every line with a scope such as a session id. Debug
// state stays with the wrapped logger.
type scopedLogger struct {
	Logger
	scope string
}

// WithScope returns a Logger that prefixes each message with scope.
func WithScope(l Logger, scope string) Logger {
	l = loggerOr(l)
	if scope == "" {
		return l
	}
	if sl, ok := l.(*scopedLogger); ok {
		return &scopedLogger{Logger: sl.Logger, scope: sl.scope + "/" + scope}
	}
	return &scopedLogger{Logger: l, scope: scope}
}

func (l *scopedLogger) Debugf(format string, args ...any) {
	l.Logger.Debugf("%s: %s", l.scope, fmt.Sprintf(format, args...))
}

func (l *scopedLogger) Infof(format string, args ...any) {
	l.Logger.Infof("%s: %s", l.scope, fmt.Sprintf(format, args...))
}

func (l *scopedLogger) Warnf(format string, args ...any) {
	l.Logger.Warnf("%s: %s", l.scope, fmt.Sprintf(format, args...))
}

func (l *scopedLogger) Errorf(format string, args ...any) {
	l.Logger.Errorf("%s: %s", l.scope, fmt.Sprintf(format, args...))
}

// loggerOr never returns nil.
func loggerOr(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}
