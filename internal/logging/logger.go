// Package logging provides the leveled logger used across the node.
//
// The interface and the default implementation mirror the teacher's
// pkg/mcast/definition.DefaultLogger: same method set, same "[LEVEL]:
// message" prefixing, same calldepth so the file:line reported by the
// underlying log.Logger points at the caller, not at this package.
package logging

import (
	"fmt"
	"log"
	"os"
)

const calldepth = 3

const (
	levelInfo  = "INFO"
	levelWarn  = "WARN"
	levelError = "ERROR"
	levelDebug = "DEBUG"
	levelFatal = "FATAL"
)

// Logger is the leveled logging surface every worker depends on.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
}

func prefix(level, message string) string {
	return fmt.Sprintf("[%s]: %s", level, message)
}

// Default wraps the standard library logger, writing to stderr unless
// ALSO_LOG_TO_STDOUT also mirrors events there (see internal/journal).
type Default struct {
	*log.Logger
	debug bool
}

// New builds the default logger. debug gates Debug/Debugf output.
func New(debug bool) *Default {
	return &Default{
		Logger: log.New(os.Stderr, "aemnode: ", log.LstdFlags),
		debug:  debug,
	}
}

func (l *Default) Info(v ...interface{}) {
	_ = l.Output(calldepth, prefix(levelInfo, fmt.Sprint(v...)))
}

func (l *Default) Infof(format string, v ...interface{}) {
	_ = l.Output(calldepth, prefix(levelInfo, fmt.Sprintf(format, v...)))
}

func (l *Default) Warn(v ...interface{}) {
	_ = l.Output(calldepth, prefix(levelWarn, fmt.Sprint(v...)))
}

func (l *Default) Warnf(format string, v ...interface{}) {
	_ = l.Output(calldepth, prefix(levelWarn, fmt.Sprintf(format, v...)))
}

func (l *Default) Error(v ...interface{}) {
	_ = l.Output(calldepth, prefix(levelError, fmt.Sprint(v...)))
}

func (l *Default) Errorf(format string, v ...interface{}) {
	_ = l.Output(calldepth, prefix(levelError, fmt.Sprintf(format, v...)))
}

func (l *Default) Debug(v ...interface{}) {
	if l.debug {
		_ = l.Output(calldepth, prefix(levelDebug, fmt.Sprint(v...)))
	}
}

func (l *Default) Debugf(format string, v ...interface{}) {
	if l.debug {
		_ = l.Output(calldepth, prefix(levelDebug, fmt.Sprintf(format, v...)))
	}
}

// Fatal logs then terminates the process. Reserved for invariant
// violations (§7): the network layer never calls this.
func (l *Default) Fatal(v ...interface{}) {
	_ = l.Output(calldepth, prefix(levelFatal, fmt.Sprint(v...)))
	os.Exit(1)
}

func (l *Default) Fatalf(format string, v ...interface{}) {
	_ = l.Output(calldepth, prefix(levelFatal, fmt.Sprintf(format, v...)))
	os.Exit(1)
}

var _ Logger = (*Default)(nil)
