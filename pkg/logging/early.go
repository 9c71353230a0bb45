package logging

import (
	"fmt"
	"io"
	"os"
)

// EarlyLog is used before the zap logger exists (flag parsing, config loading).
type EarlyLog struct {
	component string
	out       io.Writer
	exit      func(int)
}

func NewEarlyLog(component string) *EarlyLog {
	return &EarlyLog{component: component, out: os.Stderr, exit: os.Exit}
}

func (l *EarlyLog) write(level, msg string, args ...interface{}) {
	fmt.Fprintf(l.out, "%s [%s] %s\n", level, l.component, fmt.Sprintf(msg, args...))
}

// Error reports a startup failure the caller returns from; it does not exit.
func (l *EarlyLog) Error(msg string, args ...interface{}) {
	l.write("ERROR", msg, args...)
}

func (l *EarlyLog) Fatal(msg string, args ...interface{}) {
	l.write("FATAL", msg, args...)
	l.exit(1)
}

func (l *EarlyLog) Warn(msg string, args ...interface{}) {
	l.write("WARN", msg, args...)
}

func (l *EarlyLog) Info(msg string, args ...interface{}) {
	l.write("INFO", msg, args...)
}
