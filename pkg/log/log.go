// Package log provides colored, leveled console logging for flexserve
// and a connection wrapper that records traffic to a transcript file.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	red    = color.New(color.FgRed).FprintfFunc()
	blue   = color.New(color.FgBlue).FprintfFunc()
	yellow = color.New(color.FgYellow).FprintfFunc()
	faint  = color.New(color.Faint).FprintfFunc()
)

// Logger writes prefixed, colored messages. Verbose messages are
// dropped unless the logger was created with verbose enabled.
// A nil *Logger is valid and discards everything.
type Logger struct {
	out     io.Writer
	verbose bool
	mu      sync.Mutex
}

// NewLogger returns a Logger writing to stderr.
func NewLogger(verbose bool) *Logger {
	return &Logger{out: os.Stderr, verbose: verbose}
}

// NewLoggerTo returns a Logger writing to w.
func NewLoggerTo(w io.Writer, verbose bool) *Logger {
	return &Logger{out: w, verbose: verbose}
}

// Verbose reports whether verbose messages are printed.
func (l *Logger) Verbose() bool {
	return l != nil && l.verbose
}

// ErrorMsg prints an error message in red.
func (l *Logger) ErrorMsg(format string, a ...interface{}) {
	l.print(red, "[!] Error: ", format, a...)
}

// WarnMsg prints a warning in yellow.
func (l *Logger) WarnMsg(format string, a ...interface{}) {
	l.print(yellow, "[~] ", format, a...)
}

// InfoMsg prints an informational message in blue.
func (l *Logger) InfoMsg(format string, a ...interface{}) {
	l.print(blue, "[+] ", format, a...)
}

// VerboseMsg prints a message only when verbose logging is enabled.
func (l *Logger) VerboseMsg(format string, a ...interface{}) {
	if !l.Verbose() {
		return
	}
	l.print(faint, "[v] ", format, a...)
}

func (l *Logger) print(fn func(io.Writer, string, ...interface{}), prefix, format string, a ...interface{}) {
	if l == nil {
		return
	}
	if n := len(format); n == 0 || format[n-1] != '\n' {
		format += "\n"
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.out, prefix+format, a...)
}
