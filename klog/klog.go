// Package klog is the engine's structured logger: load-time errors and
// fatal runtime conditions (§7) are reported through it rather than
// fmt.Printf, the same boundary biscuit draws around its own kernel
// console output, except here backed by golang.org/x/text/message for
// locale-aware formatting (one of the pack's domain-stack dependencies;
// nothing in biscuit itself needs localized messages, but a driver
// shipping log strings to varied deployments is exactly the sort of
// component that would reach for it).
package klog

import (
	"io"
	"os"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

/// Logger wraps a message.Printer bound to one BCP 47 tag, guarded by a
/// mutex since VM-exit handlers on different logical processors may log
/// concurrently (§5 notwithstanding — logging is the one ambient
/// facility shared across CPUs).
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	printer *message.Printer
}

/// New returns a Logger writing to out, formatting messages for tag
/// (language.AmericanEnglish is the sensible default for kernel-style
/// diagnostics).
func New(out io.Writer, tag language.Tag) *Logger {
	return &Logger{out: out, printer: message.NewPrinter(tag)}
}

/// Default is a Logger writing to stderr in American English, suitable
/// for package-level convenience logging at init.
var Default = New(os.Stderr, language.AmericanEnglish)

/// Infof logs an informational line.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.line("info", format, args...)
}

/// Warnf logs a warning line (used by patterncheck's disassembler
/// cross-check).
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.line("warn", format, args...)
}

/// Fatalf logs a fatal line and terminates the process, mirroring the
/// host's bug-check facility invoked for runtime-fatal ErrKinds (§7
/// "Runtime fatal conditions terminate the system via the host's
/// bug-check facility").
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.line("fatal", format, args...)
	os.Exit(1)
}

func (l *Logger) line(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.printer.Fprintf(l.out, "["+level+"] "+format+"\n", args...)
}
