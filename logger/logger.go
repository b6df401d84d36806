// SPDX-License-Identifier: GPL-3.0-or-later

package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"
)

const programName = "cephmetrics"

var (
	isJournal  = isStderrConnectedToJournal()
	isTerminal = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	programAttr = slog.String("program", programName)
)

// Logger is a thin leveled wrapper around slog.Logger.
// The zero value and a nil *Logger are valid and log through the default logger.
type Logger struct {
	muted atomic.Bool
	sl    *slog.Logger
}

func New() *Logger {
	if isTerminal {
		// skip 2 slog pkg calls, 3 this pkg calls
		return &Logger{sl: slog.New(withCallDepth(5, newTerminalHandler(os.Stderr)))}
	}
	return &Logger{sl: slog.New(newTextHandler(os.Stderr)).With(programAttr)}
}

// NewWithWriter returns a Logger writing text records to w. Used by tests.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{sl: slog.New(newTextHandler(w))}
}

func (l *Logger) Error(a ...any)                   { l.log(slog.LevelError, fmt.Sprint(a...)) }
func (l *Logger) Warning(a ...any)                 { l.log(slog.LevelWarn, fmt.Sprint(a...)) }
func (l *Logger) Notice(a ...any)                  { l.log(levelNotice, fmt.Sprint(a...)) }
func (l *Logger) Info(a ...any)                    { l.log(slog.LevelInfo, fmt.Sprint(a...)) }
func (l *Logger) Debug(a ...any)                   { l.log(slog.LevelDebug, fmt.Sprint(a...)) }
func (l *Logger) Errorf(format string, a ...any)   { l.log(slog.LevelError, fmt.Sprintf(format, a...)) }
func (l *Logger) Warningf(format string, a ...any) { l.log(slog.LevelWarn, fmt.Sprintf(format, a...)) }
func (l *Logger) Noticef(format string, a ...any)  { l.log(levelNotice, fmt.Sprintf(format, a...)) }
func (l *Logger) Infof(format string, a ...any)    { l.log(slog.LevelInfo, fmt.Sprintf(format, a...)) }
func (l *Logger) Debugf(format string, a ...any)   { l.log(slog.LevelDebug, fmt.Sprintf(format, a...)) }

// With returns a child Logger that adds the given attributes to every record.
func (l *Logger) With(args ...any) *Logger {
	if l.isNil() {
		return &Logger{sl: defaultLogger.sl.With(args...)}
	}

	ll := &Logger{sl: l.sl.With(args...)}
	ll.muted.Store(l.muted.Load())

	return ll
}

func (l *Logger) Mute() {
	if l.isNil() {
		return
	}
	l.muted.Store(true)
}

func (l *Logger) Unmute() {
	if l.isNil() {
		return
	}
	l.muted.Store(false)
}

func (l *Logger) log(level slog.Level, msg string) {
	if l.isNil() {
		defaultLogger.sl.Log(context.Background(), level, msg)
		return
	}

	if !l.muted.Load() {
		l.sl.Log(context.Background(), level, msg)
	}
}

func (l *Logger) isNil() bool { return l == nil || l.sl == nil }
