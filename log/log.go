// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log provides the small leveled logger threaded through every
// decoder and encoder in twpack, mirroring the logging surface the codec
// layer is built against.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Level is a logging severity.
type Level int

// Severities, lowest to highest.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal sink every codec component writes through.
type Logger interface {
	Log(level Level, msg string) error
}

// stdLogger writes every record to an underlying io.Writer via the standard
// library logger.
type stdLogger struct {
	l *log.Logger
}

// NewStdLogger builds a Logger writing to w, one line per record.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{l: log.New(w, "", log.LstdFlags)}
}

func (s *stdLogger) Log(level Level, msg string) error {
	return s.l.Output(3, fmt.Sprintf("[%s] %s", level, msg))
}

// Option configures a filtering Logger built with NewFilter.
type Option func(*filter)

// FilterLevel drops every record below the given level.
func FilterLevel(level Level) Option {
	return func(f *filter) { f.level = level }
}

type filter struct {
	next  Logger
	level Level
}

// NewFilter wraps next with a minimum-severity gate.
func NewFilter(next Logger, opts ...Option) Logger {
	f := &filter{next: next, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Log(level Level, msg string) error {
	if level < f.level {
		return nil
	}
	return f.next.Log(level, msg)
}

// Helper adds printf-style convenience methods over a Logger, the shape
// every decode/encode entry point in twpack accepts.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger. A nil logger yields a Helper that writes
// LevelError records to stdout. A nil *Helper discards everything, so every
// exported function can call h.Warnf(...) without a nil check.
func NewHelper(logger Logger) *Helper {
	if logger == nil {
		logger = NewFilter(NewStdLogger(os.Stdout), FilterLevel(LevelError))
	}
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, msg string) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, msg)
}

// Debug logs at LevelDebug.
func (h *Helper) Debug(args ...interface{}) { h.log(LevelDebug, fmt.Sprint(args...)) }

// Debugf logs at LevelDebug with formatting.
func (h *Helper) Debugf(format string, args ...interface{}) {
	h.log(LevelDebug, fmt.Sprintf(format, args...))
}

// Info logs at LevelInfo.
func (h *Helper) Info(args ...interface{}) { h.log(LevelInfo, fmt.Sprint(args...)) }

// Infof logs at LevelInfo with formatting.
func (h *Helper) Infof(format string, args ...interface{}) {
	h.log(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn logs at LevelWarn.
func (h *Helper) Warn(args ...interface{}) { h.log(LevelWarn, fmt.Sprint(args...)) }

// Warnf logs at LevelWarn with formatting.
func (h *Helper) Warnf(format string, args ...interface{}) {
	h.log(LevelWarn, fmt.Sprintf(format, args...))
}

// Error logs at LevelError.
func (h *Helper) Error(args ...interface{}) { h.log(LevelError, fmt.Sprint(args...)) }

// Errorf logs at LevelError with formatting.
func (h *Helper) Errorf(format string, args ...interface{}) {
	h.log(LevelError, fmt.Sprintf(format, args...))
}

// Default is a package-wide helper that writes LevelWarn and above to
// stdout. Nothing in twpack substitutes it for a nil logger or helper.
var Default = NewHelper(NewFilter(NewStdLogger(os.Stdout), FilterLevel(LevelWarn)))
