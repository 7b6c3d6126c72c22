// Package klog provides the kernel's structured logger: a single
// *log.Logger gated by a minimum severity, with optional rotation via
// lumberjack so a long-running kernel demo can log to a file instead of
// growing stderr forever.
package klog

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity controls which messages reach the underlying writer.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarn
	SeverityInfo
	SeverityDebug
)

// Logger is the kernel's logger. The zero value is not usable; use New.
type Logger struct {
	min Severity
	l   *log.Logger
}

// Config controls where log output goes and how verbose it is.
type Config struct {
	// File, if non-empty, is the path to a log file that will be rotated with
	// lumberjack. If empty, output goes to stderr.
	File string

	// MaxSizeMB is the size in megabytes at which the log file is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int

	Severity Severity
}

// New constructs a Logger for the given subsystem name, used as the log
// line prefix.
func New(name string, cfg Config) *Logger {
	var w io.Writer = os.Stderr
	if cfg.File != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    nonZero(cfg.MaxSizeMB, 64),
			MaxBackups: nonZero(cfg.MaxBackups, 3),
		}
	}

	return &Logger{
		min: cfg.Severity,
		l:   log.New(w, name+": ", log.LstdFlags|log.Lmicroseconds),
	}
}

// SeverityFromString maps a cfg.Config log-severity string (TRACE, DEBUG,
// INFO, WARNING, ERROR, OFF) to a Severity. TRACE is treated as Debug and
// OFF as a level below Error that suppresses everything.
func SeverityFromString(s string) Severity {
	switch s {
	case "TRACE", "DEBUG":
		return SeverityDebug
	case "INFO":
		return SeverityInfo
	case "WARNING":
		return SeverityWarn
	case "ERROR":
		return SeverityError
	case "OFF":
		return Severity(-1)
	default:
		return SeverityInfo
	}
}

func nonZero(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func (lg *Logger) log(sev Severity, format string, args []interface{}) {
	if sev > lg.min {
		return
	}
	lg.l.Printf(format, args...)
}

func (lg *Logger) Errorf(format string, args ...interface{}) { lg.log(SeverityError, format, args) }
func (lg *Logger) Warnf(format string, args ...interface{})  { lg.log(SeverityWarn, format, args) }
func (lg *Logger) Infof(format string, args ...interface{})  { lg.log(SeverityInfo, format, args) }
func (lg *Logger) Debugf(format string, args ...interface{}) { lg.log(SeverityDebug, format, args) }
