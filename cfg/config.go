// Package cfg holds the kernel's tunable constants, overridable at runtime
// via a YAML config file and command-line flags so tests and the demo CLI
// don't have to recompile to exercise edge cases like a tiny PIPESIZE or a
// one-entry FD table. Environment variables are not consulted.
package cfg

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the kernel's tunable constants as runtime-overridable fields
// instead of compile-time constants.
type Config struct {
	PipeSize            int `mapstructure:"pipe-size"`
	ProcMaxFile         int `mapstructure:"proc-max-file"`
	ProcMaxArg          int `mapstructure:"proc-max-arg"`
	ProcNameLen         int `mapstructure:"proc-name-len"`
	StackPages          int `mapstructure:"stack-pages"`
	UserStackUpperBound int64 `mapstructure:"user-stack-upper-bound"`
	FrameCapacity       int64 `mapstructure:"frame-capacity"`

	LogSeverity string `mapstructure:"log-severity"`
	LogFile     string `mapstructure:"log-file"`
}

// Defaults returns the recommended baseline configuration: a 512-byte pipe
// buffer, a 128-entry FD table, 128 argv slots, 31-byte process names, a
// 10-page stack, and 65536 simulated physical frames.
func Defaults() Config {
	return Config{
		PipeSize:            512,
		ProcMaxFile:         128,
		ProcMaxArg:          128,
		ProcNameLen:         31,
		StackPages:          10,
		UserStackUpperBound: 0xC0000000,
		FrameCapacity:       65536,
		LogSeverity:         "INFO",
	}
}

// BindFlags registers every Config field as a pflag, following the
// defaults returned by Defaults, so cmd/miniosctl's root command can bind
// them with viper.
func BindFlags(flags *pflag.FlagSet) error {
	d := Defaults()
	flags.Int("pipe-size", d.PipeSize, "bytes of buffering in an anonymous pipe")
	flags.Int("proc-max-file", d.ProcMaxFile, "per-process file descriptor table capacity")
	flags.Int("proc-max-arg", d.ProcMaxArg, "maximum argv entries accepted by spawn")
	flags.Int("proc-name-len", d.ProcNameLen, "maximum stored process name length")
	flags.Int("stack-pages", d.StackPages, "pages reserved for a process's user stack")
	flags.Int64("user-stack-upper-bound", d.UserStackUpperBound, "virtual address the stack region ends at")
	flags.Int64("frame-capacity", d.FrameCapacity, "number of simulated physical frames available")
	flags.String("log-severity", d.LogSeverity, "minimum severity logged: TRACE, DEBUG, INFO, WARNING, ERROR, OFF")
	flags.String("log-file", d.LogFile, "path to a log file; empty logs to stderr")

	return viper.BindPFlags(flags)
}

// Rationalize fills in any zero-valued field from Defaults. It runs after
// flag/config-file unmarshalling and before validation.
func Rationalize(c *Config) {
	d := Defaults()
	if c.PipeSize <= 0 {
		c.PipeSize = d.PipeSize
	}
	if c.ProcMaxFile <= 0 {
		c.ProcMaxFile = d.ProcMaxFile
	}
	if c.ProcMaxArg <= 0 {
		c.ProcMaxArg = d.ProcMaxArg
	}
	if c.ProcNameLen <= 0 {
		c.ProcNameLen = d.ProcNameLen
	}
	if c.StackPages <= 0 {
		c.StackPages = d.StackPages
	}
	if c.UserStackUpperBound <= 0 {
		c.UserStackUpperBound = d.UserStackUpperBound
	}
	if c.FrameCapacity <= 0 {
		c.FrameCapacity = d.FrameCapacity
	}
	if c.LogSeverity == "" {
		c.LogSeverity = d.LogSeverity
	}
}

// Decode unmarshals viper's current state into a Config via mapstructure,
// then rationalizes and returns it.
func Decode(v *viper.Viper) (Config, error) {
	var c Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &c,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, fmt.Errorf("building config decoder: %w", err)
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	Rationalize(&c)
	return c, nil
}
