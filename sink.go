package classloader

import (
	"log"

	"github.com/hexforge/classloader/internal/sink"
)

// LogLevel mirrors internal/sink.Level for callers that only need the
// package's public surface, per spec §4.2's console sink levels.
type LogLevel = sink.Level

const (
	LogDebug LogLevel = sink.Debug
	LogInfo  LogLevel = sink.Info
	LogWarn  LogLevel = sink.Warn
	LogError LogLevel = sink.Error
	LogNone  LogLevel = sink.None
)

// Sink is the interface a caller implements to receive this package's
// diagnostic output instead of the default stderr logger.
type Sink = sink.Sink

// InstallSink replaces the active logging sink, returning control to
// the caller for where registration, load and unload diagnostics go.
// Passing nil installs a sink that discards everything.
func InstallSink(s Sink) { sink.Install(s) }

// InstallLogger is a convenience over InstallSink for callers that
// just want a *log.Logger rather than implementing Sink themselves.
func InstallLogger(logger *log.Logger) { sink.Install(sink.NewStdSink(logger)) }

// RestorePreviousSink re-activates whichever sink was installed before
// the most recent InstallSink/SuppressSink call.
func RestorePreviousSink() { sink.Restore() }

// SuppressSink silences diagnostics without losing track of the sink
// that was active beforehand.
func SuppressSink() { sink.Suppress() }

// SetLogLevel sets the minimum severity that reaches the active sink.
func SetLogLevel(level LogLevel) { sink.SetLevel(level) }

// LogLevelFor returns the minimum severity currently gating emission.
func LogLevelFor() LogLevel { return sink.CurrentLevel() }
