// Package sink is the level-filtered, swappable logging backend used
// by the registry and loader handles. It mirrors the teacher's plain
// use of the standard "log" package (compile/compiler CLI tools,
// dynamic.go's debug logging) rather than pulling in a structured
// logging library -- nothing in the retrieval pack uses one.
package sink

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Level is one of the five severities a message can be logged at.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
	None
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case None:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// Sink receives already-formatted log lines. None is a legal sink: it
// silently drops every message.
type Sink interface {
	Log(level Level, line string)
}

// stdSink writes to a *log.Logger, tagging each line with its level.
// This is the default, grounded directly on the teacher's use of
// log.Printf/log.Fatalf for all of its own diagnostics.
type stdSink struct {
	logger *log.Logger
}

// NewStdSink returns a Sink that writes to logger, or to a logger
// writing to os.Stderr if logger is nil.
func NewStdSink(logger *log.Logger) Sink {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &stdSink{logger: logger}
}

func (s *stdSink) Log(level Level, line string) {
	s.logger.Printf("[%s] %s", level, line)
}

// discardSink implements the "None" installed-sink case explicitly,
// per spec: installing None as the active sink is legal and silently
// drops messages, as distinct from gating by level.
type discardSink struct{}

func (discardSink) Log(Level, string) {}

var (
	mu       sync.Mutex
	current  Sink = NewStdSink(nil)
	previous Sink
	minLevel Level = Info
)

// Install swaps in a new sink, stashing the previous one so it can be
// restored with Restore. A nil sink installs a sink that discards
// everything, matching the "None" sink special case.
func Install(s Sink) {
	mu.Lock()
	defer mu.Unlock()
	previous = current
	if s == nil {
		current = discardSink{}
		return
	}
	current = s
}

// Restore re-installs whichever sink was active before the last
// Install or Suppress call. Calling it with no prior Install is a no-op.
func Restore() {
	mu.Lock()
	defer mu.Unlock()
	if previous != nil {
		current = previous
	}
}

// Suppress stashes the active sink and installs a discarding one, so
// a later Restore recovers the sink from before Suppress was called.
func Suppress() {
	mu.Lock()
	defer mu.Unlock()
	previous = current
	current = discardSink{}
}

// SetLevel sets the process-wide minimum level that gates emission.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// CurrentLevel returns the process-wide minimum level.
func CurrentLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return minLevel
}

func emit(level Level, format string, args ...any) {
	mu.Lock()
	s := current
	gate := minLevel
	mu.Unlock()
	if level < gate {
		return
	}
	s.Log(level, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) { emit(Debug, format, args...) }
func Infof(format string, args ...any)  { emit(Info, format, args...) }
func Warnf(format string, args ...any)  { emit(Warn, format, args...) }
func Errorf(format string, args ...any) { emit(Error, format, args...) }
