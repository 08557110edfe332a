// Package obslog provides the pluggable side-channel the builder and engine
// write non-fatal warnings to (spec §7: "Non-fatal
// warnings are emitted through a side channel... and do not stop
// processing"). Grounded on the teacher's own apoc/log package, which wraps
// the standard library's *log.Logger rather than a third-party logging
// framework — the same choice is made here.
package obslog

import (
	"fmt"
	"log"
	"os"
)

// Sink receives structured progress and warning lines. Every layer that
// reports a non-fatal condition (a zero-match relationship, a skipped
// property computation) takes a Sink rather than writing to stdout
// directly, so callers can redirect, silence, or collect it.
type Sink interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// StdSink writes to a standard library *log.Logger, tagging each line with
// its level. It is the default production Sink.
type StdSink struct {
	logger *log.Logger
}

// NewStdSink returns a Sink writing to os.Stderr with the standard
// date/time prefix.
func NewStdSink() *StdSink {
	return &StdSink{logger: log.New(os.Stderr, "", log.LstdFlags)}
}

func (s *StdSink) Infof(format string, args ...any) {
	s.logger.Printf("INFO  "+format, args...)
}

func (s *StdSink) Warnf(format string, args ...any) {
	s.logger.Printf("WARN  "+format, args...)
}

// Discard silently drops every message — used by tests and any caller that
// wants to run without a logging side effect.
type Discard struct{}

func (Discard) Infof(string, ...any) {}
func (Discard) Warnf(string, ...any) {}

// Collector accumulates messages in memory, for tests asserting on warning
// content without capturing stderr.
type Collector struct {
	Infos []string
	Warns []string
}

func (c *Collector) Infof(format string, args ...any) {
	c.Infos = append(c.Infos, fmt.Sprintf(format, args...))
}

func (c *Collector) Warnf(format string, args ...any) {
	c.Warns = append(c.Warns, fmt.Sprintf(format, args...))
}
