package mlbench

import (
	"io"
	"time"
)

// Entry is a one-shot deferred action captured by a producer and executed
// exactly once, on the I/O goroutine, against the current Sink. Entries are
// ordinary Go closures: since Go has no move-only types, "moved, never
// copied" from spec.md is satisfied by convention — an Entry should not be
// invoked more than once and should not retain state another goroutine will
// mutate concurrently.
type Entry func(Sink)

// TraceScope is returned by Sink.ScopedTrace; calling it closes the scope.
type TraceScope func()

// Sink is the external collaborator that turns ordered Entry invocations
// into text: formatting and file I/O live entirely on the far side of this
// interface. The core never inspects a Sink's internals; it only ever
// passes one to an Entry on the I/O goroutine.
type Sink interface {
	// AppendDetail writes one line to the detail stream.
	AppendDetail(line string)
	// AppendSummary writes one line to the summary stream.
	AppendSummary(line string)
	// AppendTraceEvent records a named trace event with key/value pairs.
	AppendTraceEvent(name string, kv ...any)
	// ScopedTrace opens a trace scope and returns a function that closes it.
	ScopedTrace(name string, kv ...any) TraceScope
	// SetTracePidTid sets the pid/tid identity string attached to
	// subsequent trace events, until changed again.
	SetTracePidTid(pidTid string)
	// Flush is called exactly once per I/O-thread tick.
	Flush()
	// SetOutputStreams rewires the summary/detail streams and records the
	// origin timestamp used for relative trace timing.
	SetOutputStreams(summary, detail io.Writer, origin time.Time)
	// StartNewTrace begins writing trace events to stream, relative to
	// origin. A nil stream stops tracing unless the implementation has its
	// own trace destination (textsink.TextSink with TracePath set opens that
	// file instead).
	StartNewTrace(stream io.Writer, origin time.Time)
	// StopTrace stops writing trace events.
	StopTrace()
	// RestartLatencyRecording clears any buffered latency samples.
	RestartLatencyRecording()
	// GetLatenciesBlocking blocks until at least expectedCount latency
	// samples have been recorded, then returns them.
	GetLatenciesBlocking(expectedCount int) []time.Duration
}

// discardSink is the zero-configuration Sink the default Core starts with:
// every call is a no-op. Installing a real Sink (TextSink or otherwise) via
// SetDefault/NewCore is expected before relying on output.
type discardSink struct{}

// NewDiscardSink returns a Sink that drops everything. Useful for tests that
// exercise the concurrency core without caring about formatted output.
func NewDiscardSink() Sink { return discardSink{} }

func (discardSink) AppendDetail(string)                              {}
func (discardSink) AppendSummary(string)                              {}
func (discardSink) AppendTraceEvent(string, ...any)                   {}
func (discardSink) ScopedTrace(string, ...any) TraceScope              { return func() {} }
func (discardSink) SetTracePidTid(string)                             {}
func (discardSink) Flush()                                            {}
func (discardSink) SetOutputStreams(io.Writer, io.Writer, time.Time)  {}
func (discardSink) StartNewTrace(io.Writer, time.Time)                {}
func (discardSink) StopTrace()                                        {}
func (discardSink) RestartLatencyRecording()                          {}
func (discardSink) GetLatenciesBlocking(int) []time.Duration          { return nil }
