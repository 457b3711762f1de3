package mlbench

import (
	"time"

	"go.uber.org/zap"
)

// Builder provides a fluent API for assembling a Config, mirroring the
// teacher's Builder (builder.go) — chainable setters over an accumulated
// Config plus a deferred error, resolved at Build.
type Builder struct {
	cfg *Config
	err error
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// PollPeriod sets how often the I/O goroutine ticks.
func (b *Builder) PollPeriod(d time.Duration) *Builder {
	b.cfg.PollPeriod = d
	return b
}

// MaxThreads sizes the swap ring.
func (b *Builder) MaxThreads(n int) *Builder {
	b.cfg.MaxThreads = n
	return b
}

// InternalLogger sets the core's own diagnostic logger.
func (b *Builder) InternalLogger(logger *zap.Logger) *Builder {
	b.cfg.InternalLogger = logger
	return b
}

// Build validates the accumulated Config and constructs a Core with sink.
func (b *Builder) Build(sink Sink) (*Core, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	return NewCore(b.cfg, sink)
}
