package mlbench

import (
	"context"
	"io"
	"sync"
	"time"
)

// defaultCore backs the package-level convenience functions, grounded on
// the teacher's default.go singleton-delegation idiom. It is constructed
// lazily on first use with a discard Sink (NewDiscardSink); call
// SetDefault before first use to install a different Core instead.
var (
	defaultCoreOnce sync.Once
	defaultCoreVal  *Core
	defaultCoreMu   sync.Mutex
)

func defaultCoreInstance() *Core {
	defaultCoreOnce.Do(func() {
		defaultCoreMu.Lock()
		defer defaultCoreMu.Unlock()
		if defaultCoreVal == nil {
			c, err := NewCore(DefaultConfig(), NewDiscardSink())
			if err != nil {
				panic(err) // DefaultConfig always validates; unreachable.
			}
			defaultCoreVal = c
		}
	})
	return defaultCoreVal
}

// SetDefault installs core as the target of the package-level convenience
// functions. It must be called before the first call to Log/Start/Stop, or
// it has no effect (mirrors the teacher's default.go guard).
func SetDefault(core *Core) {
	defaultCoreMu.Lock()
	defer defaultCoreMu.Unlock()
	if defaultCoreVal == nil {
		defaultCoreOnce.Do(func() {})
		defaultCoreVal = core
	}
}

// Log submits entry to the default Core via a goroutine-cached Handle, the
// package-level equivalent of Handle.Log. See Core.Log for the caching
// caveats.
func Log(entry Entry) { defaultCoreInstance().Log(entry) }

// Start starts the default Core's I/O goroutine.
func Start(ctx context.Context) error { return defaultCoreInstance().Start(ctx) }

// Stop stops the default Core's I/O goroutine.
func Stop(ctx context.Context) error { return defaultCoreInstance().Stop(ctx) }

// StartLogging rewires the default Core's Sink output streams.
func StartLogging(summary, detail io.Writer) { defaultCoreInstance().StartLogging(summary, detail) }

// StopLogging flushes and reports the default Core's contention counters.
func StopLogging(ctx context.Context) error { return defaultCoreInstance().StopLogging(ctx) }

// StartNewTrace begins tracing on the default Core.
func StartNewTrace(stream io.Writer, origin time.Time) {
	defaultCoreInstance().StartNewTrace(stream, origin)
}

// StopTracing stops tracing on the default Core.
func StopTracing(ctx context.Context) error { return defaultCoreInstance().StopTracing(ctx) }
