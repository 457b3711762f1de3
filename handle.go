package mlbench

import (
	"runtime"
	"sync/atomic"
)

// Handle is a producer's durable reference to its own threadLog, obtained
// once via Core.Handle and held for the lifetime of the producer goroutine.
// This is the REDESIGN spec.md §9 calls for: Go has no portable
// thread-local storage, so the C++ original's automatic thread_local
// cache-on-first-use becomes an explicit value the caller must hold onto
// (see SPEC_FULL.md §9 and DESIGN.md for the tradeoff this implies for the
// package-level convenience functions).
type Handle struct {
	tl     *threadLog
	closed atomic.Bool
}

// Log submits entry to be executed on the I/O goroutine against the
// current Sink, in FIFO order relative to every other entry this Handle has
// submitted. It never blocks and never allocates beyond the slice append
// backing the current write buffer.
func (h *Handle) Log(entry Entry) {
	h.tl.log(entry)
}

// Close releases this Handle's threadLog into the orphan list, letting the
// producer goroutine exit without waiting on the I/O goroutine to drain its
// last entries. Grounded on logging.cc's TlsLoggerWrapper destructor
// (UnRegisterTlsLogger). Idempotent.
func (h *Handle) Close() {
	if h.closed.CompareAndSwap(false, true) {
		h.tl.core.unregister(h.tl)
	}
}

// attachFinalizer arranges for a Handle a caller forgot to Close to still
// reach the orphan list once it becomes unreachable, approximating (on
// GC's schedule, not synchronously at goroutine exit) the deterministic
// thread-exit hook the C++ original gets for free. This is a safety net,
// not the documented lifecycle: callers should still Close explicitly.
// Handles held in Core.Log's per-goroutine cache stay reachable from that
// cache, so the finalizer never runs for them.
func attachFinalizer(h *Handle) {
	runtime.SetFinalizer(h, func(h *Handle) { h.Close() })
}
