// Package mlbench implements the lock-free asynchronous logging substrate
// for a benchmark harness: many producer goroutines append entries to a
// per-producer double buffer without blocking or allocating on a contended
// structure, while a single dedicated I/O goroutine drains, orders, and
// formats everything through a Sink.
//
// The concurrency core (threadLog, swapRing, Core) is a direct port of the
// three-state buffer-swap protocol used by MLPerf's loadgen logger: a
// producer always owns a writable buffer, a consumer-side swap ring
// notifies the I/O goroutine which producer has pending entries, and
// per-producer destruction is deferred to the orphan list so an exiting
// producer never waits on the I/O goroutine.
package mlbench
