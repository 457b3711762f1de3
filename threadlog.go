package mlbench

import "sync/atomic"

// bufferState is the three-state machine guarding one of a threadLog's two
// entry buffers. Grounded on logging.cc's TlsLogger::BufferState
// (kUnlocked/kReadLock/kWriteLock).
type bufferState int32

const (
	stateUnlocked bufferState = iota
	stateReadLock
	stateWriteLock
)

// threadLog is the per-producer double buffer from spec.md §3/§4.1. Exactly
// one goroutine calls log (the owning producer); exactly one goroutine calls
// swapBuffers/startReadingEntries/finishReadingEntries/readBufferHasBeenConsumed
// (the I/O goroutine). The two sides only ever communicate through the
// atomic state pair and the atomic iWrite index — there is no mutex.
type threadLog struct {
	core *Core

	buf   [2][]Entry
	state [2]atomic.Int32 // bufferState, accessed via CompareAndSwap

	iWrite atomic.Int32 // which buffer index the producer should try first

	// producer-local; touched only by the owning goroutine.
	iWritePrev int32

	// consumer-local; touched only by the I/O goroutine.
	iRead       int32
	unreadSwaps int

	// contention counters, relaxed increments from the producer side,
	// drained (swapped to zero) by Core.collectThreadLogStats.
	logCasFailCount           atomic.Uint64
	swapBuffersSlotRetryCount atomic.Uint64

	// identity cached once, at Handle creation, standing in for the
	// thread_local pid/tid pair the C++ original captures automatically.
	pidTid string
}

func newThreadLog(core *Core, pidTid string) *threadLog {
	tl := &threadLog{core: core, pidTid: pidTid}
	tl.state[0].Store(int32(stateReadLock))
	tl.iWrite.Store(1)
	return tl
}

// log appends entry to whichever buffer is currently unlocked, matching
// logging.cc's TlsLogger::Log. The producer tries iWrite first; on
// contention with the I/O thread's ReadLock it flips to the other buffer.
// The relaxed iWrite load may be one swap stale and a concurrent swap may
// race, so up to three CAS attempts are allowed; a third failure is treated
// as a broken invariant.
func (tl *threadLog) log(entry Entry) {
	iw := tl.iWrite.Load()

	attempts := 0
	for !tl.state[iw].CompareAndSwap(int32(stateUnlocked), int32(stateWriteLock)) {
		attempts++
		if attempts >= 3 {
			tl.core.fatalf("threadLog: log could not acquire either buffer after %d attempts", attempts)
			return
		}
		tl.logCasFailCount.Add(1)
		iw ^= 1
	}

	tl.buf[iw] = append(tl.buf[iw], entry)

	if !tl.state[iw].CompareAndSwap(int32(stateWriteLock), int32(stateUnlocked)) {
		tl.core.fatalf("threadLog: lost WriteLock ownership while appending")
		return
	}

	if iw != tl.iWritePrev {
		tl.iWritePrev = iw
		tl.core.requestSwap(tl)
	}
}

// swapBuffers is called by the I/O thread once it already knows buf[iRead]
// has been fully consumed by a prior startReadingEntries/finishReadingEntries
// round trip. It releases that buffer back to the producer and advances
// iRead to the other one. Grounded on TlsLogger::SwapBuffers.
func (tl *threadLog) swapBuffers() {
	if !tl.state[tl.iRead].CompareAndSwap(int32(stateReadLock), int32(stateUnlocked)) {
		tl.core.fatalf("threadLog: lost ReadLock ownership while swapping")
		return
	}
	tl.iWrite.Store(tl.iRead)
	tl.iRead ^= 1
	tl.unreadSwaps++
}

// startReadingEntries attempts to take ReadLock on the current read buffer.
// It can fail if the producer is mid-append; the caller (Core.ioThreadLoop)
// retries on a later tick. Grounded on TlsLogger::StartReadingEntries.
func (tl *threadLog) startReadingEntries() *[]Entry {
	if !tl.state[tl.iRead].CompareAndSwap(int32(stateUnlocked), int32(stateReadLock)) {
		return nil
	}
	return &tl.buf[tl.iRead]
}

// finishReadingEntries clears the just-drained buffer and decrements
// unreadSwaps. S[iRead] deliberately stays ReadLock until the next
// swapBuffers releases it — this is what keeps the producer from touching a
// buffer the I/O thread has already finished reading but not yet handed
// back. Grounded on TlsLogger::FinishReadingEntries.
func (tl *threadLog) finishReadingEntries() {
	tl.buf[tl.iRead] = tl.buf[tl.iRead][:0]
	tl.unreadSwaps--
}

// readBufferHasBeenConsumed reports whether every swap posted so far against
// this threadLog has already been fully read back, i.e. it is safe to post
// another swap request. Grounded on TlsLogger::ReadBufferHasBeenConsumed.
func (tl *threadLog) readBufferHasBeenConsumed() bool {
	return tl.unreadSwaps == 0
}

// drainCounters atomically takes (and zeroes) the contention counters
// accumulated since the last drain, grounded on logging.cc's
// ReportLogCasFailCount/ReportSwapBuffersSlotRetryCount.
func (tl *threadLog) drainCounters() (casFail, slotRetry uint64) {
	return tl.logCasFailCount.Swap(0), tl.swapBuffersSlotRetryCount.Swap(0)
}
