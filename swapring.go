package mlbench

import (
	"sync/atomic"
	"unsafe"
)

// swapRing is the fixed-size, lock-free mailbox producers use to tell the
// I/O thread "I have entries ready to swap". Grounded on logging.cc's
// swap_request_slots_ and its SwapRequestSlotIsWritableValue encoding: each
// slot is a tagged word where the low bit distinguishes a writable marker
// ((id<<1)|1) from a live *threadLog pointer (always even, since Go
// pointers are at least 2-byte aligned).
//
// Every *threadLog stored in a slot remains reachable through Core's
// registry or orphan list for as long as it could be sitting in the ring,
// so round-tripping it through a bare uintptr here does not race the
// garbage collector.
type swapRing struct {
	slots []atomic.Uintptr

	// nextID is the producer-side monotonic counter; posting a request
	// claims id = nextID.Add(1)-1 and maps it to slot id % len(slots).
	nextID atomic.Uint64

	// readID is consumer-only: the next id the I/O thread has not yet
	// attempted to gather.
	readID uint64
}

func newSwapRing(size int) *swapRing {
	r := &swapRing{slots: make([]atomic.Uintptr, size)}
	for i := range r.slots {
		r.slots[i].Store(writableMarker(uint64(i)))
	}
	return r
}

func writableMarker(id uint64) uintptr { return uintptr(id<<1 | 1) }

func isWritable(v uintptr) bool { return v&1 == 1 }

// post publishes a swap request for tl, retrying against the next slot in
// the ring whenever the target slot hasn't been vacated by the I/O thread
// yet (it is still holding a previous, unclaimed pointer). Grounded on
// logging.cc's RequestSwapBuffers.
func (r *swapRing) post(tl *threadLog) {
	ptr := uintptr(unsafe.Pointer(tl))
	for {
		id := r.nextID.Add(1) - 1
		slot := int(id % uint64(len(r.slots)))
		expected := writableMarker(id)
		if r.slots[slot].CompareAndSwap(expected, ptr) {
			return
		}
		tl.swapBuffersSlotRetryCount.Add(1)
	}
}

// claim inspects slot for a posted request: if it already holds the
// pointer the producer posted, it is swapped back to a fresh writable
// marker for nextID (the caller passes the request's id plus len(slots))
// and the pointer is returned; if the producer's CAS in post hasn't landed
// yet, claim returns stillPending=true so the caller retries later.
// Grounded on logging.cc's GetTlsLoggerThatRequestedSwap.
//
// A CAS failure on the pointer-to-marker transition is a protocol
// violation: claim is only ever called from the single I/O goroutine, so
// nothing else can have mutated slot between the Load and the CompareAndSwap.
func (r *swapRing) claim(slot int, nextID uint64) (tl *threadLog, stillPending bool, violated bool) {
	v := r.slots[slot].Load()
	if isWritable(v) {
		return nil, true, false
	}
	if !r.slots[slot].CompareAndSwap(v, writableMarker(nextID)) {
		return nil, false, true
	}
	return (*threadLog)(unsafe.Pointer(v)), false, false
}
