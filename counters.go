package mlbench

import "fmt"

// ContentionCounters is a snapshot of the lock-free protocol's contention
// diagnostics, accumulated across every threadLog (live and orphaned) that
// has ever belonged to a Core. All of it is diagnostic only: healthy
// operation can still produce a nonzero count, since every field records a
// retried (not failed) operation. Grounded on logging.cc lines 237-250
// (Logger::StopLogging's final counter dump).
type ContentionCounters struct {
	LogCasFailCount                        uint64
	SwapBuffersSlotRetryCount              uint64
	SwapRequestSlotsRetryCount             uint64
	SwapRequestSlotsRetryRetryCount        uint64
	SwapRequestSlotsRetryReencounterCount  uint64
	StartReadingEntriesRetryCount          uint64
}

// Lines renders the counters as the detail-stream block StopLogging writes,
// one "<count> : <name>" line per counter, matching the original's dump
// format.
func (cc ContentionCounters) Lines() []string {
	return []string{
		fmt.Sprintf("%d : log_cas_fail_count", cc.LogCasFailCount),
		fmt.Sprintf("%d : swap_buffers_slot_retry_count", cc.SwapBuffersSlotRetryCount),
		fmt.Sprintf("%d : swap_request_slots_retry_count", cc.SwapRequestSlotsRetryCount),
		fmt.Sprintf("%d : swap_request_slots_retry_retry_count", cc.SwapRequestSlotsRetryRetryCount),
		fmt.Sprintf("%d : swap_request_slots_retry_reencounter_count", cc.SwapRequestSlotsRetryReencounterCount),
		fmt.Sprintf("%d : start_reading_entries_retry_count", cc.StartReadingEntriesRetryCount),
	}
}

// Snapshot returns the current contention counters without resetting them.
func (c *Core) Snapshot() ContentionCounters {
	return ContentionCounters{
		LogCasFailCount:                       c.totalLogCasFail.Load(),
		SwapBuffersSlotRetryCount:             c.totalSwapSlotRetry.Load(),
		SwapRequestSlotsRetryCount:            c.swapRequestSlotsRetryCount,
		SwapRequestSlotsRetryRetryCount:       c.swapRequestSlotsRetryRetryCount,
		SwapRequestSlotsRetryReencounterCount: c.swapRequestSlotsRetryReencounterCount,
		StartReadingEntriesRetryCount:         c.startReadingEntriesRetryCount,
	}
}
