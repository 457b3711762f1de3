package mlbench

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"

	"go.uber.org/zap"
)

// fmtErrorf mirrors the teacher's fmtErrorf: every error this package
// returns carries the same "mlbench: " prefix so callers can recognize it
// without a sentinel type for every case.
func fmtErrorf(format string, args ...any) error {
	return fmt.Errorf("mlbench: "+format, args...)
}

// logErrorSync serializes a diagnostic about the core itself — a capacity
// warning, a StopLogging call refused on the I/O goroutine — directly to the
// internal zap logger, bypassing the lock-free Entry path entirely. Grounded
// on the teacher's internalLog, upgraded to zap per SPEC_FULL.md §7.
func (c *Core) logErrorSync(msg string, fields ...zap.Field) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.logger.Warn(msg, fields...)
}

// fatalf reports a broken protocol invariant and aborts the process, the Go
// equivalent of the original's abort()-on-corruption. zap's Fatal level
// logs then calls os.Exit(1), so the message is still visible before the
// process dies.
func (c *Core) fatalf(format string, args ...any) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.logger.Fatal(fmt.Sprintf(format, args...))
}

// currentGoroutineID extracts the running goroutine's id from its own stack
// trace header ("goroutine 123 [running]:"). Go exposes no public API for
// this; it exists here purely as a narrow, non-hot-path diagnostic used to
// detect StopLogging being called back from the I/O goroutine itself
// (spec.md §4.4/§7) and to key the package-level convenience Log cache
// (§6.2). It must never be used on a path where correctness, not
// diagnostics, is at stake.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return 0
	}
	b = b[len(prefix):]
	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(b[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
