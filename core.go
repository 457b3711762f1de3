package mlbench

import (
	"container/list"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// slotRetry remembers a swap-ring slot the I/O thread saw holding a
// writable marker when it expected a pointer (the producer's CAS in
// swapRing.post hadn't landed yet), to be retried on a later tick. Grounded
// on logging.cc's Logger::SlotRetry / swap_request_slots_to_retry_.
type slotRetry struct {
	slot   int
	nextID uint64
}

// Core is the Go rendition of spec.md's LoggerCore: it owns the Sink, the
// swap ring, the set of live producers, the orphan list of producers that
// have exited but may still have unread entries, and the single I/O
// goroutine that drains everything. Grounded on logging.cc's Logger class.
type Core struct {
	cfg atomic.Pointer[Config]

	sink Sink
	ring *swapRing

	registryMu sync.Mutex
	registry   map[*threadLog]struct{}

	orphanMu sync.Mutex
	orphans  *list.List // of *threadLog

	// consumer-only state: touched exclusively by the I/O goroutine, so it
	// needs no synchronization at all.
	slotsToRetry   []slotRetry
	deferredSwap   []*threadLog
	toRead         []*threadLog
	orphansDone    []*list.Element

	swapRequestSlotsRetryCount            uint64
	swapRequestSlotsRetryRetryCount       uint64
	swapRequestSlotsRetryReencounterCount uint64
	startReadingEntriesRetryCount         uint64

	totalLogCasFail    atomic.Uint64
	totalSwapSlotRetry atomic.Uint64

	producerHandles sync.Map // goroutine id (uint64) -> *Handle
	nextProducerID  atomic.Uint64

	ioGoroutineID atomic.Uint64 // 0 means "not running"
	ioWG          sync.WaitGroup
	stopCh        chan struct{}
	running       atomic.Bool

	logger *zap.Logger
	errMu  sync.Mutex

	pid string
}

// NewCore constructs a Core around sink with cfg (cloned and validated).
// Grounded on the teacher's NewLogger + ApplyConfig sequence.
func NewCore(cfg *Config, sink Sink) (*Core, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = NewDiscardSink()
	}

	logger := cfg.InternalLogger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Core{
		sink:     sink,
		ring:     newSwapRing(2 * cfg.MaxThreads),
		registry: make(map[*threadLog]struct{}),
		orphans:  list.New(),
		logger:   logger,
		pid:      processIdentity(),
	}
	c.cfg.Store(cfg)
	return c, nil
}

func (c *Core) loadConfig() *Config { return c.cfg.Load() }
func (c *Core) storeConfig(cfg *Config) { c.cfg.Store(cfg) }

// Handle allocates and registers a new per-producer Handle. Grounded on
// logging.cc's RegisterTlsLogger via TlsLoggerWrapper's constructor.
func (c *Core) Handle() *Handle {
	id := c.nextProducerID.Add(1)
	tl := newThreadLog(c, identityFor(c.pid, id))
	c.register(tl)
	h := &Handle{tl: tl}
	attachFinalizer(h)
	return h
}

// Log submits entry through a Handle cached per calling goroutine, the
// convenience counterpart to Handle.Log described in SPEC_FULL.md §6.2.
// Prefer obtaining and holding a *Handle explicitly on a hot path: this
// cache is keyed by a goroutine-id snapshot (see currentGoroutineID) which
// is diagnostic-grade, not a language guarantee, and a goroutine that never
// calls Handle.Close leaks its threadLog until process exit.
func (c *Core) Log(entry Entry) {
	gid := currentGoroutineID()
	if v, ok := c.producerHandles.Load(gid); ok {
		v.(*Handle).Log(entry)
		return
	}
	h := c.Handle()
	c.producerHandles.Store(gid, h)
	h.Log(entry)
}

// requestSwap posts a swap request for tl onto the ring. Grounded on
// logging.cc's Logger::RequestSwapBuffers, called from TlsLogger::Log.
func (c *Core) requestSwap(tl *threadLog) {
	c.ring.post(tl)
}

// register adds tl to the live registry, warning (not refusing) once the
// registry grows past MaxThreads — the resolved Open Question from
// spec.md §9: excess producers still work, just without a slot in the ring
// sized for them, so their swap requests will contend more.
func (c *Core) register(tl *threadLog) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	if len(c.registry) >= c.loadConfig().MaxThreads {
		c.logErrorSync("producer count exceeds configured max_threads; continuing with degraded swap-ring locality",
			zap.Int("max_threads", c.loadConfig().MaxThreads), zap.Int("registered", len(c.registry)))
	}
	c.registry[tl] = struct{}{}
}

// unregister moves tl from the live registry into the orphan list and
// queues its eventual removal as a deferred Entry the I/O thread executes
// once it has drained tl for the last time. Grounded on logging.cc's
// UnRegisterTlsLogger / TlsLoggerWrapper destructor.
func (c *Core) unregister(tl *threadLog) {
	c.registryMu.Lock()
	delete(c.registry, tl)
	c.registryMu.Unlock()

	c.orphanMu.Lock()
	el := c.orphans.PushBack(tl)
	c.orphanMu.Unlock()

	tl.log(func(Sink) {
		c.collectThreadLogStats(tl)
		c.orphansDone = append(c.orphansDone, el)
	})
}

func (c *Core) collectThreadLogStats(tl *threadLog) {
	casFail, slotRetry := tl.drainCounters()
	c.totalLogCasFail.Add(casFail)
	c.totalSwapSlotRetry.Add(slotRetry)
}

// Start launches the I/O goroutine. Grounded on logging.cc's
// Logger::StartIOThread.
func (c *Core) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmtErrorf("core already started")
	}
	c.stopCh = make(chan struct{})
	c.ioWG.Add(1)
	go c.ioThreadLoop()
	return nil
}

// Stop signals the I/O goroutine to run one final poll pass and exit, and
// waits for it, honoring ctx's deadline. Grounded on logging.cc's
// Logger::StopIOThread.
func (c *Core) Stop(ctx context.Context) error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	close(c.stopCh)

	done := make(chan struct{})
	go func() {
		c.ioWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Core) ioThreadLoop() {
	defer c.ioWG.Done()

	c.ioGoroutineID.Store(currentGoroutineID())
	defer c.ioGoroutineID.Store(0)

	ticker := time.NewTicker(c.loadConfig().PollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			c.pollOnce()
			return
		case <-ticker.C:
		}
		c.pollOnce()
	}
}

// pollOnce runs one Gather/Process/Flush/Reap cycle, grounded on
// logging.cc's Logger::IOThread loop body (lines ~300-360).
func (c *Core) pollOnce() {
	threadsToSwap := c.deferredSwap
	c.deferredSwap = nil

	c.gatherRetrySwapRequests(&threadsToSwap)
	c.gatherNewSwapRequests(&threadsToSwap)

	for _, tl := range threadsToSwap {
		if tl.readBufferHasBeenConsumed() {
			tl.swapBuffers()
			c.toRead = append(c.toRead, tl)
		} else {
			c.deferredSwap = append(c.deferredSwap, tl)
		}
	}

	remaining := c.toRead[:0]
	for _, tl := range c.toRead {
		entries := tl.startReadingEntries()
		if entries == nil {
			c.startReadingEntriesRetryCount++
			remaining = append(remaining, tl)
			continue
		}
		c.sink.SetTracePidTid(tl.pidTid)
		for _, e := range *entries {
			e(c.sink)
		}
		tl.finishReadingEntries()
	}
	c.toRead = remaining

	c.sink.Flush()

	if len(c.orphansDone) > 0 {
		c.orphanMu.Lock()
		for _, el := range c.orphansDone {
			c.orphans.Remove(el)
		}
		c.orphanMu.Unlock()
		c.orphansDone = c.orphansDone[:0]
	}
}

// gatherNewSwapRequests claims every ring slot posted since the last tick.
// Grounded on logging.cc's Logger::GatherNewSwapRequests.
func (c *Core) gatherNewSwapRequests(threadsToSwap *[]*threadLog) {
	end := c.ring.nextID.Load()
	ringLen := uint64(len(c.ring.slots))
	for ; c.ring.readID < end; c.ring.readID++ {
		slot := int(c.ring.readID % ringLen)
		nextID := c.ring.readID + ringLen
		tl, pending, violated := c.ring.claim(slot, nextID)
		switch {
		case violated:
			c.fatalf("swapRing: slot %d CAS violated protocol invariant", slot)
			return
		case pending:
			c.swapRequestSlotsRetryCount++
			c.rememberRetry(slot, nextID)
		default:
			*threadsToSwap = append(*threadsToSwap, tl)
		}
	}
}

// gatherRetrySwapRequests re-attempts every previously pending slot.
// Grounded on logging.cc's Logger::GatherRetrySwapRequests.
func (c *Core) gatherRetrySwapRequests(threadsToSwap *[]*threadLog) {
	pending := c.slotsToRetry
	c.slotsToRetry = nil
	for _, sr := range pending {
		tl, stillPending, violated := c.ring.claim(sr.slot, sr.nextID)
		switch {
		case violated:
			c.fatalf("swapRing: slot %d CAS violated protocol invariant on retry", sr.slot)
			return
		case stillPending:
			c.swapRequestSlotsRetryRetryCount++
			c.slotsToRetry = append(c.slotsToRetry, sr)
		default:
			*threadsToSwap = append(*threadsToSwap, tl)
		}
	}
}

func (c *Core) rememberRetry(slot int, nextID uint64) {
	for i := range c.slotsToRetry {
		if c.slotsToRetry[i].slot == slot {
			c.slotsToRetry[i].nextID = nextID
			c.swapRequestSlotsRetryReencounterCount++
			return
		}
	}
	c.slotsToRetry = append(c.slotsToRetry, slotRetry{slot: slot, nextID: nextID})
}

// StartLogging rewires the Sink's output streams. Grounded on
// logging.cc's Logger::StartLogging.
func (c *Core) StartLogging(summary, detail io.Writer) {
	c.sink.SetOutputStreams(summary, detail, time.Now())
}

// StopLogging flushes every registered and orphaned producer's pending
// contention counters into the Sink as a detail block, then flushes this
// caller's own entries and waits for confirmation. It refuses to run when
// called from the I/O goroutine itself, since that would deadlock waiting
// on itself — grounded on logging.cc's Logger::StopLogging guard and its
// final counter dump (lines 237-250).
func (c *Core) StopLogging(ctx context.Context) error {
	if c.ioGoroutineID.Load() != 0 && c.ioGoroutineID.Load() == currentGoroutineID() {
		c.logErrorSync("StopLogging called from the I/O goroutine; ignoring")
		return fmtErrorf("StopLogging called from the I/O goroutine")
	}

	c.registryMu.Lock()
	for tl := range c.registry {
		c.collectThreadLogStats(tl)
	}
	c.registryMu.Unlock()

	c.orphanMu.Lock()
	for el := c.orphans.Front(); el != nil; el = el.Next() {
		c.collectThreadLogStats(el.Value.(*threadLog))
	}
	c.orphanMu.Unlock()

	snap := c.Snapshot()
	c.Log(func(s Sink) {
		s.AppendDetail("Log Contention Counters:")
		for _, line := range snap.Lines() {
			s.AppendDetail(line)
		}
	})

	return c.flushCallerEntries(ctx)
}

// flushCallerEntries posts a sentinel Entry and blocks until the I/O thread
// has executed it, giving the caller a synchronous "everything I logged
// before this point has been written" guarantee. Grounded on spec.md §5's
// "post a sentinel entry and wait on a one-shot signal bound to it".
func (c *Core) flushCallerEntries(ctx context.Context) error {
	done := make(chan struct{})
	c.Log(func(Sink) { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartNewTrace begins writing trace events to stream. Grounded on
// logging.cc's Logger::StartNewTrace.
func (c *Core) StartNewTrace(stream io.Writer, origin time.Time) {
	c.sink.StartNewTrace(stream, origin)
}

// StopTracing flushes then stops tracing. Grounded on logging.cc's
// Logger::StopTracing.
func (c *Core) StopTracing(ctx context.Context) error {
	if err := c.flushCallerEntries(ctx); err != nil {
		return err
	}
	c.sink.StopTrace()
	return nil
}

// RestartLatencyRecording clears buffered latency samples.
func (c *Core) RestartLatencyRecording() {
	c.sink.RestartLatencyRecording()
}

// GetLatenciesBlocking blocks until n latency samples are available or ctx
// is done.
func (c *Core) GetLatenciesBlocking(ctx context.Context, n int) ([]time.Duration, error) {
	type result struct {
		latencies []time.Duration
	}
	resCh := make(chan result, 1)
	go func() {
		resCh <- result{latencies: c.sink.GetLatenciesBlocking(n)}
	}()
	select {
	case r := <-resCh:
		return r.latencies, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
