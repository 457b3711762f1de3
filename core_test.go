package mlbench

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// recordingSink is a minimal Sink used by tests to observe what actually
// reached the I/O side, grounded on the teacher's use of a bytes.Buffer
// target in logger_test.go/integration_test.go, adapted to this package's
// Sink shape.
type recordingSink struct {
	mu      sync.Mutex
	detail  []string
	summary []string
	flushes int
}

func newRecordingSink() *recordingSink { return &recordingSink{} }

func (s *recordingSink) AppendDetail(line string) {
	s.mu.Lock()
	s.detail = append(s.detail, line)
	s.mu.Unlock()
}
func (s *recordingSink) AppendSummary(line string) {
	s.mu.Lock()
	s.summary = append(s.summary, line)
	s.mu.Unlock()
}
func (s *recordingSink) AppendTraceEvent(string, ...any) {}
func (s *recordingSink) ScopedTrace(string, ...any) TraceScope { return func() {} }
func (s *recordingSink) SetTracePidTid(string)                 {}
func (s *recordingSink) Flush() {
	s.mu.Lock()
	s.flushes++
	s.mu.Unlock()
}
func (s *recordingSink) SetOutputStreams(io.Writer, io.Writer, time.Time) {}
func (s *recordingSink) StartNewTrace(io.Writer, time.Time)               {}
func (s *recordingSink) StopTrace()                                      {}
func (s *recordingSink) RestartLatencyRecording()                        {}
func (s *recordingSink) GetLatenciesBlocking(int) []time.Duration         { return nil }

func (s *recordingSink) detailLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.detail))
	copy(out, s.detail)
	return out
}

func startedCore(t *testing.T, sink Sink) *Core {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PollPeriod = time.Millisecond
	core, err := NewCore(cfg, sink)
	require.NoError(t, err)
	require.NoError(t, core.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = core.Stop(ctx)
	})
	return core
}

// S1: a single producer's entries appear in submission order.
func TestScenarioSingleProducerFIFO(t *testing.T) {
	sink := newRecordingSink()
	core := startedCore(t, sink)

	h := core.Handle()
	defer h.Close()
	for i := 0; i < 100; i++ {
		i := i
		h.Log(func(s Sink) { s.AppendDetail(fmt.Sprintf("%d", i)) })
	}

	require.NoError(t, core.StopLogging(context.Background()))

	var seen []string
	for _, l := range sink.detailLines() {
		if !strings.Contains(l, ":") { // skip the contention-counter block's lines
			seen = append(seen, l)
		}
	}
	require.Len(t, seen, 100)
	for i, l := range seen {
		assert.Equal(t, fmt.Sprintf("%d", i), l)
	}
}

// S2: many producers logging concurrently must all be drained, with no
// entry lost or duplicated, even though cross-producer order is undefined.
func TestScenarioManyProducersNoLoss(t *testing.T) {
	sink := newRecordingSink()
	core := startedCore(t, sink)

	const producers = 32
	const perProducer = 200
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h := core.Handle()
			defer h.Close()
			for i := 0; i < perProducer; i++ {
				h.Log(func(s Sink) { s.AppendDetail("x") })
			}
		}(p)
	}
	wg.Wait()

	require.NoError(t, core.StopLogging(context.Background()))

	var count int
	for _, l := range sink.detailLines() {
		if l == "x" {
			count++
		}
	}
	assert.Equal(t, producers*perProducer, count)
}

// S3: a producer that logs once and exits without further activity (via
// Handle.Close) must still have its entry delivered.
func TestScenarioProducerExitsAfterOneEntry(t *testing.T) {
	sink := newRecordingSink()
	core := startedCore(t, sink)

	h := core.Handle()
	h.Log(func(s Sink) { s.AppendDetail("last-words") })
	h.Close()

	require.NoError(t, core.StopLogging(context.Background()))

	found := false
	for _, l := range sink.detailLines() {
		if l == "last-words" {
			found = true
		}
	}
	assert.True(t, found, "an orphaned producer's entries must still be delivered")
}

// S4: closing a Handle transfers it to the orphan list and it is reaped
// once fully drained.
func TestScenarioOrphanReaped(t *testing.T) {
	sink := newRecordingSink()
	core := startedCore(t, sink)

	h := core.Handle()
	h.Log(func(Sink) {})
	h.Close()

	require.Eventually(t, func() bool {
		core.orphanMu.Lock()
		defer core.orphanMu.Unlock()
		return core.orphans.Len() == 0
	}, 2*time.Second, time.Millisecond, "orphan must be reaped once drained")
}

// S5: StopLogging called from the I/O goroutine itself must be refused
// rather than deadlock.
func TestScenarioStopLoggingFromIOThreadRefused(t *testing.T) {
	sink := newRecordingSink()
	core := startedCore(t, sink)

	errCh := make(chan error, 1)
	h := core.Handle()
	defer h.Close()
	h.Log(func(Sink) {
		errCh <- core.StopLogging(context.Background())
	})

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("StopLogging called from the I/O goroutine must return promptly, not deadlock")
	}
}

// S6: Stop drains in-flight entries before the I/O goroutine exits.
func TestScenarioStopDrainsBeforeExit(t *testing.T) {
	sink := newRecordingSink()
	cfg := DefaultConfig()
	cfg.PollPeriod = time.Millisecond
	core, err := NewCore(cfg, sink)
	require.NoError(t, err)
	require.NoError(t, core.Start(context.Background()))

	h := core.Handle()
	h.Log(func(s Sink) { s.AppendDetail("before-stop") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, core.Stop(ctx))

	found := false
	for _, l := range sink.detailLines() {
		if l == "before-stop" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCoreRegisterWarnsPastMaxThreads(t *testing.T) {
	sink := newRecordingSink()
	cfg := DefaultConfig()
	cfg.MaxThreads = 1
	obsCore, warnings := observer.New(zap.WarnLevel)
	cfg.InternalLogger = zap.New(obsCore)
	core, err := NewCore(cfg, sink)
	require.NoError(t, err)

	h1 := core.Handle()
	defer h1.Close()
	assert.Equal(t, 0, warnings.Len(), "registering within MaxThreads must not warn")
	h2 := core.Handle() // exceeds MaxThreads=1, must still work (degrade gracefully)
	defer h2.Close()
	assert.Equal(t, 1, warnings.Len(), "registering past MaxThreads must log one capacity warning")

	done := make(chan struct{})
	h2.Log(func(Sink) { close(done) })

	require.NoError(t, core.Start(context.Background()))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("excess producer beyond MaxThreads must still be drained")
	}
	_ = core.Stop(context.Background())
}
