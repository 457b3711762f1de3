package mlbench

import "testing"

// BenchmarkHandleLog benchmarks the hot path: one Handle, repeated Log
// calls, no contention. Grounded on the teacher's BenchmarkLoggerInfo.
func BenchmarkHandleLog(b *testing.B) {
	core, err := NewCore(DefaultConfig(), NewDiscardSink())
	if err != nil {
		b.Fatal(err)
	}
	h := core.Handle()
	defer h.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Log(func(Sink) {})
	}
}

// BenchmarkConcurrentHandleLog benchmarks many producers logging
// concurrently against one Core, with no I/O thread draining — isolating
// producer-side contention cost. Grounded on the teacher's
// BenchmarkConcurrentLogging.
func BenchmarkConcurrentHandleLog(b *testing.B) {
	core, err := NewCore(DefaultConfig(), NewDiscardSink())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		h := core.Handle()
		defer h.Close()
		for pb.Next() {
			h.Log(func(Sink) {})
		}
	})
}
