// Command mlbenchlog is a scripted load generator for the mlbench logging
// core: it spins up N producer goroutines logging at a configurable rate
// for a configurable duration, then stops the I/O thread and prints the
// contention counters. Grounded on the teacher's cmd/stress/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/panjf2000/gnet/v2"
	"github.com/sf-wind/mlbenchlog"
	"github.com/sf-wind/mlbenchlog/ctrlserver"
	"github.com/sf-wind/mlbenchlog/statsserver"
	"github.com/sf-wind/mlbenchlog/textsink"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a TOML config file (poll_period_ms, max_threads)")
		producers  = flag.Int("producers", 64, "number of concurrent producer goroutines")
		rate       = flag.Int("rate", 1000, "entries per second, per producer")
		duration   = flag.Duration("duration", 5*time.Second, "how long to run the load")
		format     = flag.String("format", "txt", "sink format: txt or json")
		statsAddr  = flag.String("stats-addr", "", "if set, serve /healthz and /stats on this address for the run's duration")
		ctrlAddr   = flag.String("ctrl-addr", "", "if set, serve a gnet control listener (STOP/FLUSH/RESTART-LATENCY) on this address, e.g. tcp://:9600")
	)
	flag.Parse()

	cfg := mlbench.DefaultConfig()
	if *configPath != "" {
		loaded, err := mlbench.NewConfigFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mlbenchlog: failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	sink := textsink.New(textsink.Config{Format: *format}, os.Stdout, os.Stderr)

	core, err := mlbench.NewCore(cfg, sink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mlbenchlog: failed to build core: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nmlbenchlog: signal received, stopping early")
		cancel()
	}()

	if err := core.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "mlbenchlog: failed to start I/O thread: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("mlbenchlog: %d producers, %d entries/sec each, for %s\n", *producers, *rate, *duration)
	runWithAncillaryServers(ctx, core, *producers, *rate, *duration, *statsAddr, *ctrlAddr)

	fmt.Println("mlbenchlog: stopping")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := core.StopLogging(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "mlbenchlog: StopLogging error: %v\n", err)
	}
	if err := core.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "mlbenchlog: Stop error: %v\n", err)
	}

	snap := core.Snapshot()
	fmt.Println("--- Contention Counters ---")
	for _, line := range snap.Lines() {
		fmt.Println(line)
	}
}

// runWithAncillaryServers drives the load generator and, when configured,
// the stats/control servers as one errgroup so that a failure in any of
// them (or the load run simply finishing) brings the others down cleanly,
// using golang.org/x/sync/errgroup the way a supervised set of sibling
// goroutines is coordinated elsewhere in the ecosystem this repo draws from.
func runWithAncillaryServers(ctx context.Context, core *mlbench.Core, producers, rate int, duration time.Duration, statsAddr, ctrlAddr string) {
	eg, egCtx := errgroup.WithContext(ctx)
	loadDone := make(chan struct{})

	eg.Go(func() error {
		defer close(loadDone)
		runLoad(egCtx, core, producers, rate, duration)
		return nil
	})

	if statsAddr != "" {
		srv := statsserver.New(core)
		eg.Go(func() error {
			if err := srv.ListenAndServe(statsAddr); err != nil {
				return fmt.Errorf("stats server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			select {
			case <-egCtx.Done():
			case <-loadDone:
			}
			return srv.Shutdown()
		})
	}

	if ctrlAddr != "" {
		srv := ctrlserver.New(core, 5*time.Second)
		eg.Go(func() error {
			if err := srv.Run(ctrlAddr); err != nil {
				return fmt.Errorf("control server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			select {
			case <-egCtx.Done():
			case <-loadDone:
			}
			return gnet.Stop(context.Background(), ctrlAddr)
		})
	}

	if err := eg.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "mlbenchlog: %v\n", err)
	}
}

func runLoad(ctx context.Context, core *mlbench.Core, producers, rate int, duration time.Duration) {
	loadCtx, loadCancel := context.WithTimeout(ctx, duration)
	defer loadCancel()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h := core.Handle()
			defer h.Close()

			interval := time.Second / time.Duration(max(rate, 1))
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			seq := 0
			for {
				select {
				case <-loadCtx.Done():
					return
				case <-ticker.C:
					seq++
					workerID, seqNo := id, seq
					payload := rand.Int63()
					h.Log(func(s mlbench.Sink) {
						s.AppendDetail(fmt.Sprintf("worker=%d seq=%d payload=%d", workerID, seqNo, payload))
					})
				}
			}
		}(p)
	}
	wg.Wait()
}
