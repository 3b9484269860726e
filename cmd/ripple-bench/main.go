// Command ripple-bench drives a synthetic reactive workload: a tree of
// signals and effects owned by one loop goroutine, hammered by concurrent
// writer goroutines through Senders. It reports cross-goroutine write
// latency percentiles and engine throughput, and serves Prometheus metrics
// while running.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ripple-ui/ripple/pkg/loop"
	"github.com/ripple-ui/ripple/pkg/reactive"
	"github.com/ripple-ui/ripple/pkg/resource"
	"github.com/ripple-ui/ripple/pkg/task"
)

var (
	version = "dev"
	commit  = "none"
)

type benchConfig struct {
	Signals          int
	EffectsPerSignal int
	Writers          int
	Rate             float64
	Duration         time.Duration
	Interval         time.Duration
	Listen           string
	JSONOutput       string
}

func main() {
	var cfg benchConfig

	rootCmd := &cobra.Command{
		Use:   "ripple-bench",
		Short: "Synthetic load driver for the ripple reactive engine",
		Long: `ripple-bench builds an owner tree of signals and effects on a single
loop goroutine, then writes to the signals from concurrent goroutines
through Senders. It measures the latency from Sender.Set to the last
dependent effect finishing on the owning goroutine.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.IntVar(&cfg.Signals, "signals", 100, "number of signals in the tree")
	flags.IntVar(&cfg.EffectsPerSignal, "effects", 4, "effects subscribed to each signal")
	flags.IntVar(&cfg.Writers, "writers", 8, "concurrent writer goroutines")
	flags.Float64Var(&cfg.Rate, "rate", 100, "writes/sec per writer")
	flags.DurationVar(&cfg.Duration, "duration", 30*time.Second, "benchmark duration")
	flags.DurationVar(&cfg.Interval, "interval", 100*time.Millisecond, "background interval task period")
	flags.StringVar(&cfg.Listen, "listen", "127.0.0.1:9190", "metrics listen address")
	flags.StringVar(&cfg.JSONOutput, "json", "-", "JSON report path ('-' for stdout)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func runBench(ctx context.Context, cfg benchConfig) error {
	if cfg.Signals <= 0 || cfg.Writers <= 0 || cfg.Rate <= 0 || cfg.Duration <= 0 {
		return fmt.Errorf("signals, writers, rate and duration must all be positive")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	l := loop.New(
		loop.WithLogger(logger),
		loop.WithMetrics(loop.NewMetrics(loop.WithRegistry(registry))),
	)
	exec := task.NewExecutor(l,
		task.WithLogger(logger),
		task.WithMetrics(task.NewMetrics(task.WithRegistry(registry))),
	)

	httpServer := serveMetrics(cfg.Listen, registry, logger)
	defer httpServer.Shutdown(context.Background())

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	samplesCh := make(chan time.Duration, cfg.Writers*64)
	var samples []time.Duration
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for d := range samplesCh {
			samples = append(samples, d)
		}
	}()

	var effectRuns atomic.Uint64
	var ticks atomic.Uint64
	var fetches atomic.Uint64
	senders := make(chan []loop.Sender[int64], 1)

	// The whole tree is built, driven, and torn down on the loop goroutine.
	loopDone := make(chan error, 1)
	go func() {
		root := reactive.NewOwner(nil)
		root.Mount()

		reactive.WithOwner(root, func() {
			out := make([]loop.Sender[int64], 0, cfg.Signals)
			var first *reactive.Signal[int64]
			for i := 0; i < cfg.Signals; i++ {
				sig := reactive.NewSignal[int64](0)
				if first == nil {
					first = sig
				}
				for j := 0; j < cfg.EffectsPerSignal; j++ {
					reactive.CreateEffect(func() reactive.Cleanup {
						sig.Get()
						effectRuns.Add(1)
						return nil
					})
				}
				out = append(out, loop.NewSender(l, sig))
			}
			senders <- out

			exec.SpawnInterval(cfg.Interval, func() {
				ticks.Add(1)
			})

			// Resource churn: every changed write to the first signal
			// supersedes the in-flight fetch.
			resource.NewKeyed(exec, first, func(ctx context.Context, k int64) (int64, error) {
				fetches.Add(1)
				return k, nil
			})
		})

		err := l.Run(runCtx)

		root.Unmount()
		l.DrainAndRun()
		loopDone <- err
	}()

	sendersList := <-senders
	logger.Info("benchmark started",
		"signals", cfg.Signals,
		"effects", cfg.Signals*cfg.EffectsPerSignal,
		"writers", cfg.Writers,
		"rate", cfg.Rate)

	start := time.Now()
	var writes atomic.Uint64
	var wg sync.WaitGroup
	wg.Add(cfg.Writers)
	for w := 0; w < cfg.Writers; w++ {
		writerID := w
		go func() {
			defer wg.Done()
			runWriter(runCtx, writerID, cfg, l, sendersList, &writes, samplesCh)
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)
	cancel()
	<-loopDone

	exec.Close()
	l.Close()

	close(samplesCh)
	<-collectorDone

	report := buildReport(cfg, elapsed, samples, writes.Load(), effectRuns.Load(), ticks.Load(), fetches.Load())
	writeSummary(os.Stderr, report)
	return writeJSON(cfg.JSONOutput, report)
}

// runWriter performs paced writes round-robin across the senders. Each write
// carries a follow-up dispatch that samples the time until the loop finished
// the write's propagation: the loop is FIFO, so the probe runs after every
// effect the write triggered.
func runWriter(
	ctx context.Context,
	writerID int,
	cfg benchConfig,
	l *loop.Loop,
	senders []loop.Sender[int64],
	writes *atomic.Uint64,
	samples chan<- time.Duration,
) {
	period := time.Duration(float64(time.Second) / cfg.Rate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var n int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n++
		sender := senders[(int64(writerID)+n)%int64(len(senders))]

		begin := time.Now()
		sender.Set(n)
		l.Dispatch(func() {
			d := time.Since(begin)
			select {
			case samples <- d:
			default:
				// Collector is behind; drop the sample.
			}
		})
		writes.Add(1)
	}
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

type benchReport struct {
	Version   string       `json:"version"`
	Run       runInfo      `json:"run"`
	Workload  workloadInfo `json:"workload"`
	LatencyUS latencyInfo  `json:"latency_us"`
	Engine    engineInfo   `json:"engine"`
}

type runInfo struct {
	Timestamp string  `json:"timestamp"`
	DurationS float64 `json:"duration_s"`
}

type workloadInfo struct {
	Signals          int     `json:"signals"`
	EffectsPerSignal int     `json:"effects_per_signal"`
	Writers          int     `json:"writers"`
	RatePerWriter    float64 `json:"rate_per_writer"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type engineInfo struct {
	Writes          uint64  `json:"writes_total"`
	WritesPerSec    float64 `json:"writes_per_sec"`
	EffectRuns      uint64  `json:"effect_runs_total"`
	IntervalTicks   uint64  `json:"interval_ticks"`
	ResourceFetches uint64  `json:"resource_fetches_total"`
	Samples         int     `json:"latency_samples"`
}

func buildReport(cfg benchConfig, elapsed time.Duration, samples []time.Duration, writes, effectRuns, ticks, fetches uint64) benchReport {
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var latency latencyInfo
	if len(samples) > 0 {
		latency = latencyInfo{
			Min: us(samples[0]),
			P50: us(percentile(samples, 0.50)),
			P95: us(percentile(samples, 0.95)),
			P99: us(percentile(samples, 0.99)),
			Max: us(samples[len(samples)-1]),
		}
	}

	seconds := math.Max(0.001, elapsed.Seconds())
	return benchReport{
		Version: "1",
		Run: runInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			DurationS: seconds,
		},
		Workload: workloadInfo{
			Signals:          cfg.Signals,
			EffectsPerSignal: cfg.EffectsPerSignal,
			Writers:          cfg.Writers,
			RatePerWriter:    cfg.Rate,
		},
		LatencyUS: latency,
		Engine: engineInfo{
			Writes:          writes,
			WritesPerSec:    float64(writes) / seconds,
			EffectRuns:      effectRuns,
			IntervalTicks:   ticks,
			ResourceFetches: fetches,
			Samples:         len(samples),
		},
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func us(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}

func writeSummary(w *os.File, report benchReport) {
	fmt.Fprintln(w, "=== Ripple Engine Benchmark ===")
	fmt.Fprintf(w, "Signals: %d x %d effects\n", report.Workload.Signals, report.Workload.EffectsPerSignal)
	fmt.Fprintf(w, "Writers: %d @ %.1f writes/s\n", report.Workload.Writers, report.Workload.RatePerWriter)
	fmt.Fprintf(w, "Duration: %.1fs\n", report.Run.DurationS)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Writes: %d (%.1f/s)\n", report.Engine.Writes, report.Engine.WritesPerSec)
	fmt.Fprintf(w, "Effect runs: %d\n", report.Engine.EffectRuns)
	fmt.Fprintf(w, "Interval ticks: %d\n", report.Engine.IntervalTicks)
	fmt.Fprintf(w, "Resource fetches: %d\n", report.Engine.ResourceFetches)
	fmt.Fprintln(w)
	if report.Engine.Samples == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
		return
	}
	fmt.Fprintln(w, "Write-to-propagated latency (Sender.Set -> effects done):")
	fmt.Fprintf(w, "  min: %.1f us\n", report.LatencyUS.Min)
	fmt.Fprintf(w, "  p50: %.1f us\n", report.LatencyUS.P50)
	fmt.Fprintf(w, "  p95: %.1f us\n", report.LatencyUS.P95)
	fmt.Fprintf(w, "  p99: %.1f us\n", report.LatencyUS.P99)
	fmt.Fprintf(w, "  max: %.1f us\n", report.LatencyUS.Max)
}

func writeJSON(path string, report benchReport) error {
	var out *os.File
	if path == "-" {
		out = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
