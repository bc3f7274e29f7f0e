package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/bnkit/gobn/internal/history"
	"github.com/bnkit/gobn/internal/metrics"
	"github.com/bnkit/gobn/internal/solver"
)

// Options configures a watch-mode daemon.
type Options struct {
	// DataPath is the data file passed to every relearn run.
	DataPath string
	// WatchPaths are the input files whose changes trigger a relearn.
	WatchPaths []string
	// Debounce is the settle window applied to file change bursts.
	Debounce time.Duration
	// Interval, when positive, schedules an unconditional periodic relearn.
	Interval time.Duration
	// MetricsAddr, when set, serves Prometheus metrics at /metrics.
	MetricsAddr string
	// Registry backs the /metrics endpoint.
	Registry *prom.Registry
}

// Daemon reruns structure learning whenever the solver inputs change.
type Daemon struct {
	opts      Options
	runner    *solver.Runner
	hist      history.Store
	watcher   *FileWatcher
	scheduler *Scheduler
	server    *http.Server

	runMu sync.Mutex
}

// New creates a daemon around a configured solver runner. hist may be nil.
func New(runner *solver.Runner, hist history.Store, opts Options) *Daemon {
	return &Daemon{opts: opts, runner: runner, hist: hist}
}

// Start launches the watcher, the optional scheduler and the optional
// metrics endpoint. It returns once everything is running.
func (d *Daemon) Start(ctx context.Context) error {
	watcher, err := NewFileWatcher(d.opts.WatchPaths, d.opts.Debounce, d.relearn)
	if err != nil {
		return err
	}
	d.watcher = watcher
	if err := d.watcher.Start(ctx); err != nil {
		return err
	}

	if d.opts.Interval > 0 {
		sched, err := NewScheduler()
		if err != nil {
			return err
		}
		d.scheduler = sched
		if _, err := d.scheduler.SchedulePeriodicRun(ctx, d.opts.Interval, d.relearn); err != nil {
			return err
		}
		d.scheduler.Start(ctx)
	}

	if d.opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HTTPHandler(d.opts.Registry))
		d.server = &http.Server{Addr: d.opts.MetricsAddr, Handler: mux}
		go func() {
			slog.Info("Serving metrics", "addr", d.opts.MetricsAddr)
			if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server error", "error", err)
			}
		}()
	}

	slog.Info("Watch mode started",
		"data", d.opts.DataPath,
		"watched_files", len(d.opts.WatchPaths),
		"interval", d.opts.Interval)
	return nil
}

// Stop shuts down the daemon components gracefully.
func (d *Daemon) Stop(ctx context.Context) error {
	var firstErr error

	if d.watcher != nil {
		if err := d.watcher.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// relearn runs one structure learning pass. Runs are serialized so a change
// burst arriving during a long solve cannot start a second solver process.
func (d *Daemon) relearn(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	slog.Info("Relearning network structure", "data", d.opts.DataPath)
	started := time.Now()

	res, err := d.runner.Learn(ctx, solver.LearnRequest{DataPath: d.opts.DataPath})
	if err != nil {
		slog.Error("Relearn failed", "error", err)
		return
	}

	slog.Info("Relearn finished", "success", res.Success, "duration", res.Duration)

	if d.hist != nil {
		rec := history.Record{
			StartedAt: started,
			Duration:  res.Duration,
			Success:   res.Success,
			DataPath:  res.DataPath,
			Output:    res.Output,
		}
		if _, err := d.hist.Append(ctx, rec); err != nil {
			slog.Error("Failed to record run", "error", err)
		}
	}
}
