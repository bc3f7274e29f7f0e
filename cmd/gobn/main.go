package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/bnkit/gobn/internal/config"
	"github.com/bnkit/gobn/internal/constraints"
	"github.com/bnkit/gobn/internal/daemon"
	"github.com/bnkit/gobn/internal/history"
	"github.com/bnkit/gobn/internal/metrics"
	"github.com/bnkit/gobn/internal/pkgbuild"
	"github.com/bnkit/gobn/internal/settings"
	"github.com/bnkit/gobn/internal/solver"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"gobn.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration and starter settings file"`

	Make struct {
		Cplex bool `help:"Link against CPLEX instead of the bundled SoPlex"`
	} `cmd:"" help:"Unpack and build SCIP, then link and build GOBNILP"`

	Clean struct{} `cmd:"" help:"Remove the SCIP and GOBNILP build trees"`

	Settings struct {
		Set struct {
			Assignments []string `arg:"" help:"Setting assignments, e.g. gobnilp/scoring/alpha=10"`
		} `cmd:"" help:"Patch values in the solver settings file"`
	} `cmd:"" help:"Manage the solver settings file"`

	Constraints struct {
		Set struct {
			Require     []string `short:"r" help:"Required edge, child<-parent (repeatable)"`
			Forbid      []string `short:"f" help:"Forbidden edge, child<-parent (repeatable)"`
			Independent []string `short:"i" help:"Independence, e.g. 'A,B_|_C|D' (repeatable)"`
			Append      bool     `help:"Append to the constraint file instead of overwriting"`
		} `cmd:"" help:"Write structure constraints to the constraint file"`
		Show struct{} `cmd:"" help:"Print the parsed constraint file"`
	} `cmd:"" help:"Manage structure learning constraints"`

	Learn struct {
		Data string   `arg:"" help:"Path to the discrete data file"`
		Set  []string `short:"s" help:"Setting override for this run, name=value (repeatable)"`
	} `cmd:"" help:"Run GOBNILP structure learning on a data file"`

	Watch struct {
		Data string `arg:"" help:"Path to the discrete data file to watch and relearn"`
	} `cmd:"" help:"Relearn automatically whenever the solver inputs change"`

	History struct {
		Limit int `short:"n" help:"Number of runs to show" default:"20"`
	} `cmd:"" help:"Show recent solver runs"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	var err error
	switch ctx.Command() {
	case "init":
		err = runInit(CLI.Config, CLI.Init.Force)
	case "make":
		err = withConfig(runMake)
	case "clean":
		err = withConfig(runClean)
	case "settings set <assignments>":
		err = withConfig(func(cfg *config.Config) error {
			return runSettingsSet(cfg, CLI.Settings.Set.Assignments)
		})
	case "constraints set":
		err = withConfig(runConstraintsSet)
	case "constraints show":
		err = withConfig(runConstraintsShow)
	case "learn <data>":
		err = withConfig(func(cfg *config.Config) error {
			return runLearn(cfg, CLI.Learn.Data, CLI.Learn.Set)
		})
	case "watch <data>":
		err = withConfig(func(cfg *config.Config) error {
			return runWatch(cfg, CLI.Watch.Data)
		})
	case "history":
		err = withConfig(func(cfg *config.Config) error {
			return runHistory(cfg, CLI.History.Limit)
		})
	}
	if err != nil {
		slog.Error("Command failed", "command", ctx.Command(), "error", err)
		os.Exit(1)
	}
}

// withConfig loads the configuration and passes it to fn.
func withConfig(fn func(cfg *config.Config) error) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	return fn(cfg)
}

func runInit(configPath string, force bool) error {
	slog.Info("Initializing configuration", "path", configPath, "force", force)
	return config.Init(configPath, force)
}

// buildPackages assembles the two build-state packages from the configured
// archive layout. SCIP's archive creates its own top-level directory, so its
// unpack target is the parent directory; GOBNILP's archive extracts in place.
func buildPackages(cfg *config.Config) (target, dep *pkgbuild.Package) {
	target = &pkgbuild.Package{
		Name:     "gobnilp",
		Archive:  cfg.GobnilpArchive(),
		Dir:      cfg.GobnilpDir(),
		BuildDir: cfg.GobnilpDir(),
	}
	dep = &pkgbuild.Package{
		Name:     "scip",
		Archive:  cfg.ScipArchive(),
		Dir:      cfg.Scip.Dir,
		BuildDir: cfg.ScipOptDir(),
		LinkPath: cfg.ScipDir(),
	}
	return target, dep
}

func runMake(cfg *config.Config) error {
	target, dep := buildPackages(cfg)

	machine := pkgbuild.NewMachine(nil, nil)
	machine.CPLEX = cfg.Solver.CPLEX || CLI.Make.Cplex
	machine.Echo = cfg.Solver.Verbose || CLI.Verbose

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := machine.Make(ctx, target, dep); err != nil {
		return err
	}
	slog.Info("Solver built", "binary", cfg.BinaryPath())
	return nil
}

func runClean(cfg *config.Config) error {
	target, dep := buildPackages(cfg)
	machine := pkgbuild.NewMachine(nil, nil)
	return machine.Clean(target, dep)
}

func runSettingsSet(cfg *config.Config, assignments []string) error {
	updates := make(map[string]any, len(assignments))
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			return fmt.Errorf("invalid assignment %q, expected name=value", a)
		}
		updates[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	store := &settings.Store{Path: cfg.SettingsFile}
	unknown, err := store.Apply(updates)
	if err != nil {
		return err
	}
	for _, u := range unknown {
		slog.Warn("Setting not recognized, skipped", "setting", u.Name)
	}
	slog.Info("Settings updated",
		"file", cfg.SettingsFile,
		"applied", len(updates)-len(unknown),
		"skipped", len(unknown))
	return nil
}

// runConstraintsSet builds a constraint set from the edge and independence
// flags and writes it through the directive grammar, so flag values use the
// same syntax as the constraint file itself.
func runConstraintsSet(cfg *config.Config) error {
	var lines []string
	lines = append(lines, CLI.Constraints.Set.Require...)
	for _, e := range CLI.Constraints.Set.Forbid {
		if !strings.HasPrefix(e, "~") {
			e = "~" + e
		}
		lines = append(lines, e)
	}
	lines = append(lines, CLI.Constraints.Set.Independent...)
	if len(lines) == 0 {
		return fmt.Errorf("no constraints given, use --require, --forbid or --independent")
	}

	set, err := constraints.Parse(strings.Join(lines, "\n"))
	if err != nil {
		return err
	}
	if err := set.WriteFile(cfg.ConstraintsFile, CLI.Constraints.Set.Append); err != nil {
		return err
	}
	slog.Info("Constraints written", "file", cfg.ConstraintsFile, "append", CLI.Constraints.Set.Append)
	return nil
}

func runConstraintsShow(cfg *config.Config) error {
	set, err := constraints.ParseFile(cfg.ConstraintsFile)
	if err != nil {
		return err
	}
	encoded, err := set.Encode()
	if err != nil {
		return err
	}
	fmt.Print(encoded)
	return nil
}

func newRunner(cfg *config.Config, rec metrics.Recorder) *solver.Runner {
	return &solver.Runner{
		BinaryPath:      cfg.BinaryPath(),
		SettingsPath:    cfg.SettingsFile,
		ConstraintsPath: cfg.ConstraintsFile,
		DataDir:         cfg.DataDir,
		Rec:             rec,
		Echo:            cfg.Solver.Verbose || CLI.Verbose,
		Timeout:         cfg.Solver.Timeout.Std(),
	}
}

func openHistory(cfg *config.Config) (history.Store, error) {
	if cfg.History.Path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(cfg.History.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	return history.NewSQLiteStore(cfg.History.Path)
}

func runLearn(cfg *config.Config, dataPath string, overrides []string) error {
	updates := make(map[string]any, len(overrides))
	for _, a := range overrides {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			return fmt.Errorf("invalid setting override %q, expected name=value", a)
		}
		updates[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	runner := newRunner(cfg, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	started := time.Now()
	res, err := runner.Learn(ctx, solver.LearnRequest{DataPath: dataPath, Settings: updates})
	if err != nil {
		return err
	}

	if hist, herr := openHistory(cfg); herr != nil {
		slog.Warn("Run history unavailable", "error", herr)
	} else if hist != nil {
		defer hist.Close()
		rec := history.Record{
			StartedAt: started,
			Duration:  res.Duration,
			Success:   res.Success,
			DataPath:  res.DataPath,
			Output:    res.Output,
		}
		if _, err := hist.Append(ctx, rec); err != nil {
			slog.Warn("Failed to record run", "error", err)
		}
	}

	if !res.Success {
		fmt.Fprint(os.Stderr, res.Output)
		return fmt.Errorf("solver run failed after %s", res.Duration.Round(time.Millisecond))
	}
	fmt.Print(res.Output)
	return nil
}

func runWatch(cfg *config.Config, dataPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		rec      metrics.Recorder
		registry *prom.Registry
	)
	if cfg.Watch.MetricsAddr != "" {
		registry = prom.NewRegistry()
		rec = metrics.NewPrometheusRecorder(registry)
	}

	runner := newRunner(cfg, rec)

	hist, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if hist != nil {
		defer hist.Close()
	}

	d := daemon.New(runner, hist, daemon.Options{
		DataPath:    dataPath,
		WatchPaths:  []string{dataPath, cfg.SettingsFile, cfg.ConstraintsFile},
		Debounce:    cfg.Watch.Debounce.Std(),
		Interval:    cfg.Watch.Interval.Std(),
		MetricsAddr: cfg.Watch.MetricsAddr,
		Registry:    registry,
	})
	if err := d.Start(ctx); err != nil {
		return err
	}

	slog.Info("Watching for input changes, press Ctrl-C to stop")
	<-ctx.Done()

	slog.Info("Shutdown signal received, stopping")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return d.Stop(stopCtx)
}

func runHistory(cfg *config.Config, limit int) error {
	hist, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if hist == nil {
		return fmt.Errorf("run history is disabled in the configuration")
	}
	defer hist.Close()

	recs, err := hist.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	for _, r := range recs {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		fmt.Printf("%s  %-6s  %10s  %s  %s\n",
			r.StartedAt.Format(time.RFC3339),
			status,
			r.Duration.Round(time.Millisecond),
			r.ID,
			r.DataPath)
	}
	return nil
}
