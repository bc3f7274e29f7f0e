// Package solver invokes the GOBNILP binary to learn Bayesian network
// structure from discrete data. It assembles the run inputs (settings file,
// constraint file, data file) and classifies the invocation outcome from the
// exit status and captured output.
package solver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bnkit/gobn/internal/constraints"
	"github.com/bnkit/gobn/internal/dataset"
	gerrors "github.com/bnkit/gobn/internal/errors"
	"github.com/bnkit/gobn/internal/metrics"
	"github.com/bnkit/gobn/internal/pkgbuild"
	"github.com/bnkit/gobn/internal/settings"
)

// RunResult is the immutable outcome of one solver invocation. Output is the
// merged stdout/stderr stream and is kept even on success for diagnostics.
type RunResult struct {
	Success  bool
	Output   string
	Duration time.Duration
	DataPath string
}

// LearnRequest describes one structure-learning run. Exactly one of DataPath
// and Data must be set. Settings are patched into the settings file before
// the run; Constraints, when present, are encoded to the constraint file and
// the settings file is pointed at it.
type LearnRequest struct {
	DataPath string
	Data     *dataset.Table

	Settings          map[string]any
	Constraints       *constraints.Set
	AppendConstraints bool
}

// Runner invokes the solver binary. It assumes the build state machine has
// produced the binary; a missing or non-executable binary is reported as an
// invocation error before any child process is spawned.
type Runner struct {
	BinaryPath      string
	SettingsPath    string
	ConstraintsPath string
	DataDir         string

	Exec    pkgbuild.CommandRunner
	Rec     metrics.Recorder
	Echo    bool
	Timeout time.Duration // zero means no wall-clock limit
}

// Learn prepares inputs and runs the solver once. A non-zero solver exit is
// not an error: it yields a RunResult with Success false and the diagnostic
// output attached. Errors are reserved for input preparation failures and an
// unusable binary.
func (r *Runner) Learn(ctx context.Context, req LearnRequest) (*RunResult, error) {
	execRunner := r.Exec
	if execRunner == nil {
		execRunner = &pkgbuild.ExecRunner{}
	}
	rec := r.Rec
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	dataPath, updates, err := r.prepareData(req)
	if err != nil {
		return nil, err
	}

	if req.Constraints != nil && !req.Constraints.Empty() {
		if err := req.Constraints.WriteFile(r.ConstraintsPath, req.AppendConstraints); err != nil {
			return nil, err
		}
		updates["dagconstraintsfile"] = r.ConstraintsPath
	}
	for name, value := range req.Settings {
		updates[name] = value
	}

	if len(updates) > 0 {
		store := &settings.Store{Path: r.SettingsPath}
		unknown, err := store.Apply(updates)
		if err != nil {
			return nil, err
		}
		for _, u := range unknown {
			slog.Warn("Setting not recognized, skipped", "setting", u.Name)
		}
	}

	if err := r.checkBinary(); err != nil {
		return nil, err
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	slog.Info("Running GOBNILP solver, this may take a few minutes",
		"binary", r.BinaryPath, "data", dataPath)
	start := time.Now()
	out, runErr := execRunner.Run(ctx, pkgbuild.Command{
		Argv: []string{r.BinaryPath, "-g=" + r.SettingsPath, "-f=dat", dataPath},
		Echo: r.Echo,
	})
	elapsed := time.Since(start)

	result := &RunResult{
		Success:  runErr == nil,
		Output:   out,
		Duration: elapsed,
		DataPath: dataPath,
	}
	rec.ObserveRunDuration(elapsed)
	rec.IncRunOutcome(result.Success)

	if result.Success {
		slog.Info("Solver run successful", "duration", elapsed)
	} else {
		slog.Warn("Solver run failed", "duration", elapsed, "error", runErr)
	}
	return result, nil
}

// prepareData resolves the data file path, serializing an in-memory table if
// one was given, and returns the settings the data format requires.
func (r *Runner) prepareData(req LearnRequest) (string, map[string]any, error) {
	updates := make(map[string]any)

	switch {
	case req.Data != nil && req.DataPath != "":
		return "", nil, gerrors.New(gerrors.CategoryValidation, gerrors.SeverityFatal,
			"both a dataset and a data path were given")
	case req.Data != nil:
		w := &dataset.Writer{Dir: r.DataDir}
		path, dataUpdates, err := w.Write(req.Data)
		if err != nil {
			return "", nil, err
		}
		for k, v := range dataUpdates {
			updates[k] = v
		}
		return path, updates, nil
	case req.DataPath != "":
		if _, err := os.Stat(req.DataPath); err != nil {
			return "", nil, gerrors.Wrap(err, gerrors.CategoryDataset, gerrors.SeverityFatal, "data file not found").
				WithContext("path", req.DataPath)
		}
		return req.DataPath, updates, nil
	default:
		return "", nil, gerrors.New(gerrors.CategoryValidation, gerrors.SeverityFatal,
			"no dataset or data path given")
	}
}

// checkBinary verifies the solver binary exists and is executable.
func (r *Runner) checkBinary() error {
	info, err := os.Stat(r.BinaryPath)
	if err != nil {
		return gerrors.Wrap(err, gerrors.CategoryInvoke, gerrors.SeverityFatal,
			"solver binary not found, run `gobn make` first").
			WithContext("binary", r.BinaryPath)
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return gerrors.New(gerrors.CategoryInvoke, gerrors.SeverityFatal,
			fmt.Sprintf("solver binary is not executable: %s", r.BinaryPath))
	}
	return nil
}
