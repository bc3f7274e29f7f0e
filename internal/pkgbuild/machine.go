package pkgbuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	gerrors "github.com/bnkit/gobn/internal/errors"
	"github.com/bnkit/gobn/internal/metrics"
)

// LinkOutcome classifies the textual output of the configure/link step.
type LinkOutcome int

const (
	LinkFailed LinkOutcome = iota
	LinkedNow
	AlreadyLinked
)

// Machine sequences the build of a dependency/target package pair:
// unpack -> make dependency -> link dependency into target -> make target.
// Every transition is a blocking child process; failures short-circuit the
// sequence and leave completed states intact for retry.
type Machine struct {
	runner CommandRunner
	rec    metrics.Recorder

	// CPLEX switches both make invocations to the CPLEX LP backend.
	CPLEX bool
	// Echo streams child output while commands run.
	Echo bool
}

// NewMachine constructs a Machine. A nil runner gets the default ExecRunner,
// a nil recorder the no-op one.
func NewMachine(runner CommandRunner, rec metrics.Recorder) *Machine {
	if runner == nil {
		runner = &ExecRunner{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Machine{runner: runner, rec: rec}
}

// Unpack extracts pkg's archive into its directory. Directory creation is
// idempotent; re-running against an existing unpack directory is safe. On any
// failure the unpacked flag stays false and the operation is retryable.
func (m *Machine) Unpack(ctx context.Context, pkg *Package) error {
	start := time.Now()
	err := m.unpack(ctx, pkg)
	m.observeStage("unpack_"+pkg.Name, time.Since(start), err)
	return err
}

func (m *Machine) unpack(ctx context.Context, pkg *Package) error {
	if _, err := os.Stat(pkg.Archive); err != nil {
		pkg.setUnpacked(false)
		return gerrors.Wrap(fmt.Errorf("%w: %w", ErrUnpack, err),
			gerrors.CategoryUnpack, gerrors.SeverityFatal, "source archive missing").
			WithContext("package", pkg.Name).
			WithContext("archive", pkg.Archive)
	}
	if err := os.MkdirAll(pkg.Dir, 0o755); err != nil {
		pkg.setUnpacked(false)
		return gerrors.Wrap(fmt.Errorf("%w: %w", ErrUnpack, err),
			gerrors.CategoryUnpack, gerrors.SeverityFatal, "create unpack directory").
			WithContext("package", pkg.Name).
			WithContext("dir", pkg.Dir)
	}

	slog.Info("Unpacking package", "package", pkg.Name, "archive", pkg.Archive)
	out, err := m.runner.Run(ctx, Command{
		Argv: []string{"tar", "-xzf", pkg.Archive, "-C", pkg.Dir},
		Echo: m.Echo,
	})
	if err != nil {
		pkg.setUnpacked(false)
		return gerrors.Wrap(fmt.Errorf("%w: %w", ErrUnpack, err),
			gerrors.CategoryUnpack, gerrors.SeverityFatal, "archive extraction failed").
			WithContext("package", pkg.Name).
			WithOutput(out)
	}

	pkg.setUnpacked(true)
	slog.Info("Unpack successful", "package", pkg.Name, "dir", pkg.Dir)
	return nil
}

// BuildDependency compiles the dependency package. A missing unpack is healed
// with exactly one Unpack attempt; if that fails the build does not proceed.
// On a non-zero make exit the built flag stays false and the error carries
// the captured output.
func (m *Machine) BuildDependency(ctx context.Context, dep *Package) error {
	start := time.Now()
	err := m.buildDependency(ctx, dep)
	m.observeStage("make_"+dep.Name, time.Since(start), err)
	return err
}

func (m *Machine) buildDependency(ctx context.Context, dep *Package) error {
	if !dep.Unpacked() {
		slog.Info("Dependency not unpacked, unpacking first", "package", dep.Name)
		if err := m.unpack(ctx, dep); err != nil {
			return err
		}
	}

	slog.Info("Making dependency, this may take a few minutes", "package", dep.Name)
	out, err := m.runner.Run(ctx, Command{Argv: m.makeArgv(dep.BuildDir), Echo: m.Echo})
	if err != nil {
		return gerrors.Wrap(fmt.Errorf("%w: %w", ErrMake, err),
			gerrors.CategoryBuild, gerrors.SeverityFatal, "dependency make failed").
			WithContext("package", dep.Name).
			WithOutput(out)
	}

	dep.setBuilt(true)
	slog.Info("Dependency make successful", "package", dep.Name)
	return nil
}

// LinkAndBuildTarget records the dependency's location inside the target's
// build tree, then compiles the target. If the dependency is not built yet it
// triggers exactly one BuildDependency attempt and aborts with a
// dependency-not-ready error when that fails; the target build is never
// attempted in that case.
func (m *Machine) LinkAndBuildTarget(ctx context.Context, target, dep *Package) error {
	start := time.Now()
	err := m.linkAndBuildTarget(ctx, target, dep)
	m.observeStage("link_and_make_"+target.Name, time.Since(start), err)
	return err
}

func (m *Machine) linkAndBuildTarget(ctx context.Context, target, dep *Package) error {
	if !dep.Built() {
		slog.Info("Dependency must be made before target", "dependency", dep.Name, "target", target.Name)
		if err := m.buildDependency(ctx, dep); err != nil {
			return gerrors.Wrap(fmt.Errorf("%w: %w", ErrDependencyNotReady, err),
				gerrors.CategoryDependency, gerrors.SeverityFatal, "dependency build failed").
				WithContext("dependency", dep.Name).
				WithContext("target", target.Name).
				WithOutput(gerrors.CapturedOutput(err))
		}
	}

	if !target.Unpacked() {
		slog.Info("Target not unpacked, unpacking first", "package", target.Name)
		if err := m.unpack(ctx, target); err != nil {
			return err
		}
	}

	// The configure script must run from inside the target's build tree; this
	// is the one operation with a working-directory override.
	slog.Info("Linking dependency into target", "dependency", dep.Name, "target", target.Name)
	out, err := m.runner.Run(ctx, Command{
		Argv: []string{"./configure.sh", dep.LinkPath},
		Dir:  target.BuildDir,
		Echo: m.Echo,
	})

	switch classifyLinkOutput(out) {
	case LinkedNow:
		slog.Info("Link successful", "target", target.Name)
	case AlreadyLinked:
		slog.Info("Dependency already linked, moving on", "target", target.Name)
	case LinkFailed:
		cause := error(ErrLink)
		if err != nil {
			cause = fmt.Errorf("%w: %w", ErrLink, err)
		}
		return gerrors.Wrap(cause,
			gerrors.CategoryLink, gerrors.SeverityFatal, "link step failed, target not built").
			WithContext("target", target.Name).
			WithOutput(out)
	}

	slog.Info("Making target", "package", target.Name)
	out, err = m.runner.Run(ctx, Command{Argv: m.makeArgv(target.BuildDir), Echo: m.Echo})
	if err != nil {
		return gerrors.Wrap(fmt.Errorf("%w: %w", ErrMake, err),
			gerrors.CategoryBuild, gerrors.SeverityFatal, "target make failed").
			WithContext("package", target.Name).
			WithOutput(out)
	}

	target.setBuilt(true)
	slog.Info("Target make successful", "package", target.Name)
	return nil
}

// Make runs the full sequence: build the dependency, then link and build the
// target. Both stages are short-circuited on first failure.
func (m *Machine) Make(ctx context.Context, target, dep *Package) error {
	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"make_dependency", func(ctx context.Context) error { return m.BuildDependency(ctx, dep) }},
		{"link_and_make_target", func(ctx context.Context) error { return m.LinkAndBuildTarget(ctx, target, dep) }},
	}

	for _, st := range stages {
		select {
		case <-ctx.Done():
			m.rec.IncStageResult(st.name, metrics.ResultCanceled)
			return ctx.Err()
		default:
		}
		if err := st.fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Clean deletes both package build trees and resets both states to initial.
// The source archives are left in place.
func (m *Machine) Clean(target, dep *Package) error {
	var firstErr error
	for _, pkg := range []*Package{target, dep} {
		slog.Info("Removing build tree", "package", pkg.Name, "dir", pkg.BuildDir)
		if err := os.RemoveAll(pkg.BuildDir); err != nil && firstErr == nil {
			firstErr = gerrors.Wrap(err, gerrors.CategoryFileSystem, gerrors.SeverityError, "remove build tree").
				WithContext("package", pkg.Name).
				WithContext("dir", pkg.BuildDir)
		}
		pkg.reset()
	}
	return firstErr
}

// makeArgv builds the make invocation for a build tree, honoring the CPLEX
// backend switch.
func (m *Machine) makeArgv(dir string) []string {
	argv := []string{"make"}
	if m.CPLEX {
		argv = append(argv, "LPS=cpx")
	}
	return append(argv, "-C", dir)
}

// classifyLinkOutput maps configure.sh output to a link outcome. The script
// reports "SUCCEEDED" on a fresh link and mentions "exists" when the link was
// already recorded; anything else is a failed link. Classification is textual
// because the script's exit status does not distinguish the three cases.
func classifyLinkOutput(out string) LinkOutcome {
	switch {
	case strings.Contains(out, "SUCCEEDED"):
		return LinkedNow
	case strings.Contains(out, "exists"):
		return AlreadyLinked
	default:
		return LinkFailed
	}
}

// observeStage records stage duration and result, mapping context
// cancellation apart from real failures.
func (m *Machine) observeStage(stage string, d time.Duration, err error) {
	m.rec.ObserveStageDuration(stage, d)
	switch {
	case err == nil:
		m.rec.IncStageResult(stage, metrics.ResultSuccess)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		m.rec.IncStageResult(stage, metrics.ResultCanceled)
	default:
		m.rec.IncStageResult(stage, metrics.ResultFatal)
	}
}
