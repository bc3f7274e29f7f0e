package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnkit/gobn/internal/history"
	"github.com/bnkit/gobn/internal/pkgbuild"
	"github.com/bnkit/gobn/internal/solver"
)

type countingExec struct {
	calls atomic.Int32
	fired chan struct{}
}

func (c *countingExec) Run(_ context.Context, cmd pkgbuild.Command) (string, error) {
	c.calls.Add(1)
	select {
	case c.fired <- struct{}{}:
	default:
	}
	return "BN score: -1042.3\n", nil
}

func testRunner(t *testing.T, exec pkgbuild.CommandRunner) (*solver.Runner, string) {
	t.Helper()
	dir := t.TempDir()

	binary := filepath.Join(dir, "gobnilp")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755))

	dataPath := filepath.Join(dir, "userdata.dat")
	require.NoError(t, os.WriteFile(dataPath, []byte("A B\n1 0\n"), 0o644))

	return &solver.Runner{
		BinaryPath:   binary,
		SettingsPath: filepath.Join(dir, "mysettings.txt"),
		Exec:         exec,
	}, dataPath
}

func TestDaemonRelearnsOnDataChange(t *testing.T) {
	exec := &countingExec{fired: make(chan struct{}, 1)}
	runner, dataPath := testRunner(t, exec)

	hist, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer hist.Close()

	d := New(runner, hist, Options{
		DataPath:   dataPath,
		WatchPaths: []string{dataPath},
		Debounce:   50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))
	defer d.Stop(context.Background())

	require.NoError(t, os.WriteFile(dataPath, []byte("A B\n0 1\n"), 0o644))

	select {
	case <-exec.fired:
	case <-time.After(3 * time.Second):
		t.Fatal("solver never invoked after data change")
	}

	// The history append happens after the solver returns.
	require.Eventually(t, func() bool {
		recs, err := hist.Recent(context.Background(), 10)
		return err == nil && len(recs) == 1
	}, 2*time.Second, 20*time.Millisecond)

	recs, err := hist.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, recs[0].Success)
	assert.Equal(t, dataPath, recs[0].DataPath)
}

func TestDaemonStopWithoutOptionalComponents(t *testing.T) {
	exec := &countingExec{fired: make(chan struct{}, 1)}
	runner, dataPath := testRunner(t, exec)

	d := New(runner, nil, Options{
		DataPath:   dataPath,
		WatchPaths: []string{dataPath},
	})

	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Stop(ctx))
}

func TestDaemonRelearnAbortsOnCanceledContext(t *testing.T) {
	exec := &countingExec{fired: make(chan struct{}, 1)}
	runner, dataPath := testRunner(t, exec)

	d := New(runner, nil, Options{DataPath: dataPath})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.relearn(ctx)

	assert.Equal(t, int32(0), exec.calls.Load())
}
