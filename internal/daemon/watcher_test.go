package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherCoalescesChangeBursts(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "userdata.dat")
	require.NoError(t, os.WriteFile(file, []byte("A B\n"), 0o644))

	var calls atomic.Int32
	fired := make(chan struct{}, 8)
	fw, err := NewFileWatcher([]string{file}, 100*time.Millisecond, func(context.Context) {
		calls.Add(1)
		fired <- struct{}{}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))
	defer fw.Stop(ctx)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(file, []byte("A B\n1 0\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("change callback never fired")
	}

	// Let any stray timer fire before counting.
	time.Sleep(250 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load(), "burst of writes should coalesce into one callback")
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "myconstraints.txt")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(watched, []byte("A<-B\n"), 0o644))

	var calls atomic.Int32
	fw, err := NewFileWatcher([]string{watched}, 20*time.Millisecond, func(context.Context) {
		calls.Add(1)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))
	defer fw.Stop(ctx)

	require.NoError(t, os.WriteFile(other, []byte("scratch"), 0o644))
	time.Sleep(200 * time.Millisecond)

	require.Equal(t, int32(0), calls.Load(), "writes to unwatched files must not trigger")
}

func TestWatcherSkipsEmptyPaths(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "mysettings.txt")
	require.NoError(t, os.WriteFile(file, []byte("alpha = 1000\n"), 0o644))

	fw, err := NewFileWatcher([]string{file, "", ""}, time.Second, func(context.Context) {})
	require.NoError(t, err)
	defer fw.Stop(context.Background())

	require.Len(t, fw.paths, 1)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "userdata.dat")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	fw, err := NewFileWatcher([]string{file}, time.Second, func(context.Context) {})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, fw.Start(ctx))
	require.NoError(t, fw.Stop(ctx))
	require.NoError(t, fw.Stop(ctx))
}
