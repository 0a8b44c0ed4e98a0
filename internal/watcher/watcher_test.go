package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/repoindex/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DebounceMs = 20
	cfg.BatchDelayMs = 40
	return cfg
}

func TestWatcherDetectsCreateAndModify(t *testing.T) {
	root := t.TempDir()

	w, err := New(root, testConfig())
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	target := filepath.Join(root, "new.go")
	require.NoError(t, os.WriteFile(target, []byte("package p"), 0644))

	select {
	case change := <-w.Events():
		assert.Equal(t, target, change.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for create event")
	}
}

func TestWatcherDebouncesRapidWrites(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "hot.go")
	require.NoError(t, os.WriteFile(target, []byte("package p"), 0644))

	w, err := New(root, testConfig())
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(target, []byte("package p\n//v"), 0644))
		time.Sleep(5 * time.Millisecond)
	}

	received := 0
	deadline := time.After(1500 * time.Millisecond)
drain:
	for {
		select {
		case change := <-w.Events():
			assert.Equal(t, target, change.Path)
			received++
		case <-deadline:
			break drain
		}
	}
	assert.Equal(t, 1, received, "rapid writes to one path must collapse to a single debounced event")
}

func TestWatcherStopClosesCleanly(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, testConfig())
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
}

func TestWatcherExtensionFilter(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig()
	cfg.WatchExtensions = []string{".go"}

	w, err := New(root, cfg)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package p"), 0644))

	select {
	case change := <-w.Events():
		assert.Equal(t, filepath.Join(root, "main.go"), change.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for filtered event")
	}
}

func TestSchedulerBatchesAndDedupes(t *testing.T) {
	events := make(chan types.FileChange, 16)
	var gotBatches [][]types.FileChange

	done := make(chan struct{}, 4)
	sched := NewScheduler(events, Config{BatchDelayMs: 30}, func(batch []types.FileChange) {
		gotBatches = append(gotBatches, batch)
		done <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	sched.Run(ctx)
	defer func() {
		cancel()
		sched.Stop()
	}()

	events <- types.FileChange{Type: types.ChangeModified, Path: "a.go"}
	events <- types.FileChange{Type: types.ChangeModified, Path: "a.go"}
	events <- types.FileChange{Type: types.ChangeAdded, Path: "b.go"}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch dispatch")
	}

	require.Len(t, gotBatches, 1)
	assert.Len(t, gotBatches[0], 2)
}

func TestSchedulerWaitsForInFlightCallback(t *testing.T) {
	events := make(chan types.FileChange, 16)

	callbackStarted := make(chan struct{}, 4)
	release := make(chan struct{})
	var callCount int

	sched := NewScheduler(events, Config{BatchDelayMs: 20}, func(batch []types.FileChange) {
		callCount++
		callbackStarted <- struct{}{}
		<-release
	})

	ctx, cancel := context.WithCancel(context.Background())
	sched.Run(ctx)
	defer cancel()

	events <- types.FileChange{Type: types.ChangeModified, Path: "a.go"}

	select {
	case <-callbackStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("first callback never started")
	}

	// Events arriving while the callback is running must wait for a new
	// batch window that only starts once the callback returns.
	events <- types.FileChange{Type: types.ChangeModified, Path: "b.go"}
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, callCount, "second batch must not dispatch while first callback is in flight")

	close(release)

	select {
	case <-callbackStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("second callback never started after release")
	}
	assert.Equal(t, 2, callCount)

	sched.Stop()
}

func TestDedupeByPathKeepsLastEvent(t *testing.T) {
	batch := []types.FileChange{
		{Type: types.ChangeModified, Path: "a.go"},
		{Type: types.ChangeDeleted, Path: "a.go"},
		{Type: types.ChangeAdded, Path: "b.go"},
	}
	deduped := dedupeByPath(batch)
	require.Len(t, deduped, 2)
	assert.Equal(t, types.ChangeDeleted, deduped[0].Type)
	assert.Equal(t, types.ChangeAdded, deduped[1].Type)
}
