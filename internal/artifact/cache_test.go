package artifact_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowdensity/internal/artifact"
	"snowdensity/internal/artifact/artifacttest"
	"snowdensity/internal/types"
)

type fetchEvent struct {
	source  string
	outcome artifact.Outcome
}

type recordingRecorder struct {
	mu     sync.Mutex
	events []fetchEvent
}

func (r *recordingRecorder) RecordArtifactFetch(_ context.Context, _ string, source string, outcome artifact.Outcome, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fetchEvent{source, outcome})
}

func newCache(t *testing.T, d artifact.Descriptor, src artifact.Source, dir string, rec artifact.Recorder) *artifact.Cache {
	t.Helper()
	c, err := artifact.NewCache(artifact.CacheConfig{
		Descriptor:   d,
		Source:       src,
		Dir:          dir,
		FetchTimeout: 5 * time.Second,
		Recorder:     rec,
	})
	require.NoError(t, err)
	return c
}

func TestCache_LoadFetchesOnceAndPersists(t *testing.T) {
	data, d := artifacttest.Encode(t, artifacttest.NewBundle(), artifacttest.TestLocation)
	src := &artifacttest.MemorySource{Data: data}
	rec := &recordingRecorder{}
	c := newCache(t, d, src, t.TempDir(), rec)

	assert.Equal(t, artifact.Uninitialized, c.State())

	b, err := c.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, b.Ensemble())
	assert.Equal(t, "test-1", b.ModelVersion)
	assert.Equal(t, artifact.Ready, c.State())

	again, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, b, again)
	assert.Equal(t, 1, src.Calls())

	persisted, err := os.ReadFile(c.Path())
	require.NoError(t, err)
	assert.Equal(t, data, persisted)
	assert.Equal(t, []fetchEvent{{"memory", artifact.OutcomeFetched}}, rec.events)
}

func TestCache_ConcurrentLoadsShareOneFetch(t *testing.T) {
	data, d := artifacttest.Encode(t, artifacttest.NewBundle(), artifacttest.TestLocation)
	src := &artifacttest.MemorySource{Data: data, Gate: make(chan struct{})}
	c := newCache(t, d, src, t.TempDir(), nil)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*artifact.Bundle, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Load(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return c.State() == artifact.Fetching }, time.Second, time.Millisecond)
	close(src.Gate)
	wg.Wait()

	assert.Equal(t, 1, src.Calls())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestCache_ReusesPersistedCopy(t *testing.T) {
	data, d := artifacttest.Encode(t, artifacttest.NewBundle(), artifacttest.TestLocation)
	dir := t.TempDir()

	first := newCache(t, d, &artifacttest.MemorySource{Data: data}, dir, nil)
	_, err := first.Load(context.Background())
	require.NoError(t, err)

	// A fresh process with an unreachable source still loads from disk.
	offline := &artifacttest.MemorySource{Err: errors.New("network down")}
	rec := &recordingRecorder{}
	second := newCache(t, d, offline, dir, rec)

	_, err = second.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, offline.Calls())
	assert.Equal(t, []fetchEvent{{"disk", artifact.OutcomeDisk}}, rec.events)
}

func TestCache_StalePersistedCopyIsRefetched(t *testing.T) {
	data, d := artifacttest.Encode(t, artifacttest.NewBundle(), artifacttest.TestLocation)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, d.FileName()), []byte("truncated"), 0o644))

	src := &artifacttest.MemorySource{Data: data}
	c := newCache(t, d, src, dir, nil)

	_, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.Calls())
}

func TestCache_IntegrityFailureDoesNotPoison(t *testing.T) {
	data, d := artifacttest.Encode(t, artifacttest.NewBundle(), artifacttest.TestLocation)
	tampered := append([]byte(nil), data...)
	tampered[len(tampered)-1] ^= 0xff

	src := &artifacttest.MemorySource{Data: tampered}
	dir := t.TempDir()
	c := newCache(t, d, src, dir, nil)

	_, err := c.Load(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsArtifactIntegrityError(err))
	assert.False(t, types.IsArtifactFetchError(err))
	assert.Equal(t, artifact.FetchFailed, c.State())
	assert.Equal(t, err, c.LastError())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected bytes are not left in the cache directory")

	src.Data = data
	_, err = c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, artifact.Ready, c.State())
	assert.Equal(t, 2, src.Calls())
}

func TestCache_FetchFailureDoesNotPoison(t *testing.T) {
	data, d := artifacttest.Encode(t, artifacttest.NewBundle(), artifacttest.TestLocation)
	src := &artifacttest.MemorySource{Err: errors.New("connection refused")}
	c := newCache(t, d, src, t.TempDir(), nil)

	_, err := c.Load(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsArtifactFetchError(err))
	assert.Contains(t, err.Error(), "density-model@v1")

	src.Err = nil
	src.Data = data
	_, err = c.Load(context.Background())
	require.NoError(t, err)
}

func TestCache_UndecodableBundleIsIntegrityError(t *testing.T) {
	bad := artifacttest.NewBundle()
	bad.OutputUnit = "g/cm3"
	data, d := artifacttest.Encode(t, bad, artifacttest.TestLocation)

	c := newCache(t, d, &artifacttest.MemorySource{Data: data}, t.TempDir(), nil)
	_, err := c.Load(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsArtifactIntegrityError(err))

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	require.Error(t, appErr.Err)
	assert.Contains(t, appErr.Err.Error(), "g/cm3")
}

func TestCache_FetchTimeout(t *testing.T) {
	data, d := artifacttest.Encode(t, artifacttest.NewBundle(), artifacttest.TestLocation)
	src := &artifacttest.MemorySource{Data: data, Gate: make(chan struct{})}
	c, err := artifact.NewCache(artifact.CacheConfig{
		Descriptor:   d,
		Source:       src,
		Dir:          t.TempDir(),
		FetchTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = c.Load(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsArtifactFetchError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCache_CallerCancellationDoesNotAbortFetch(t *testing.T) {
	data, d := artifacttest.Encode(t, artifacttest.NewBundle(), artifacttest.TestLocation)
	src := &artifacttest.MemorySource{Data: data, Gate: make(chan struct{})}
	c := newCache(t, d, src, t.TempDir(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Load(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return c.State() == artifact.Fetching }, time.Second, time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	close(src.Gate)
	require.Eventually(t, func() bool { return c.State() == artifact.Ready }, time.Second, time.Millisecond)
	assert.Equal(t, 1, src.Calls())
}

func TestCache_Clear(t *testing.T) {
	data, d := artifacttest.Encode(t, artifacttest.NewBundle(), artifacttest.TestLocation)
	src := &artifacttest.MemorySource{Data: data}
	c := newCache(t, d, src, t.TempDir(), nil)

	_, err := c.Load(context.Background())
	require.NoError(t, err)
	require.FileExists(t, c.Path())

	require.NoError(t, c.Clear())
	assert.Equal(t, artifact.Uninitialized, c.State())
	assert.NoFileExists(t, c.Path())
	require.NoError(t, c.Clear(), "clearing an empty cache is a no-op")

	_, err = c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls())
}

func TestNewCache_RequiresCompleteDescriptor(t *testing.T) {
	_, d := artifacttest.Encode(t, artifacttest.NewBundle(), artifacttest.TestLocation)
	src := &artifacttest.MemorySource{}

	bad := d
	bad.SHA256 = "abc"
	_, err := artifact.NewCache(artifact.CacheConfig{Descriptor: bad, Source: src, Dir: t.TempDir()})
	assert.Error(t, err)

	_, err = artifact.NewCache(artifact.CacheConfig{Descriptor: d, Dir: t.TempDir()})
	assert.Error(t, err)

	_, err = artifact.NewCache(artifact.CacheConfig{Descriptor: d, Source: src})
	assert.Error(t, err)
}
