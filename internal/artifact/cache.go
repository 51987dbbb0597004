package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"snowdensity/internal/types"
)

// State is the lifecycle position of a Cache.
type State int

const (
	Uninitialized State = iota
	Fetching
	Ready
	FetchFailed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	case FetchFailed:
		return "fetch_failed"
	}
	return "unknown"
}

// Outcome labels a populate attempt in metrics.
type Outcome string

const (
	OutcomeDisk            Outcome = "disk"
	OutcomeFetched         Outcome = "fetched"
	OutcomeFetchFailed     Outcome = "fetch_failed"
	OutcomeIntegrityFailed Outcome = "integrity_failed"
)

// Recorder observes artifact acquisition.
type Recorder interface {
	RecordArtifactFetch(ctx context.Context, artifact, source string, outcome Outcome, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordArtifactFetch(context.Context, string, string, Outcome, time.Duration) {}

// DefaultFetchTimeout bounds a fetch when CacheConfig.FetchTimeout is zero.
const DefaultFetchTimeout = 2 * time.Minute

// CacheConfig configures a Cache.
type CacheConfig struct {
	Descriptor   Descriptor
	Source       Source
	Dir          string
	FetchTimeout time.Duration
	Recorder     Recorder
	Logger       *slog.Logger
}

// Cache holds one learned-model bundle. It is safe for concurrent use; at
// most one fetch runs at a time and concurrent callers share its result.
type Cache struct {
	desc    Descriptor
	source  Source
	dir     string
	timeout time.Duration
	metrics Recorder
	logger  *slog.Logger

	group singleflight.Group

	mu      sync.Mutex
	state   State
	bundle  *Bundle
	lastErr error
	// gen increments on Clear so a fetch that started before the clear does
	// not repopulate the cache.
	gen uint64
}

// NewCache validates cfg and returns an Uninitialized cache.
func NewCache(cfg CacheConfig) (*Cache, error) {
	if err := cfg.Descriptor.Validate(); err != nil {
		return nil, err
	}
	if cfg.Source == nil {
		return nil, errors.New("artifact cache requires a source")
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("artifact cache requires a directory")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Cache{
		desc:    cfg.Descriptor,
		source:  cfg.Source,
		dir:     cfg.Dir,
		timeout: cfg.FetchTimeout,
		metrics: cfg.Recorder,
		logger:  cfg.Logger.With("artifact_id", cfg.Descriptor.Key()),
	}, nil
}

// Descriptor returns the artifact the cache serves.
func (c *Cache) Descriptor() Descriptor { return c.desc }

// State reports the current lifecycle state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error of the most recent failed populate, if the
// cache is in FetchFailed.
func (c *Cache) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != FetchFailed {
		return nil
	}
	return c.lastErr
}

// Path is where the verified copy is persisted.
func (c *Cache) Path() string {
	return filepath.Join(c.dir, c.desc.FileName())
}

// Load returns the bundle, populating the cache on first use. The populate
// step is detached from ctx so that one caller giving up does not fail the
// others; it is bounded by the fetch timeout instead. Load itself returns as
// soon as ctx is done.
func (c *Cache) Load(ctx context.Context) (*Bundle, error) {
	c.mu.Lock()
	if c.state == Ready {
		b := c.bundle
		c.mu.Unlock()
		return b, nil
	}
	c.mu.Unlock()

	ch := c.group.DoChan(c.desc.Key(), func() (any, error) {
		return c.populate(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, types.NewAppError(types.ErrCodeArtifactFetch,
			"gave up waiting for artifact "+c.desc.Key(), ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Bundle), nil
	}
}

func (c *Cache) populate(ctx context.Context) (*Bundle, error) {
	c.mu.Lock()
	if c.state == Ready {
		b := c.bundle
		c.mu.Unlock()
		return b, nil
	}
	c.state = Fetching
	gen := c.gen
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b, err := c.acquire(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// Cleared mid-fetch; the callers that were waiting still get the result.
		return b, err
	}
	if err != nil {
		c.state = FetchFailed
		c.lastErr = err
		return nil, err
	}
	c.state = Ready
	c.bundle = b
	c.lastErr = nil
	return b, nil
}

func (c *Cache) acquire(ctx context.Context) (*Bundle, error) {
	start := time.Now()
	path := c.Path()

	if err := c.verifyFile(path); err == nil {
		b, err := c.decodeFile(path)
		if err != nil {
			c.metrics.RecordArtifactFetch(ctx, c.desc.Key(), "disk", OutcomeIntegrityFailed, time.Since(start))
			return nil, err
		}
		c.logger.InfoContext(ctx, "reusing persisted artifact", "path", path)
		c.metrics.RecordArtifactFetch(ctx, c.desc.Key(), "disk", OutcomeDisk, time.Since(start))
		return b, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		c.logger.WarnContext(ctx, "discarding persisted artifact", "path", path, "error", err)
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return nil, types.NewAppError(types.ErrCodeArtifactFetch, "cannot remove stale artifact copy", rmErr)
		}
	}

	c.logger.InfoContext(ctx, "fetching artifact", "source", c.source.Name(), "location", c.desc.Location)
	if err := c.download(ctx, path); err != nil {
		outcome := OutcomeFetchFailed
		if types.IsArtifactIntegrityError(err) {
			outcome = OutcomeIntegrityFailed
		}
		c.metrics.RecordArtifactFetch(ctx, c.desc.Key(), c.source.Name(), outcome, time.Since(start))
		c.logger.ErrorContext(ctx, "artifact fetch failed", "error", err)
		return nil, err
	}

	b, err := c.decodeFile(path)
	if err != nil {
		c.metrics.RecordArtifactFetch(ctx, c.desc.Key(), c.source.Name(), OutcomeIntegrityFailed, time.Since(start))
		return nil, err
	}
	c.metrics.RecordArtifactFetch(ctx, c.desc.Key(), c.source.Name(), OutcomeFetched, time.Since(start))
	c.logger.InfoContext(ctx, "artifact ready", "bytes", c.desc.Size, "elapsed", time.Since(start))
	return b, nil
}

// download streams the source into a temp file in the cache directory,
// verifies size and digest, then renames it into place.
func (c *Cache) download(ctx context.Context, path string) (err error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return types.NewAppError(types.ErrCodeArtifactFetch, "cannot create cache directory", err)
	}

	body, err := c.source.Open(ctx, c.desc)
	if err != nil {
		return types.NewAppError(types.ErrCodeArtifactFetch,
			fmt.Sprintf("fetching %s from %s", c.desc.Key(), c.source.Name()), err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(c.dir, ".fetch-*")
	if err != nil {
		return types.NewAppError(types.ErrCodeArtifactFetch, "cannot create temp file", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(body, c.desc.Size+1))
	if err != nil {
		return types.NewAppError(types.ErrCodeArtifactFetch, "reading artifact stream", err)
	}
	if err = c.checkDigest(n, h.Sum(nil)); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return types.NewAppError(types.ErrCodeArtifactFetch, "syncing artifact copy", err)
	}
	if err = tmp.Close(); err != nil {
		return types.NewAppError(types.ErrCodeArtifactFetch, "closing artifact copy", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return types.NewAppError(types.ErrCodeArtifactFetch, "installing artifact copy", err)
	}
	return nil
}

func (c *Cache) checkDigest(n int64, sum []byte) error {
	if n != c.desc.Size {
		return types.NewAppErrorWithDetails(types.ErrCodeArtifactIntegrity,
			fmt.Sprintf("artifact %s size mismatch", c.desc.Key()), nil,
			map[string]any{"want_bytes": c.desc.Size, "got_bytes": n})
	}
	if got := hex.EncodeToString(sum); !strings.EqualFold(got, c.desc.SHA256) {
		return types.NewAppErrorWithDetails(types.ErrCodeArtifactIntegrity,
			fmt.Sprintf("artifact %s checksum mismatch", c.desc.Key()), nil,
			map[string]any{"want_sha256": strings.ToLower(c.desc.SHA256), "got_sha256": got})
	}
	return nil
}

// verifyFile checks a persisted copy against the descriptor. It returns an
// error wrapping os.ErrNotExist when there is no copy.
func (c *Cache) verifyFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, io.LimitReader(f, c.desc.Size+1))
	if err != nil {
		return err
	}
	return c.checkDigest(n, h.Sum(nil))
}

func (c *Cache) decodeFile(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeArtifactFetch, "opening artifact copy", err)
	}
	defer f.Close()

	b, err := DecodeBundle(f)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeArtifactIntegrity,
			fmt.Sprintf("artifact %s is not a usable model bundle", c.desc.Key()), err)
	}
	return b, nil
}

// Clear drops the in-memory bundle and deletes the persisted copy. The next
// Load fetches again.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = Uninitialized
	c.bundle = nil
	c.lastErr = nil
	if err := os.Remove(c.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing artifact copy: %w", err)
	}
	c.logger.Info("artifact cache cleared")
	return nil
}
