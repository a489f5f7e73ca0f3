// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/modforge/modforge/pkg/metadata"
	"github.com/modforge/modforge/pkg/semver"
)

// ArchiveExt is the extension of cached release archives.
const ArchiveExt = ".tar.gz"

// ErrFetchFailed is the sentinel error wrapped by FetchFailedError.
var ErrFetchFailed = errors.New("fetch failed")

type (
	// Fetcher obtains the archive bytes of one release. Implementations own
	// transport concerns such as authentication, retries and timeouts.
	Fetcher interface {
		Fetch(ctx context.Context, name metadata.ModuleName, version semver.Version) (io.ReadCloser, error)
	}

	// FetcherFunc adapts a function to Fetcher.
	FetcherFunc func(ctx context.Context, name metadata.ModuleName, version semver.Version) (io.ReadCloser, error)

	// FetchFailedError reports a release that could not be downloaded.
	FetchFailedError struct {
		Name    metadata.ModuleName
		Version semver.Version
		Err     error
	}

	// Entry is one cached release.
	Entry struct {
		Name    metadata.ModuleName
		Version semver.Version
		Path    string
	}

	// Option configures a Cache.
	Option func(*Cache)

	// Cache is a local store of release archives. It is safe for concurrent use.
	Cache struct {
		dir     string
		fetcher Fetcher
		logger  *log.Logger
		metrics *Metrics

		group singleflight.Group
		mu    sync.RWMutex
		// entries maps "owner-name@version" to a registered archive path.
		entries map[string]string
	}
)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, name metadata.ModuleName, version semver.Version) (io.ReadCloser, error) {
	return f(ctx, name, version)
}

// Error implements the error interface.
func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Name, e.Version, e.Err)
}

// Unwrap returns both the sentinel and the transport error.
func (e *FetchFailedError) Unwrap() []error { return []error{ErrFetchFailed, e.Err} }

// WithLogger sets the logger used for cache activity.
func WithLogger(l *log.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables counters.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New returns a cache rooted at dir that fills misses from fetcher. The
// directory is created lazily.
func New(dir string, fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		dir:     dir,
		fetcher: fetcher,
		logger:  log.New(io.Discard),
		entries: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

// Path returns where the archive of name at version is stored, whether or
// not it is cached.
func (c *Cache) Path(name metadata.ModuleName, version semver.Version) string {
	file := name.String() + "-" + version.String() + ArchiveExt
	return filepath.Join(c.dir, name.Owner(), name.Name(), file)
}

// Retrieve returns the local path of the release archive, fetching it on a
// miss. Concurrent calls for the same release share one fetch.
func (c *Cache) Retrieve(ctx context.Context, name metadata.ModuleName, version semver.Version) (string, error) {
	key := name.String() + "@" + version.String()
	if path, ok := c.lookup(key, name, version); ok {
		c.count(func(m *Metrics) { m.Hits.Inc() })
		return path, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A caller that lost the race may arrive after the winner registered.
		if path, ok := c.lookup(key, name, version); ok {
			return path, nil
		}
		c.count(func(m *Metrics) { m.Misses.Inc() })
		path, err := c.fetch(ctx, name, version)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.entries[key] = path
		c.mu.Unlock()
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// lookup returns a registered path, adopting an archive already on disk
// from an earlier run.
func (c *Cache) lookup(key string, name metadata.ModuleName, version semver.Version) (string, bool) {
	c.mu.RLock()
	path, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return path, true
	}

	path = c.Path(name, version)
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		c.mu.Lock()
		c.entries[key] = path
		c.mu.Unlock()
		return path, true
	}
	return "", false
}

// fetch downloads into a temporary file next to the final path and renames
// it into place once complete.
func (c *Cache) fetch(ctx context.Context, name metadata.ModuleName, version semver.Version) (path string, err error) {
	path = c.Path(name, version)
	logger := c.logger.With("module", name.String(), "version", version.String())
	logger.Debug("fetching release")

	if c.fetcher == nil {
		return "", c.failed(name, version, errors.New("no fetcher configured"))
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}

	body, err := c.fetcher.Fetch(ctx, name, version)
	if err != nil {
		return "", c.failed(name, version, err)
	}
	defer func() { _ = body.Close() }() // Read-only stream; copy errors are reported below

	tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
	if err != nil {
		return "", fmt.Errorf("create temporary archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName) // Best-effort cleanup of a partial download
		}
	}()

	n, copyErr := io.Copy(tmp, body)
	if closeErr := tmp.Close(); closeErr != nil && copyErr == nil {
		return "", fmt.Errorf("write %s: %w", tmpName, closeErr)
	}
	if copyErr != nil {
		return "", c.failed(name, version, copyErr)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("register %s: %w", path, err)
	}

	c.count(func(m *Metrics) { m.BytesFetched.Add(float64(n)) })
	logger.Info("cached release", "path", path, "bytes", n)
	return path, nil
}

func (c *Cache) failed(name metadata.ModuleName, version semver.Version, err error) error {
	c.count(func(m *Metrics) { m.FetchFailures.Inc() })
	c.logger.Warn("fetch failed", "module", name.String(), "version", version.String(), "err", err)
	return &FetchFailedError{Name: name, Version: version, Err: err}
}

func (c *Cache) count(fn func(*Metrics)) {
	if c.metrics != nil {
		fn(c.metrics)
	}
}

// Clean removes every cached archive. Later Retrieve calls behave as on a
// cold cache.
func (c *Cache) Clean() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("clean cache %s: %w", c.dir, err)
	}
	c.logger.Info("cache cleaned", "path", c.dir)
	return nil
}

// Entries lists the archives on disk, ordered by name then version.
// Files that do not follow the cache layout are ignored.
func (c *Cache) Entries() ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == c.dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if e, ok := c.parseEntry(path); ok {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Or(a.Name.Compare(b.Name), a.Version.Compare(b.Version))
	})
	return entries, nil
}

// parseEntry reads <owner>/<name>/<owner>-<name>-<version>.tar.gz.
func (c *Cache) parseEntry(path string) (Entry, bool) {
	rel, err := filepath.Rel(c.dir, path)
	if err != nil {
		return Entry{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return Entry{}, false
	}
	name, err := metadata.ParseModuleName(parts[0]+"/"+parts[1], false)
	if err != nil {
		return Entry{}, false
	}
	base, ok := strings.CutSuffix(parts[2], ArchiveExt)
	if !ok {
		return Entry{}, false
	}
	text, ok := strings.CutPrefix(base, name.String()+"-")
	if !ok {
		return Entry{}, false
	}
	v, err := semver.Parse(text)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Name: name, Version: v, Path: path}, true
}
