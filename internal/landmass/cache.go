package landmass

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	cachePrefix = "landmass_"
	cacheSuffix = ".geojson"
)

// ErrNoCache is returned by LoadLatest when the cache directory holds no
// landmass documents.
var ErrNoCache = errors.New("no cached landmass document")

// Cache keeps fetched landmass documents on disk, one file per fetch, named by
// unix timestamp. Only the newest maxFiles are retained.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache creates a Cache rooted at dir. maxFiles <= 0 keeps 3 files.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 3
	}
	return &Cache{dir: dir, maxFiles: maxFiles}
}

// Write stores data under the fetch timestamp and prunes older documents.
func (c *Cache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	name := cachePrefix + strconv.FormatInt(ts.Unix(), 10) + cacheSuffix
	tmp := filepath.Join(c.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(c.dir, name)); err != nil {
		return fmt.Errorf("committing cache file: %w", err)
	}
	return c.prune()
}

// LoadLatest returns the newest cached document and its fetch time.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	entries, err := c.entries()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(entries) == 0 {
		return nil, time.Time{}, ErrNoCache
	}

	newest := entries[len(entries)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, newest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, newest.ts, nil
}

type cacheEntry struct {
	name string
	ts   time.Time
}

// entries lists cache files oldest first. A missing directory is an empty cache.
func (c *Cache) entries() ([]cacheEntry, error) {
	dirents, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var out []cacheEntry
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		stamp, ok := strings.CutPrefix(d.Name(), cachePrefix)
		if !ok {
			continue
		}
		stamp, ok = strings.CutSuffix(stamp, cacheSuffix)
		if !ok {
			continue
		}
		unix, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, cacheEntry{name: d.Name(), ts: time.Unix(unix, 0)})
	}

	slices.SortFunc(out, func(a, b cacheEntry) int { return a.ts.Compare(b.ts) })
	return out, nil
}

func (c *Cache) prune() error {
	entries, err := c.entries()
	if err != nil {
		return err
	}
	for len(entries) > c.maxFiles {
		if err := os.Remove(filepath.Join(c.dir, entries[0].name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", entries[0].name, err)
		}
		entries = entries[1:]
	}
	return nil
}
