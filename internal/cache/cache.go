// Package cache implements the local read-through download cache. Entries
// are keyed by the physical object name; existence on disk is the only
// state. The cache is advisory: any entry may be deleted at any time and
// the next download simply refetches from the backend.
package cache

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// Cache is a directory of lazily populated copies of backend objects.
type Cache struct {
	dir string
}

// New creates the cache rooted at dir, defaulting to a folder under the
// system temp directory when dir is empty.
func New(dir string) (*Cache, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "dropserve-cache")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

// Lookup reports whether an entry for name exists and returns its path.
func (c *Cache) Lookup(name string) (string, bool) {
	p := c.path(name)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}

// Open returns a reader over a cached entry. Callers should Lookup first;
// a vanished entry surfaces as a plain error and the caller falls back to
// the backend.
func (c *Cache) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(c.path(name))
	if err != nil {
		return nil, fmt.Errorf("open cache entry %s: %w", name, err)
	}
	return f, nil
}

// Remove deletes an entry. Missing entries are success; the cache is
// best-effort and removal failures are the caller's to ignore.
func (c *Cache) Remove(name string) error {
	err := os.Remove(c.path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache entry %s: %w", name, err)
	}
	return nil
}

// Fill copies src to dst while simultaneously populating the cache entry
// for name. The two sinks are isolated: a cache-write failure never
// propagates to dst, and a dst failure (a disconnected client) does not
// stop the cache fill: the remainder of src is drained into the cache so
// the entry still completes. Completed entries are renamed into place
// atomically; partial fills are discarded.
//
// The returned error reflects the dst side only.
func (c *Cache) Fill(name string, src io.Reader, dst io.Writer) error {
	// Each fill writes its own temp file so concurrent fills of the same
	// object cannot truncate each other; whichever completes last renames
	// its full copy into place. The .tmp suffix keeps partial files out of
	// directory listings.
	tmp, err := os.CreateTemp(c.dir, filepath.Base(name)+".*.tmp")
	if err != nil {
		// No cache today. The response still gets served.
		log.Printf("cache: create %s: %v", name, err)
		_, copyErr := io.Copy(dst, src)
		return copyErr
	}
	tmpPath := tmp.Name()

	var dstErr, cacheErr error
	buf := make([]byte, 32*1024)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if cacheErr == nil {
				if _, werr := tmp.Write(buf[:n]); werr != nil {
					cacheErr = werr
					log.Printf("cache: write %s: %v", name, werr)
				}
			}
			if dstErr == nil {
				if _, werr := dst.Write(buf[:n]); werr != nil {
					dstErr = werr
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			// Source failed mid-stream: the cache entry would be truncated.
			cacheErr = readErr
			if dstErr == nil {
				dstErr = readErr
			}
			break
		}
	}

	if cacheErr != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return dstErr
	}
	if err := tmp.Sync(); err == nil {
		err = tmp.Close()
		if err == nil {
			err = os.Rename(tmpPath, c.path(name))
		}
		if err != nil {
			log.Printf("cache: finalize %s: %v", name, err)
			os.Remove(tmpPath)
		}
	} else {
		tmp.Close()
		os.Remove(tmpPath)
		log.Printf("cache: fsync %s: %v", name, err)
	}
	return dstErr
}

// path derives the deterministic on-disk location for a physical name.
// Base strips any path separators so a hostile name cannot escape the dir.
func (c *Cache) path(name string) string {
	return filepath.Join(c.dir, filepath.Base(name))
}
