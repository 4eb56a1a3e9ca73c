package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores objects as plain files under a single root directory.
// Writes go through a temp file and an atomic rename so a crashed upload
// never leaves a half-written object visible to List or Get.
type Local struct {
	root string
}

// NewLocal creates a Local backend rooted at dir. The directory is created
// by Login, not here, so construction never fails.
func NewLocal(dir string) *Local {
	return &Local{root: dir}
}

// Login creates the root directory if it does not exist.
func (l *Local) Login(ctx context.Context) error {
	if err := os.MkdirAll(l.root, 0o750); err != nil {
		return fmt.Errorf("%w: create root %s: %v", ErrConnection, l.root, err)
	}
	return nil
}

// List enumerates all regular files under the root. Temp files from
// in-flight writes are skipped.
func (l *Local) List(ctx context.Context) ([]ObjectStat, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", l.root, err)
	}

	var stats []ObjectStat
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) == ".tmp" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats = append(stats, ObjectStat{
			Filename:     filepath.Join(l.root, name),
			Basename:     name,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
	}
	return stats, nil
}

// Put writes r to a temp file, fsyncs, then atomically renames it into place.
// An existing object under the same name is fully overwritten.
func (l *Local) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	fullPath := filepath.Join(l.root, name)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrWrite, name, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write %s: %v", ErrWrite, name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: fsync %s: %v", ErrWrite, name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close %s: %v", ErrWrite, name, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename %s: %v", ErrWrite, name, err)
	}
	return nil
}

// Get opens the object for reading. With a ByteRange it seeks to Start and
// limits the stream to the requested window.
func (l *Local) Get(ctx context.Context, name string, rng *ByteRange) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(l.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	if rng == nil {
		return f, nil
	}

	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek %s: %w", name, err)
	}
	return &limitedFile{
		Reader: io.LimitReader(f, rng.End-rng.Start+1),
		f:      f,
	}, nil
}

// Remove deletes the object. A missing object is success.
func (l *Local) Remove(ctx context.Context, name string) error {
	err := os.Remove(filepath.Join(l.root, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Exists reports whether the object is present on disk.
func (l *Local) Exists(ctx context.Context, name string) bool {
	_, err := os.Stat(filepath.Join(l.root, name))
	return err == nil
}

// Stat returns file metadata, or nil when the file is missing or unreadable.
func (l *Local) Stat(ctx context.Context, name string) *ObjectStat {
	info, err := os.Stat(filepath.Join(l.root, name))
	if err != nil {
		return nil
	}
	return &ObjectStat{
		Filename:     filepath.Join(l.root, name),
		Basename:     name,
		Size:         info.Size(),
		LastModified: info.ModTime(),
	}
}

// limitedFile couples a range-limited reader with the underlying file handle
// so Close releases the descriptor.
type limitedFile struct {
	io.Reader
	f *os.File
}

func (lf *limitedFile) Close() error {
	return lf.f.Close()
}

var _ Backend = (*Local)(nil)
