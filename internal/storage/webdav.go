package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/studio-b12/gowebdav"
)

// WebDAV implements Backend against any WebDAV server (Nextcloud, rclone
// serve, a plain Apache mod_dav). All objects live under a single root
// folder so a shared account can host other data alongside ours.
type WebDAV struct {
	client *gowebdav.Client
	root   string
}

// NewWebDAV creates a WebDAV backend. The root folder is created by Login.
func NewWebDAV(url, user, password, root string) *WebDAV {
	return &WebDAV{
		client: gowebdav.NewClient(url, user, password),
		root:   root,
	}
}

// Login connects to the server and ensures the root folder exists.
func (w *WebDAV) Login(ctx context.Context) error {
	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("%w: connect webdav: %v", ErrConnection, err)
	}
	if err := w.client.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("%w: create root %q: %v", ErrConnection, w.root, err)
	}
	return nil
}

// List enumerates the root folder. Basename strips the internal root prefix
// so names correlate with what Put was given.
func (w *WebDAV) List(ctx context.Context) ([]ObjectStat, error) {
	infos, err := w.client.ReadDir(w.root)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", w.root, err)
	}

	var stats []ObjectStat
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		stats = append(stats, ObjectStat{
			Filename:     path.Join(w.root, info.Name()),
			Basename:     info.Name(),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
	}
	return stats, nil
}

// Put streams r to the server under name, overwriting any existing object.
func (w *WebDAV) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	if err := w.client.WriteStream(w.objectPath(name), r, 0o644); err != nil {
		return fmt.Errorf("%w: put %q: %v", ErrWrite, name, err)
	}
	return nil
}

// Get returns a stream of the object. Byte ranges use the server's Range
// support when requested.
func (w *WebDAV) Get(ctx context.Context, name string, rng *ByteRange) (io.ReadCloser, error) {
	p := w.objectPath(name)

	if rng != nil {
		rc, err := w.client.ReadStreamRange(p, rng.Start, rng.End-rng.Start+1)
		if err != nil {
			if gowebdav.IsErrNotFound(err) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
			}
			return nil, fmt.Errorf("get range %q: %w", name, err)
		}
		return rc, nil
	}

	rc, err := w.client.ReadStream(p)
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("get %q: %w", name, err)
	}
	return rc, nil
}

// Remove deletes the object. A 404 from the server is success.
func (w *WebDAV) Remove(ctx context.Context, name string) error {
	err := w.client.Remove(w.objectPath(name))
	if err != nil && !gowebdav.IsErrNotFound(err) {
		return fmt.Errorf("remove %q: %w", name, err)
	}
	return nil
}

// Exists reports whether the object is present. Best-effort.
func (w *WebDAV) Exists(ctx context.Context, name string) bool {
	_, err := w.client.Stat(w.objectPath(name))
	return err == nil
}

// Stat returns object metadata, or nil when missing or unreadable.
func (w *WebDAV) Stat(ctx context.Context, name string) *ObjectStat {
	info, err := w.client.Stat(w.objectPath(name))
	if err != nil {
		return nil
	}
	return &ObjectStat{
		Filename:     w.objectPath(name),
		Basename:     name,
		Size:         info.Size(),
		LastModified: info.ModTime(),
	}
}

func (w *WebDAV) objectPath(name string) string {
	return path.Join(w.root, name)
}

var _ Backend = (*WebDAV)(nil)
