package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/dropserve/service/internal/cache"
	"github.com/dropserve/service/internal/generator"
	"github.com/dropserve/service/internal/storage"
)

// ErrForbidden is returned when a requester is neither the owner nor an
// admin for a private read or a mutating operation.
var ErrForbidden = errors.New("not the file owner")

// maxExtensionLength is the longest suffix still treated as a real file
// extension. Anything longer is assumed to be part of the name; dropping it
// avoids ambiguous double-extension physical names.
const maxExtensionLength = 5

const publicIDLength = 8

// GeneratorResolver returns the public-ID strategy name configured for an
// owner. Lookup failures fall back to the default strategy.
type GeneratorResolver func(ctx context.Context, ownerID string) string

// Filter decorates the upload payload before it reaches the backend. The
// GPS-metadata stripper plugs in here; the storage core never inspects
// image contents itself.
type Filter func(r io.Reader) io.Reader

// UploadOptions are the caller-controlled attributes of a new file.
type UploadOptions struct {
	IsPrivate      bool
	ExpiresAt      *time.Time
	PublicFileName string
}

// ServeFunc streams a resolved file's content to w.
type ServeFunc func(w io.Writer) error

// Service is the file lifecycle manager: it owns the invariant that a
// metadata record and its backend object are created and destroyed
// together, and leaves repair of any drift to the reconciler.
type Service struct {
	store   Store
	backend storage.Backend
	cache   *cache.Cache
	resolve GeneratorResolver
	filter  Filter
}

// NewService creates the lifecycle service. filter may be nil.
func NewService(store Store, backend storage.Backend, c *cache.Cache, resolve GeneratorResolver, filter Filter) *Service {
	return &Service{
		store:   store,
		backend: backend,
		cache:   c,
		resolve: resolve,
		filter:  filter,
	}
}

// Upload writes the payload to the backend and persists the metadata
// record. If the backend write succeeds but persistence fails the object
// is left orphaned for the reconciler to collect; no synchronous rollback
// is attempted.
func (s *Service) Upload(ctx context.Context, r io.Reader, size int64, filename, ownerID string, opts UploadOptions) (*File, error) {
	ext := sanitizeExtension(filename)

	token, err := generator.Random(16)
	if err != nil {
		return nil, fmt.Errorf("generate physical name: %w", err)
	}
	physicalName := token
	if ext != "" {
		physicalName += "." + ext
	}

	strategy := "random"
	if s.resolve != nil {
		strategy = s.resolve(ctx, ownerID)
	}
	id, err := generator.ByName(strategy)(publicIDLength)
	if err != nil {
		return nil, fmt.Errorf("generate public id: %w", err)
	}

	payload := r
	if s.filter != nil {
		payload = s.filter(r)
	}

	if err := s.backend.Put(ctx, physicalName, payload, size); err != nil {
		return nil, err
	}

	f := &File{
		ID:             id,
		PhysicalName:   physicalName,
		Extension:      ext,
		PublicFileName: opts.PublicFileName,
		Owner:          ownerID,
		Size:           size,
		IsPrivate:      opts.IsPrivate,
		ExpiresAt:      opts.ExpiresAt,
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	err = s.store.Add(ctx, f)
	if errors.Is(err, ErrDuplicateID) {
		// ID collision (timestamp IDs collide within one millisecond):
		// retry once with a longer random ID.
		f.ID, err = generator.Random(publicIDLength + 4)
		if err != nil {
			return nil, fmt.Errorf("generate public id: %w", err)
		}
		err = s.store.Add(ctx, f)
	}
	if err != nil {
		// The object stays behind as an orphan; the reconciler's
		// object-without-metadata pass clears it.
		return nil, fmt.Errorf("persist file record: %w", err)
	}
	return f, nil
}

// Download resolves the record, enforces expiry and privacy, and returns
// the file plus a ServeFunc streaming its content. On a cache miss the
// ServeFunc fans the backend stream out to both the caller and the cache.
func (s *Service) Download(ctx context.Context, id, requesterID string, isAdmin bool) (*File, ServeFunc, error) {
	f, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	// Logically expired records are treated as gone even before the
	// reconciler physically purges them.
	if f.Expired(time.Now()) {
		return nil, nil, ErrRecordNotFound
	}

	if f.IsPrivate && f.Owner != requesterID && !isAdmin {
		return nil, nil, ErrForbidden
	}

	serve := func(w io.Writer) error {
		if s.cache != nil {
			if _, ok := s.cache.Lookup(f.PhysicalName); ok {
				rc, err := s.cache.Open(f.PhysicalName)
				if err == nil {
					defer rc.Close()
					_, cerr := io.Copy(w, rc)
					return cerr
				}
				// Entry vanished between Lookup and Open: fall through.
			}
		}

		rc, err := s.backend.Get(ctx, f.PhysicalName, nil)
		if err != nil {
			return err
		}
		defer rc.Close()

		if s.cache == nil {
			_, cerr := io.Copy(w, rc)
			return cerr
		}
		return s.cache.Fill(f.PhysicalName, rc, w)
	}

	return f, serve, nil
}

// Delete removes the record first, then makes best-effort removals of the
// backend object and any cache entry. The order guarantees a failed
// backend removal leaves nothing discoverable; the reconciler clears the
// leftover object later.
func (s *Service) Delete(ctx context.Context, id, requesterID string, isAdmin bool) error {
	f, err := s.authorize(ctx, id, requesterID, isAdmin)
	if err != nil {
		return err
	}

	if err := s.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove file record: %w", err)
	}

	if err := s.backend.Remove(ctx, f.PhysicalName); err != nil {
		log.Printf("file: backend removal of %s failed (reconciler will retry): %v", f.PhysicalName, err)
	}
	if s.cache != nil {
		if err := s.cache.Remove(f.PhysicalName); err != nil {
			log.Printf("file: cache removal of %s failed: %v", f.PhysicalName, err)
		}
	}
	return nil
}

// SetPrivacy flips the private flag. Owner or admin only. Last write wins
// for concurrent updates to the same record.
func (s *Service) SetPrivacy(ctx context.Context, id, requesterID string, isAdmin, private bool) error {
	if _, err := s.authorize(ctx, id, requesterID, isAdmin); err != nil {
		return err
	}
	return s.store.SetPrivacy(ctx, id, private)
}

// SetExpiry sets or clears the expiry timestamp. Owner or admin only.
func (s *Service) SetExpiry(ctx context.Context, id, requesterID string, isAdmin bool, expiresAt *time.Time) error {
	if _, err := s.authorize(ctx, id, requesterID, isAdmin); err != nil {
		return err
	}
	return s.store.SetExpiry(ctx, id, expiresAt)
}

// ListByOwner returns one dashboard page of the requester's files.
func (s *Service) ListByOwner(ctx context.Context, owner string, page int) (*Page, error) {
	return s.store.ListByOwner(ctx, owner, page)
}

// authorize loads the record and checks the owner-or-admin rule.
func (s *Service) authorize(ctx context.Context, id, requesterID string, isAdmin bool) (*File, error) {
	f, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Owner != requesterID && !isAdmin {
		return nil, ErrForbidden
	}
	return f, nil
}

// sanitizeExtension extracts a safe extension (no dot) from the uploaded
// filename. Suffixes longer than maxExtensionLength are not treated as
// extensions at all.
func sanitizeExtension(filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")

	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	ext = strings.ToLower(b.String())

	if len(ext) > maxExtensionLength {
		return ""
	}
	return ext
}
