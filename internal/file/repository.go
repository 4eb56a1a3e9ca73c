// Package file manages file metadata and the upload/download lifecycle
// tying the storage backend, the metadata store and the download cache
// together.
package file

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// File is the metadata record for one stored object.
type File struct {
	// ID is the public identifier; unique and immutable after creation.
	ID string `json:"id"`
	// PhysicalName is the object name inside the storage backend. It
	// differs from ID: it carries a random token and the file extension.
	PhysicalName string `json:"-"`
	// Extension without the leading dot, empty when the upload had none.
	Extension string `json:"extension,omitempty"`
	// PublicFileName overrides the name sent in download headers.
	PublicFileName string `json:"publicFileName,omitempty"`
	// Owner is the owning user's ID.
	Owner string `json:"owner"`
	// Size in bytes, set at creation.
	Size int64 `json:"size"`
	// IsPrivate restricts downloads to the owner and admins.
	IsPrivate bool `json:"isPrivate"`
	// CreatedAt is set at creation and immutable.
	CreatedAt time.Time `json:"created"`
	// ExpiresAt is nil for files that never expire. A record whose expiry
	// has passed is logically expired and must not be served, even before
	// the reconciler physically purges it.
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the record is logically expired at now.
func (f *File) Expired(now time.Time) bool {
	return f.ExpiresAt != nil && !now.Before(*f.ExpiresAt)
}

// Page is one page of a user's files.
type Page struct {
	Items      []*File `json:"items"`
	TotalPages int     `json:"totalPages"`
}

// PageSize is the fixed dashboard page size.
const PageSize = 20

// Store is the metadata persistence contract the lifecycle service and the
// reconciler consume. *Repository is the Postgres implementation; tests use
// an in-memory fake.
type Store interface {
	GetByID(ctx context.Context, id string) (*File, error)
	GetByPhysicalName(ctx context.Context, name string) (*File, error)
	Add(ctx context.Context, f *File) error
	Remove(ctx context.Context, id string) error
	SetPrivacy(ctx context.Context, id string, private bool) error
	SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error
	ListByOwner(ctx context.Context, owner string, page int) (*Page, error)
	ReassignOwner(ctx context.Context, oldOwner, newOwner string) error
	All(ctx context.Context) ([]*File, error)
	ListExpired(ctx context.Context, now time.Time) ([]*File, error)
}

// ErrRecordNotFound is returned when no record exists for an identifier.
var ErrRecordNotFound = errors.New("file record not found")

// ErrDuplicateID is returned by Add when the public identifier is already
// taken. Callers regenerate and retry.
var ErrDuplicateID = errors.New("file id already exists")

// Repository is the Postgres-backed Store.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new file Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const fileColumns = `id, physical_name, extension, public_file_name, owner_id, size, is_private, created_at, expires_at`

func scanFile(row pgx.Row) (*File, error) {
	f := &File{}
	var ext, publicName *string
	err := row.Scan(&f.ID, &f.PhysicalName, &ext, &publicName, &f.Owner, &f.Size, &f.IsPrivate, &f.CreatedAt, &f.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if ext != nil {
		f.Extension = *ext
	}
	if publicName != nil {
		f.PublicFileName = *publicName
	}
	return f, nil
}

// GetByID fetches a record by its public identifier.
func (r *Repository) GetByID(ctx context.Context, id string) (*File, error) {
	f, err := scanFile(r.db.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file by id: %w", err)
	}
	return f, nil
}

// GetByPhysicalName fetches a record by its backend object name.
func (r *Repository) GetByPhysicalName(ctx context.Context, name string) (*File, error) {
	f, err := scanFile(r.db.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE physical_name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file by physical name: %w", err)
	}
	return f, nil
}

// Add inserts a new record.
func (r *Repository) Add(ctx context.Context, f *File) error {
	var ext, publicName *string
	if f.Extension != "" {
		ext = &f.Extension
	}
	if f.PublicFileName != "" {
		publicName = &f.PublicFileName
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO files (id, physical_name, extension, public_file_name, owner_id, size, is_private, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		f.ID, f.PhysicalName, ext, publicName, f.Owner, f.Size, f.IsPrivate, f.ExpiresAt,
	).Scan(&f.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("add file record: %w", err)
	}
	return nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Remove deletes a record by its public identifier.
func (r *Repository) Remove(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	return err
}

// SetPrivacy flips the private flag.
func (r *Repository) SetPrivacy(ctx context.Context, id string, private bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE files SET is_private = $1 WHERE id = $2`, private, id)
	return err
}

// SetExpiry sets or clears the expiry timestamp.
func (r *Repository) SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE files SET expires_at = $1 WHERE id = $2`, expiresAt, id)
	return err
}

// ListByOwner returns one page of the owner's files, newest first.
// Offset pagination: fine at moderate scale, a known limit beyond it.
func (r *Repository) ListByOwner(ctx context.Context, owner string, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM files WHERE owner_id = $1`, owner,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+fileColumns+`
		 FROM files WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		owner, PageSize, (page-1)*PageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	p := &Page{
		Items:      []*File{},
		TotalPages: int(math.Ceil(float64(total) / float64(PageSize))),
	}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		p.Items = append(p.Items, f)
	}
	return p, rows.Err()
}

// ReassignOwner moves all of oldOwner's files to newOwner. Used when
// merging or deleting accounts.
func (r *Repository) ReassignOwner(ctx context.Context, oldOwner, newOwner string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE files SET owner_id = $2 WHERE owner_id = $1`,
		oldOwner, newOwner,
	)
	return err
}

// All returns every record. The reconciler correlates this snapshot
// against a backend listing.
func (r *Repository) All(ctx context.Context) ([]*File, error) {
	rows, err := r.db.Query(ctx, `SELECT `+fileColumns+` FROM files`)
	if err != nil {
		return nil, fmt.Errorf("list all files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ListExpired returns records whose expiry has passed at now.
func (r *Repository) ListExpired(ctx context.Context, now time.Time) ([]*File, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

var _ Store = (*Repository)(nil)
