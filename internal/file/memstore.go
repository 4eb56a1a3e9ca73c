package file

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store. It backs the package tests and the
// reconciler tests; nothing about it is safe to lose, so production
// deployments use the Postgres Repository.
type MemStore struct {
	mu    sync.RWMutex
	byID  map[string]*File
	clock func() time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		byID:  make(map[string]*File),
		clock: time.Now,
	}
}

func (m *MemStore) GetByID(ctx context.Context, id string) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.byID[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *MemStore) GetByPhysicalName(ctx context.Context, name string) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.byID {
		if f.PhysicalName == name {
			cp := *f
			return &cp, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *MemStore) Add(ctx context.Context, f *File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[f.ID]; exists {
		return ErrDuplicateID
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = m.clock()
	}
	cp := *f
	m.byID[f.ID] = &cp
	return nil
}

func (m *MemStore) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *MemStore) SetPrivacy(ctx context.Context, id string, private bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.byID[id]; ok {
		f.IsPrivate = private
	}
	return nil
}

func (m *MemStore) SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.byID[id]; ok {
		f.ExpiresAt = expiresAt
	}
	return nil
}

func (m *MemStore) ListByOwner(ctx context.Context, owner string, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	m.mu.RLock()
	var owned []*File
	for _, f := range m.byID {
		if f.Owner == owner {
			cp := *f
			owned = append(owned, &cp)
		}
	}
	m.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	p := &Page{
		Items:      []*File{},
		TotalPages: int(math.Ceil(float64(len(owned)) / float64(PageSize))),
	}
	start := (page - 1) * PageSize
	if start < len(owned) {
		end := start + PageSize
		if end > len(owned) {
			end = len(owned)
		}
		p.Items = owned[start:end]
	}
	return p, nil
}

func (m *MemStore) ReassignOwner(ctx context.Context, oldOwner, newOwner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.byID {
		if f.Owner == oldOwner {
			f.Owner = newOwner
		}
	}
	return nil
}

func (m *MemStore) All(ctx context.Context) ([]*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := make([]*File, 0, len(m.byID))
	for _, f := range m.byID {
		cp := *f
		files = append(files, &cp)
	}
	return files, nil
}

func (m *MemStore) ListExpired(ctx context.Context, now time.Time) ([]*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var expired []*File
	for _, f := range m.byID {
		if f.Expired(now) {
			cp := *f
			expired = append(expired, &cp)
		}
	}
	return expired, nil
}

var _ Store = (*MemStore)(nil)
