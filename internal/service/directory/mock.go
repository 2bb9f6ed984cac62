package directory

import (
	"context"
	"sort"
	"sync"
)

// MockService is an in-memory Service. UpsertFailures makes that many upserts
// fail with ErrStorage before succeeding again; a negative value fails forever.
type MockService struct {
	mu       sync.RWMutex
	profiles map[string]Record

	UpsertFailures int
	UpsertCalls    int
	ListErr        error
}

func NewMockService() *MockService {
	return &MockService{profiles: make(map[string]Record)}
}

func (m *MockService) Upsert(_ context.Context, id string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertFailures != 0 {
		if m.UpsertFailures > 0 {
			m.UpsertFailures--
		}
		return ErrStorage
	}
	m.profiles[id] = rec
	return nil
}

func (m *MockService) Get(_ context.Context, id string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Profile{ID: id, Name: rec.Name, Email: rec.Email}, nil
}

// List returns matches ordered by id.
func (m *MockService) List(_ context.Context, filter Filter) ([]Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []Profile
	for id, rec := range m.profiles {
		if filter.Name != "" && rec.Name != filter.Name {
			continue
		}
		out = append(out, Profile{ID: id, Name: rec.Name, Email: rec.Email})
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len reports how many profiles are stored.
func (m *MockService) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}

var _ Service = (*MockService)(nil)
