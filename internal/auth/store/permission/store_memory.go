package permission

import (
	"context"
	"slices"
	"sort"
	"sync"

	"educa/internal/auth/models"
	"educa/pkg/platform/sentinel"
)

type InMemoryPermissionStore struct {
	mu          sync.RWMutex
	permissions map[int64]models.Permission
	nextID      int64
}

func NewInMemory() *InMemoryPermissionStore {
	return &InMemoryPermissionStore{permissions: make(map[int64]models.Permission)}
}

func (s *InMemoryPermissionStore) codenameTaken(codename string, skip int64) bool {
	for id, p := range s.permissions {
		if id != skip && p.Codename == codename {
			return true
		}
	}
	return false
}

func (s *InMemoryPermissionStore) Create(_ context.Context, p *models.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codenameTaken(p.Codename, 0) {
		return sentinel.ErrConflict
	}
	s.nextID++
	p.ID = s.nextID
	s.permissions[p.ID] = *p
	return nil
}

func (s *InMemoryPermissionStore) FindByID(_ context.Context, id int64) (*models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *InMemoryPermissionStore) FindByIDs(_ context.Context, ids []int64) ([]models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Permission
	for _, p := range s.permissions {
		if slices.Contains(ids, p.ID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Codename < out[j].Codename })
	return out, nil
}

func (s *InMemoryPermissionStore) FindByCodenames(_ context.Context, codenames []string) ([]models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Permission
	for _, p := range s.permissions {
		if slices.Contains(codenames, p.Codename) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Codename < out[j].Codename })
	return out, nil
}

func (s *InMemoryPermissionStore) List(_ context.Context) ([]models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryPermissionStore) Update(_ context.Context, p *models.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if s.codenameTaken(p.Codename, p.ID) {
		return sentinel.ErrConflict
	}
	s.permissions[p.ID] = *p
	return nil
}

func (s *InMemoryPermissionStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.permissions, id)
	return nil
}
