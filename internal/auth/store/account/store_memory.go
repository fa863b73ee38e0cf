package account

import (
	"context"
	"slices"
	"strings"
	"sync"

	"educa/internal/auth/models"
	"educa/pkg/platform/sentinel"
)

// InMemoryAccountStore keeps accounts in a map guarded by a mutex.
type InMemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[int64]*models.Account
	grants   map[int64][]int64
	nextID   int64
}

func NewInMemory() *InMemoryAccountStore {
	return &InMemoryAccountStore{
		accounts: make(map[int64]*models.Account),
		grants:   make(map[int64][]int64),
	}
}

func clone(a *models.Account) *models.Account {
	c := *a
	c.Permissions = slices.Clone(a.Permissions)
	return &c
}

// collides reports a username or email clash with an account other than skip.
func (s *InMemoryAccountStore) collides(a *models.Account, skip int64) bool {
	for id, existing := range s.accounts {
		if id == skip {
			continue
		}
		if existing.Username == a.Username {
			return true
		}
		if a.Email != "" && strings.EqualFold(existing.Email, a.Email) {
			return true
		}
	}
	return false
}

func (s *InMemoryAccountStore) Create(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collides(a, 0) {
		return sentinel.ErrConflict
	}
	s.nextID++
	a.ID = s.nextID
	s.accounts[a.ID] = clone(a)
	return nil
}

func (s *InMemoryAccountStore) CreateIfEmailAvailable(ctx context.Context, a *models.Account) error {
	if err := s.Create(ctx, a); err != nil {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *InMemoryAccountStore) FindByID(_ context.Context, id int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(a), nil
}

func (s *InMemoryAccountStore) FindByUsername(_ context.Context, username string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Username == username {
			return clone(a), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryAccountStore) EmailExists(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Email != "" && strings.EqualFold(a.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryAccountStore) Update(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if s.collides(a, a.ID) {
		return sentinel.ErrConflict
	}
	s.accounts[a.ID] = clone(a)
	return nil
}

func (s *InMemoryAccountStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.accounts, id)
	delete(s.grants, id)
	return nil
}

func (s *InMemoryAccountStore) GrantPermission(_ context.Context, accountID, permissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return sentinel.ErrNotFound
	}
	if !slices.Contains(s.grants[accountID], permissionID) {
		s.grants[accountID] = append(s.grants[accountID], permissionID)
	}
	return nil
}

func (s *InMemoryAccountStore) RevokePermission(_ context.Context, accountID, permissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return sentinel.ErrNotFound
	}
	s.grants[accountID] = slices.DeleteFunc(s.grants[accountID], func(id int64) bool { return id == permissionID })
	return nil
}

func (s *InMemoryAccountStore) PermissionIDs(_ context.Context, accountID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := slices.Clone(s.grants[accountID])
	slices.Sort(ids)
	return ids, nil
}
