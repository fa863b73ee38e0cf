package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryTRL keeps revoked ids with their expiry. Expired entries are
// pruned lazily on write.
type InMemoryTRL struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	clock   Clock
}

func NewInMemoryTRL(clock Clock) *InMemoryTRL {
	if clock == nil {
		clock = time.Now
	}
	return &InMemoryTRL{revoked: make(map[string]time.Time), clock: clock}
}

func (t *InMemoryTRL) RevokeTokens(_ context.Context, jtis []string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	now := t.clock()
	t.mu.Lock()
	defer t.mu.Unlock()
	for jti, exp := range t.revoked {
		if now.After(exp) {
			delete(t.revoked, jti)
		}
	}
	for _, jti := range nonEmpty(jtis) {
		t.revoked[jti] = now.Add(ttl)
	}
	return nil
}

func (t *InMemoryTRL) IsRevoked(_ context.Context, jti string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	exp, ok := t.revoked[jti]
	return ok && !t.clock().After(exp), nil
}
