package service

import (
	"context"
	"sync"
	"time"

	dErrors "educa/pkg/domain-errors"
)

const defaultAuthTxTimeout = 5 * time.Second

// TxStores are the stores bound to one unit of work.
type TxStores struct {
	Accounts    AccountStore
	Permissions PermissionStore
}

// AuthStoreTx provides a transactional boundary for auth store mutations.
// Implementations wrap a database transaction or, in memory, a coarse lock.
type AuthStoreTx interface {
	RunInTx(ctx context.Context, fn func(stores TxStores) error) error
}

type mutexAuthTx struct {
	mu     sync.Mutex
	stores TxStores
}

// NewMutexTx serializes units of work over in-memory stores.
func NewMutexTx(accounts AccountStore, permissions PermissionStore) AuthStoreTx {
	return &mutexAuthTx{stores: TxStores{Accounts: accounts, Permissions: permissions}}
}

func (t *mutexAuthTx) RunInTx(ctx context.Context, fn func(stores TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultAuthTxTimeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(t.stores)
}
