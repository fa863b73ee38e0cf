package app

import (
	"context"
	"database/sql"
	"time"

	authservice "educa/internal/auth/service"
	"educa/internal/auth/store/account"
	"educa/internal/auth/store/permission"
	dErrors "educa/pkg/domain-errors"
)

const defaultAuthTxTimeout = 5 * time.Second

// authPostgresTx binds the account and permission stores to one *sql.Tx.
type authPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newAuthPostgresTx(db *sql.DB) *authPostgresTx {
	return &authPostgresTx{db: db}
}

func (t *authPostgresTx) RunInTx(ctx context.Context, fn func(stores authservice.TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultAuthTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stores := authservice.TxStores{
		Accounts:    account.NewPostgres(tx),
		Permissions: permission.NewPostgres(tx),
	}
	if err := fn(stores); err != nil {
		return err
	}
	return tx.Commit()
}
