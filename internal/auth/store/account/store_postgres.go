package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"educa/internal/auth/models"
	"educa/internal/platform/postgres"
	"educa/pkg/platform/sentinel"
)

// PostgresStore persists accounts through database/sql. Username and
// lower(email) are unique in the schema.
type PostgresStore struct {
	db postgres.SQLExecutor
}

func NewPostgres(db postgres.SQLExecutor) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, username, email, first_name, last_name, password_hash,
	is_active, is_staff, kind, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	var a models.Account
	var kind string
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash,
		&a.IsActive, &a.IsStaff, &kind, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Kind = models.Kind(kind)
	return &a, nil
}

func (s *PostgresStore) Create(ctx context.Context, a *models.Account) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (username, email, first_name, last_name, password_hash, is_active, is_staff, kind, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		a.Username, a.Email, a.FirstName, a.LastName, a.PasswordHash, a.IsActive, a.IsStaff, string(a.Kind),
		a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// CreateIfEmailAvailable inserts a unless its email or username is taken,
// returning sentinel.ErrAlreadyUsed in that case. Concurrent callers with the
// same email are resolved by the unique index.
func (s *PostgresStore) CreateIfEmailAvailable(ctx context.Context, a *models.Account) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (username, email, first_name, last_name, password_hash, is_active, is_staff, kind, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
		RETURNING id`,
		a.Username, a.Email, a.FirstName, a.LastName, a.PasswordHash, a.IsActive, a.IsStaff, string(a.Kind),
		a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account by username: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE email <> '' AND LOWER(email) = LOWER($1))`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check account email: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Update(ctx context.Context, a *models.Account) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET username = $2, email = $3, first_name = $4, last_name = $5,
			password_hash = $6, is_active = $7, is_staff = $8, kind = $9, updated_at = $10
		WHERE id = $1`,
		a.ID, a.Username, a.Email, a.FirstName, a.LastName, a.PasswordHash, a.IsActive, a.IsStaff,
		string(a.Kind), a.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update account: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) GrantPermission(ctx context.Context, accountID, permissionID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_permissions (account_id, permission_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, accountID, permissionID)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("grant permission: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokePermission(ctx context.Context, accountID, permissionID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM account_permissions WHERE account_id = $1 AND permission_id = $2`, accountID, permissionID)
	if err != nil {
		return fmt.Errorf("revoke permission: %w", err)
	}
	return nil
}

func (s *PostgresStore) PermissionIDs(ctx context.Context, accountID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT permission_id FROM account_permissions WHERE account_id = $1 ORDER BY permission_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list account permissions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan permission id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
