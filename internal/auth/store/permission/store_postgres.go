package permission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"educa/internal/auth/models"
	"educa/internal/platform/postgres"
	"educa/pkg/platform/sentinel"
)

type PostgresStore struct {
	db postgres.SQLExecutor
}

func NewPostgres(db postgres.SQLExecutor) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Permission) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO permissions (name, codename, content_type) VALUES ($1, $2, $3) RETURNING id`,
		p.Name, p.Codename, p.ContentType,
	).Scan(&p.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert permission: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Permission, error) {
	var p models.Permission
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, codename, content_type FROM permissions WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Codename, &p.ContentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find permission: %w", err)
	}
	return &p, nil
}

// FindByIDs loads a batch in one round trip.
func (s *PostgresStore) FindByIDs(ctx context.Context, ids []int64) ([]models.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.query(ctx,
		`SELECT id, name, codename, content_type FROM permissions WHERE id = ANY($1::bigint[]) ORDER BY codename`,
		pq.Array(ids))
}

func (s *PostgresStore) FindByCodenames(ctx context.Context, codenames []string) ([]models.Permission, error) {
	if len(codenames) == 0 {
		return nil, nil
	}
	return s.query(ctx,
		`SELECT id, name, codename, content_type FROM permissions WHERE codename = ANY($1::text[]) ORDER BY codename`,
		pq.Array(codenames))
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Permission, error) {
	return s.query(ctx, `SELECT id, name, codename, content_type FROM permissions ORDER BY id`)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]models.Permission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	var out []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Codename, &p.ContentType); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Permission) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE permissions SET name = $2, codename = $3, content_type = $4 WHERE id = $1`,
		p.ID, p.Name, p.Codename, p.ContentType)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update permission: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	return requireRow(res)
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
