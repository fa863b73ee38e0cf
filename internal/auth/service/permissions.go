package service

import (
	"context"
	"errors"

	"educa/internal/auth/models"
	dErrors "educa/pkg/domain-errors"
	"educa/pkg/platform/sentinel"
)

func permissionNotFound(err error, message string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "Permissão não encontrada.")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}

func codenameTaken(err error, message string) error {
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Validation("invalid permission", map[string]string{
			"codename": "A permission with this codename already exists.",
		})
	}
	return permissionNotFound(err, message)
}

func (s *Service) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	perms, err := s.permissions.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list permissions")
	}
	if perms == nil {
		perms = []models.Permission{}
	}
	return perms, nil
}

func (s *Service) GetPermission(ctx context.Context, id int64) (*models.Permission, error) {
	p, err := s.permissions.FindByID(ctx, id)
	if err != nil {
		return nil, permissionNotFound(err, "failed to load permission")
	}
	return p, nil
}

func (s *Service) CreatePermission(ctx context.Context, req *models.PermissionRequest) (*models.Permission, error) {
	if err := req.ValidateFor(true); err != nil {
		return nil, err
	}
	p := &models.Permission{}
	req.Apply(p)
	if err := s.permissions.Create(ctx, p); err != nil {
		return nil, codenameTaken(err, "failed to create permission")
	}
	return p, nil
}

func (s *Service) UpdatePermission(ctx context.Context, id int64, req *models.PermissionRequest, full bool) (*models.Permission, error) {
	if err := req.ValidateFor(full); err != nil {
		return nil, err
	}
	var updated *models.Permission
	err := s.tx.RunInTx(ctx, func(st TxStores) error {
		p, err := st.Permissions.FindByID(ctx, id)
		if err != nil {
			return err
		}
		req.Apply(p)
		if err := st.Permissions.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, codenameTaken(err, "failed to update permission")
	}
	return updated, nil
}

func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	if err := s.permissions.Delete(ctx, id); err != nil {
		return permissionNotFound(err, "failed to delete permission")
	}
	return nil
}
