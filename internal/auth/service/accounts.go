package service

import (
	"context"
	"errors"

	"educa/internal/audit"
	"educa/internal/auth/models"
	dErrors "educa/pkg/domain-errors"
	"educa/pkg/platform/secrets"
	"educa/pkg/platform/sentinel"
	strutil "educa/pkg/platform/strings"
	"educa/pkg/requestcontext"
)

func (s *Service) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	acct, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, accountNotFound(err, "failed to load account")
	}
	if err := s.withPermissions(ctx, s.stores(), acct); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load permissions")
	}
	return acct, nil
}

// UpdateAccount applies a PUT (full) or PATCH. A non-empty password is
// re-hashed; an empty one leaves the current hash.
func (s *Service) UpdateAccount(ctx context.Context, id int64, req *models.AccountUpdateRequest, full bool) (*models.Account, error) {
	if err := req.ValidateFor(full); err != nil {
		return nil, err
	}

	var updated *models.Account
	err := s.tx.RunInTx(ctx, func(st TxStores) error {
		acct, err := st.Accounts.FindByID(ctx, id)
		if err != nil {
			return err
		}
		req.Apply(acct)
		if req.Password != nil && *req.Password != "" {
			hash, err := secrets.Hash(*req.Password)
			if err != nil {
				return err
			}
			acct.PasswordHash = hash
		}
		acct.UpdatedAt = requestcontext.Now(ctx)
		if err := st.Accounts.Update(ctx, acct); err != nil {
			return err
		}
		if err := s.withPermissions(ctx, st, acct); err != nil {
			return err
		}
		updated = acct
		return nil
	})
	if err != nil {
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Validation("invalid account update", map[string]string{
				"username": "A user with that username or email already exists.",
			})
		}
		return nil, accountNotFound(err, "failed to update account")
	}
	s.logAudit(ctx, audit.ActionAccountUpdated, id)
	return updated, nil
}

func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		return accountNotFound(err, "failed to delete account")
	}
	s.logAudit(ctx, audit.ActionAccountDeleted, id)
	return nil
}

func (s *Service) AddPermission(ctx context.Context, accountID int64, ref *models.PermissionRef) (*models.DetailResponse, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	err := s.tx.RunInTx(ctx, func(st TxStores) error {
		if _, err := st.Accounts.FindByID(ctx, accountID); err != nil {
			return accountNotFound(err, "failed to load account")
		}
		if _, err := st.Permissions.FindByID(ctx, ref.PermissionID); err != nil {
			return permissionNotFound(err, "failed to load permission")
		}
		if err := st.Accounts.GrantPermission(ctx, accountID, ref.PermissionID); err != nil {
			return permissionNotFound(err, "failed to grant permission")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.ActionPermissionGranted, accountID, "permission_id", ref.PermissionID)
	return &models.DetailResponse{Detail: "Permissão adicionada com sucesso."}, nil
}

func (s *Service) RemovePermission(ctx context.Context, accountID int64, ref *models.PermissionRef) (*models.DetailResponse, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	err := s.tx.RunInTx(ctx, func(st TxStores) error {
		if _, err := st.Accounts.FindByID(ctx, accountID); err != nil {
			return accountNotFound(err, "failed to load account")
		}
		if _, err := st.Permissions.FindByID(ctx, ref.PermissionID); err != nil {
			return permissionNotFound(err, "failed to load permission")
		}
		if err := st.Accounts.RevokePermission(ctx, accountID, ref.PermissionID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke permission")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.ActionPermissionRevoked, accountID, "permission_id", ref.PermissionID)
	return &models.DetailResponse{Detail: "Permissão removida com sucesso."}, nil
}

// GrantPermissions grants every named permission. Unknown codenames are a
// validation error and nothing is granted.
func (s *Service) GrantPermissions(ctx context.Context, accountID int64, codenames []string) error {
	codenames = strutil.DedupeAndTrim(codenames)
	if len(codenames) == 0 {
		return nil
	}
	return s.tx.RunInTx(ctx, func(st TxStores) error {
		perms, err := st.Permissions.FindByCodenames(ctx, codenames)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load permissions")
		}
		if len(perms) != len(codenames) {
			found := make(map[string]bool, len(perms))
			for _, p := range perms {
				found[p.Codename] = true
			}
			for _, c := range codenames {
				if !found[c] {
					return dErrors.Validation("unknown permission", map[string]string{"permissions": "Unknown codename " + c + "."})
				}
			}
		}
		for _, p := range perms {
			if err := st.Accounts.GrantPermission(ctx, accountID, p.ID); err != nil {
				return accountNotFound(err, "failed to grant permission")
			}
		}
		return nil
	})
}

// CreateAdmin creates an active staff account, or promotes the existing
// account with that username, and grants codenames to it.
func (s *Service) CreateAdmin(ctx context.Context, req *models.RegisterRequest, codenames []string) (*models.Account, bool, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, false, err
	}
	hash, err := secrets.Hash(req.Password)
	if err != nil {
		return nil, false, err
	}

	created := false
	acct, err := s.accounts.FindByUsername(ctx, req.Username)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		now := requestcontext.Now(ctx)
		acct = &models.Account{
			Username: req.Username, Email: req.Email,
			FirstName: req.FirstName, LastName: req.LastName,
			PasswordHash: hash, IsActive: true, IsStaff: true, Kind: models.KindAdmin,
			CreatedAt: now, UpdatedAt: now,
		}
		if err := s.accounts.Create(ctx, acct); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return nil, false, dErrors.New(dErrors.CodeConflict, "email already in use")
			}
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create admin")
		}
		created = true
	case err != nil:
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	default:
		acct.PasswordHash = hash
		acct.IsActive, acct.IsStaff, acct.Kind = true, true, models.KindAdmin
		acct.UpdatedAt = requestcontext.Now(ctx)
		if err := s.accounts.Update(ctx, acct); err != nil {
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to promote account")
		}
	}

	if err := s.GrantPermissions(ctx, acct.ID, codenames); err != nil {
		return nil, false, err
	}
	if err := s.withPermissions(ctx, s.stores(), acct); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load permissions")
	}
	return acct, created, nil
}

// EmailInUse reports whether any account already uses email.
func (s *Service) EmailInUse(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	return s.accounts.EmailExists(ctx, email)
}

// EnsureInactiveAccount creates an inactive account whose username is the
// email. It reports created=false when the email is taken, including by a
// concurrent request that won the unique index.
func (s *Service) EnsureInactiveAccount(ctx context.Context, req models.ProvisionRequest) (bool, error) {
	if req.Email == "" {
		return false, dErrors.Validation("invalid account", map[string]string{"email": "This field is required."})
	}
	hash, err := secrets.Hash(req.Password)
	if err != nil {
		return false, err
	}
	now := requestcontext.Now(ctx)
	acct := &models.Account{
		Username:     req.Email,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		Kind:         req.Kind,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.CreateIfEmailAvailable(ctx, acct); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}
	if s.metrics != nil {
		s.metrics.AccountsRegistered.Inc()
	}
	s.logAudit(ctx, audit.ActionAccountRegistered, acct.ID, "kind", string(req.Kind), "provisioned", true)
	return true, nil
}
