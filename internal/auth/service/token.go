package service

import (
	"context"
	"errors"
	"time"

	"educa/internal/audit"
	"educa/internal/auth/device"
	"educa/internal/auth/models"
	dErrors "educa/pkg/domain-errors"
	"educa/pkg/platform/secrets"
	"educa/pkg/platform/sentinel"
	"educa/pkg/requestcontext"
)

const invalidCredentials = "No active account found with the given credentials"

// Register creates an inactive account. Staff activate it later.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.Account, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.accounts.FindByUsername(ctx, req.Username); err == nil {
		return nil, dErrors.Validation("invalid registration", map[string]string{
			"username": "A user with that username already exists.",
		})
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check username")
	}
	if req.Email != "" {
		taken, err := s.accounts.EmailExists(ctx, req.Email)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
		}
		if taken {
			return nil, dErrors.Validation("invalid registration", map[string]string{
				"email": "A user with that email already exists.",
			})
		}
	}

	hash, err := secrets.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	acct := &models.Account{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		Permissions:  []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "username or email already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}
	if s.metrics != nil {
		s.metrics.AccountsRegistered.Inc()
	}
	s.logAudit(ctx, audit.ActionAccountRegistered, acct.ID, "username", acct.Username)
	return acct, nil
}

// Login checks credentials in a fixed order: unknown identity and wrong
// password are both Unauthorized, a correct password on an inactive account
// is Forbidden. Only active accounts receive tokens.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	acct, err := s.accounts.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementLogin("unknown_identity")
			s.authFailure(ctx, "unknown_identity", req.Username)
			return nil, dErrors.New(dErrors.CodeUnauthorized, invalidCredentials)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	if err := secrets.Verify(req.Password, acct.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.metrics.IncrementLogin("bad_password")
			s.authFailure(ctx, "bad_password", req.Username)
			return nil, dErrors.New(dErrors.CodeUnauthorized, invalidCredentials)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify credentials")
	}

	if !acct.IsActive {
		s.metrics.IncrementLogin("inactive")
		s.authFailure(ctx, "inactive_account", req.Username)
		return nil, dErrors.New(dErrors.CodeForbidden, "Conta inativa. Aguarde a ativação pela administração.")
	}

	access, _, err := s.tokens.GenerateAccessToken(acct.ID, acct.Username, s.AccessTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access token")
	}
	refresh, _, err := s.tokens.GenerateRefreshToken(acct.ID, acct.Username, s.RefreshTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate refresh token")
	}
	if err := s.withPermissions(ctx, s.stores(), acct); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load permissions")
	}

	s.metrics.IncrementLogin("success")
	client := device.Describe(requestcontext.UserAgent(ctx))
	s.logAudit(ctx, audit.ActionLoginSucceeded, acct.ID,
		"username", acct.Username,
		"device", device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		"mobile", client.Mobile,
	)
	return &models.LoginResult{Refresh: refresh, Access: access, User: acct}, nil
}

// Refresh issues a new access token for a valid, unrevoked refresh token
// whose account still exists and is active.
func (s *Service) Refresh(ctx context.Context, req *models.TokenRequest) (*models.AccessResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	claims, err := s.tokens.ValidateRefreshToken(req.Refresh)
	if err != nil {
		s.authFailure(ctx, "invalid_refresh_token", "")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Token is invalid or expired")
	}
	if err := s.checkNotRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}

	acct, err := s.accounts.FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.authFailure(ctx, "account_gone", claims.Subject)
			return nil, dErrors.New(dErrors.CodeUnauthorized, "Token is invalid or expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if !acct.IsActive {
		s.authFailure(ctx, "inactive_account", acct.Username)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Token is invalid or expired")
	}

	access, _, err := s.tokens.GenerateAccessToken(acct.ID, acct.Username, s.AccessTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access token")
	}
	if s.metrics != nil {
		s.metrics.TokensRefreshed.Inc()
	}
	s.logAudit(ctx, audit.ActionTokenRefreshed, acct.ID)
	return &models.AccessResult{Access: access}, nil
}

// Verify accepts any token of either type that is signed, current and not
// revoked.
func (s *Service) Verify(ctx context.Context, req *models.TokenRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	token := req.Token
	if token == "" {
		token = req.Refresh
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "Token is invalid or expired")
	}
	return s.checkNotRevoked(ctx, claims.ID)
}

// Revoke logs out: the refresh token and the access token of the current
// request go on the revocation list until the refresh token expires.
func (s *Service) Revoke(ctx context.Context, req *models.TokenRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	claims, err := s.tokens.ValidateRefreshToken(req.Refresh)
	if err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "Token is invalid or expired")
	}
	if caller := requestcontext.AccountID(ctx); caller != 0 && caller != claims.AccountID {
		s.authFailure(ctx, "refresh_owner_mismatch", claims.Subject)
		return dErrors.New(dErrors.CodeForbidden, "refresh token belongs to another account")
	}
	if s.trl == nil {
		return nil
	}

	ttl := s.RefreshTTL
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	// The access token may outlive a nearly expired refresh token.
	ttl = max(ttl, s.AccessTTL)
	if err := s.trl.RevokeTokens(ctx, []string{claims.ID, requestcontext.TokenID(ctx)}, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}
	if s.metrics != nil {
		s.metrics.TokensRevoked.Inc()
	}
	s.logAudit(ctx, audit.ActionTokenRevoked, claims.AccountID)
	return nil
}

func (s *Service) checkNotRevoked(ctx context.Context, jti string) error {
	if s.trl == nil {
		return nil
	}
	revoked, err := s.trl.IsRevoked(ctx, jti)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check token revocation")
	}
	if revoked {
		s.authFailure(ctx, "revoked_token", jti)
		return dErrors.New(dErrors.CodeUnauthorized, "Token is blacklisted")
	}
	return nil
}
