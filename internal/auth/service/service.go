package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"educa/internal/audit"
	"educa/internal/auth/metrics"
	"educa/internal/auth/models"
	jwttoken "educa/internal/jwt_token"
	dErrors "educa/pkg/domain-errors"
	"educa/pkg/platform/sentinel"
	"educa/pkg/requestcontext"
)

const (
	defaultAccessTTL  = 60 * time.Minute
	defaultRefreshTTL = 24 * time.Hour
)

type AccountStore interface {
	Create(ctx context.Context, a *models.Account) error
	CreateIfEmailAvailable(ctx context.Context, a *models.Account) error
	FindByID(ctx context.Context, id int64) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, a *models.Account) error
	Delete(ctx context.Context, id int64) error
	GrantPermission(ctx context.Context, accountID, permissionID int64) error
	RevokePermission(ctx context.Context, accountID, permissionID int64) error
	PermissionIDs(ctx context.Context, accountID int64) ([]int64, error)
}

type PermissionStore interface {
	Create(ctx context.Context, p *models.Permission) error
	FindByID(ctx context.Context, id int64) (*models.Permission, error)
	FindByIDs(ctx context.Context, ids []int64) ([]models.Permission, error)
	FindByCodenames(ctx context.Context, codenames []string) ([]models.Permission, error)
	List(ctx context.Context) ([]models.Permission, error)
	Update(ctx context.Context, p *models.Permission) error
	Delete(ctx context.Context, id int64) error
}

// TokenIssuer signs and checks access and refresh tokens.
type TokenIssuer interface {
	GenerateAccessToken(accountID int64, username string, expiresIn time.Duration) (string, *jwttoken.Claims, error)
	GenerateRefreshToken(accountID int64, username string, expiresIn time.Duration) (string, *jwttoken.Claims, error)
	ValidateRefreshToken(token string) (*jwttoken.Claims, error)
	ValidateToken(token string) (*jwttoken.Claims, error)
}

type RevocationList interface {
	RevokeTokens(ctx context.Context, jtis []string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service owns accounts, permissions and the token lifecycle.
type Service struct {
	accounts       AccountStore
	permissions    PermissionStore
	tx             AuthStoreTx
	tokens         TokenIssuer
	trl            RevocationList
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx replaces the default coarse-lock unit of work, e.g. with a SQL
// transaction.
func WithTx(tx AuthStoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithRevocationList(trl RevocationList) Option {
	return func(s *Service) {
		s.trl = trl
	}
}

func WithTokenTTLs(access, refresh time.Duration) Option {
	return func(s *Service) {
		if access > 0 {
			s.AccessTTL = access
		}
		if refresh > 0 {
			s.RefreshTTL = refresh
		}
	}
}

func New(accounts AccountStore, permissions PermissionStore, tokens TokenIssuer, opts ...Option) (*Service, error) {
	if accounts == nil || permissions == nil {
		return nil, errors.New("account and permission stores are required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	s := &Service{
		accounts:    accounts,
		permissions: permissions,
		tokens:      tokens,
		logger:      slog.Default(),
		AccessTTL:   defaultAccessTTL,
		RefreshTTL:  defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewMutexTx(accounts, permissions)
	}
	return s, nil
}

// withPermissions fills a.Permissions with the codenames granted to it.
func (s *Service) withPermissions(ctx context.Context, st TxStores, a *models.Account) error {
	ids, err := st.Accounts.PermissionIDs(ctx, a.ID)
	if err != nil {
		return err
	}
	a.Permissions = []string{}
	if len(ids) == 0 {
		return nil
	}
	perms, err := st.Permissions.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range perms {
		a.Permissions = append(a.Permissions, p.Codename)
	}
	return nil
}

func (s *Service) stores() TxStores {
	return TxStores{Accounts: s.accounts, Permissions: s.permissions}
}

func accountNotFound(err error, message string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "Usuário não encontrado.")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, accountID int64, attributes ...any) {
	if accountID != 0 {
		attributes = append(attributes, "account_id", accountID)
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(action), "log_type", "audit")
	s.logger.InfoContext(ctx, string(action), args...)
	if s.auditPublisher == nil {
		return
	}
	s.auditPublisher.Emit(ctx, audit.Event{
		Action:    action,
		AccountID: accountID,
		Subject:   strconv.FormatInt(accountID, 10),
		Outcome:   "success",
	})
}

// authFailure logs and audits a rejected credential or token.
func (s *Service) authFailure(ctx context.Context, reason string, subject string) {
	s.logger.WarnContext(ctx, "authentication failed",
		"reason", reason,
		"subject", subject,
		"request_id", requestcontext.RequestID(ctx),
		"event", string(audit.ActionAuthFailed),
		"log_type", "audit",
	)
	if s.auditPublisher == nil {
		return
	}
	s.auditPublisher.Emit(ctx, audit.Event{
		Action:  audit.ActionAuthFailed,
		Subject: subject,
		Outcome: "failure",
		Reason:  reason,
	})
}
