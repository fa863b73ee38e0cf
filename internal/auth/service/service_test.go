package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"educa/internal/audit"
	"educa/internal/auth/metrics"
	"educa/internal/auth/models"
	"educa/internal/auth/store/account"
	"educa/internal/auth/store/permission"
	"educa/internal/auth/store/revocation"
	jwttoken "educa/internal/jwt_token"
	dErrors "educa/pkg/domain-errors"
	"educa/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx         context.Context
	accounts    *account.InMemoryAccountStore
	permissions *permission.InMemoryPermissionStore
	trl         *revocation.InMemoryTRL
	sink        *audit.MemorySink
	jwt         *jwttoken.JWTService
	service     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.accounts = account.NewInMemory()
	s.permissions = permission.NewInMemory()
	s.trl = revocation.NewInMemoryTRL(nil)
	s.sink = audit.NewMemorySink()
	s.jwt = jwttoken.NewJWTService("test-signing-key", "educa-test")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := New(s.accounts, s.permissions, s.jwt,
		WithLogger(logger),
		WithRevocationList(s.trl),
		WithAuditPublisher(audit.NewPublisher(logger, s.sink)),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)
	s.service = svc
}

func ptr[T any](v T) *T { return &v }

func (s *ServiceSuite) register(username, password string) *models.Account {
	acct, err := s.service.Register(s.ctx, &models.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	})
	s.Require().NoError(err)
	return acct
}

func (s *ServiceSuite) activate(id int64) {
	_, err := s.service.UpdateAccount(s.ctx, id, &models.AccountUpdateRequest{IsActive: ptr(true)}, false)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestRegisterCreatesInactiveAccount() {
	acct := s.register("maria", "s3cret-pass")

	s.False(acct.IsActive)
	s.NotEqual("s3cret-pass", acct.PasswordHash)
	s.Empty(acct.Permissions)

	_, err := s.service.Register(s.ctx, &models.RegisterRequest{Username: "maria", Password: "another-pass"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(dErrors.FieldsOf(err), "username")
}

func (s *ServiceSuite) TestLoginOrdering() {
	acct := s.register("joao", "correct-horse")

	s.Run("unknown identity is unauthorized", func() {
		_, err := s.service.Login(s.ctx, &models.LoginRequest{Username: "nobody", Password: "correct-horse"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("wrong password is unauthorized even when inactive", func() {
		_, err := s.service.Login(s.ctx, &models.LoginRequest{Username: "joao", Password: "wrong-horse"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("correct password on inactive account is forbidden", func() {
		res, err := s.service.Login(s.ctx, &models.LoginRequest{Username: "joao", Password: "correct-horse"})
		s.Nil(res)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("active account receives tokens and permissions", func() {
		perm, err := s.service.CreatePermission(s.ctx, &models.PermissionRequest{
			Name: ptr("Can view enrollment"), Codename: ptr("view_enrollment"), ContentType: ptr(7),
		})
		s.Require().NoError(err)
		_, err = s.service.AddPermission(s.ctx, acct.ID, &models.PermissionRef{PermissionID: perm.ID})
		s.Require().NoError(err)
		s.activate(acct.ID)

		res, err := s.service.Login(s.ctx, &models.LoginRequest{Username: "joao", Password: "correct-horse"})
		s.Require().NoError(err)
		s.NotEmpty(res.Access)
		s.NotEmpty(res.Refresh)
		s.Equal([]string{"view_enrollment"}, res.User.Permissions)

		claims, err := s.jwt.ValidateAccessToken(res.Access)
		s.Require().NoError(err)
		s.Equal(acct.ID, claims.AccountID)
	})

	failures := 0
	for _, e := range s.sink.Events() {
		if e.Action == audit.ActionAuthFailed {
			failures++
		}
	}
	s.Equal(3, failures)
}

func (s *ServiceSuite) login(username, password string) *models.LoginResult {
	acct := s.register(username, password)
	s.activate(acct.ID)
	res, err := s.service.Login(s.ctx, &models.LoginRequest{Username: username, Password: password})
	s.Require().NoError(err)
	return res
}

func (s *ServiceSuite) TestRefreshVerifyRevoke() {
	res := s.login("ana", "pass-word-1")

	access, err := s.service.Refresh(s.ctx, &models.TokenRequest{Refresh: res.Refresh})
	s.Require().NoError(err)
	s.NotEmpty(access.Access)

	s.NoError(s.service.Verify(s.ctx, &models.TokenRequest{Token: access.Access}))
	s.True(dErrors.HasCode(s.service.Verify(s.ctx, &models.TokenRequest{Token: "garbage"}), dErrors.CodeUnauthorized))

	_, err = s.service.Refresh(s.ctx, &models.TokenRequest{Refresh: access.Access})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "access tokens cannot refresh")

	accessClaims, err := s.jwt.ValidateAccessToken(res.Access)
	s.Require().NoError(err)
	ctx := requestcontext.WithTokenID(requestcontext.WithAccountID(s.ctx, res.User.ID), accessClaims.ID)
	s.Require().NoError(s.service.Revoke(ctx, &models.TokenRequest{Refresh: res.Refresh}))

	_, err = s.service.Refresh(s.ctx, &models.TokenRequest{Refresh: res.Refresh})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	revoked, err := s.trl.IsRevoked(s.ctx, accessClaims.ID)
	s.Require().NoError(err)
	s.True(revoked, "logout also revokes the access token in use")
}

func (s *ServiceSuite) TestRevokeRejectsAnotherAccountsToken() {
	res := s.login("bia", "pass-word-1")
	ctx := requestcontext.WithAccountID(s.ctx, res.User.ID+100)

	err := s.service.Revoke(ctx, &models.TokenRequest{Refresh: res.Refresh})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestRefreshRejectsDeletedOrInactiveAccount() {
	res := s.login("caio", "pass-word-1")

	_, err := s.service.UpdateAccount(s.ctx, res.User.ID, &models.AccountUpdateRequest{IsActive: ptr(false)}, false)
	s.Require().NoError(err)
	_, err = s.service.Refresh(s.ctx, &models.TokenRequest{Refresh: res.Refresh})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.Require().NoError(s.service.DeleteAccount(s.ctx, res.User.ID))
	_, err = s.service.Refresh(s.ctx, &models.TokenRequest{Refresh: res.Refresh})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestUpdateAccountPassword() {
	res := s.login("dani", "old-password")

	_, err := s.service.UpdateAccount(s.ctx, res.User.ID, &models.AccountUpdateRequest{Password: ptr("new-password")}, false)
	s.Require().NoError(err)

	_, err = s.service.Login(s.ctx, &models.LoginRequest{Username: "dani", Password: "old-password"})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	_, err = s.service.Login(s.ctx, &models.LoginRequest{Username: "dani", Password: "new-password"})
	s.NoError(err)
}

func (s *ServiceSuite) TestUpdateAccountFullRequiresUsername() {
	acct := s.register("edu", "pass-word-1")

	_, err := s.service.UpdateAccount(s.ctx, acct.ID, &models.AccountUpdateRequest{FirstName: ptr("Edu")}, true)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.UpdateAccount(s.ctx, 999, &models.AccountUpdateRequest{FirstName: ptr("x")}, false)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestPermissionGrantErrors() {
	acct := s.register("fabi", "pass-word-1")

	_, err := s.service.AddPermission(s.ctx, acct.ID, &models.PermissionRef{PermissionID: 42})
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
	s.Contains(err.Error(), "Permissão não encontrada.")

	_, err = s.service.RemovePermission(s.ctx, 999, &models.PermissionRef{PermissionID: 1})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestPermissionCRUD() {
	p, err := s.service.CreatePermission(s.ctx, &models.PermissionRequest{
		Name: ptr("Can add enrollment"), Codename: ptr("add_enrollment"), ContentType: ptr(7),
	})
	s.Require().NoError(err)

	_, err = s.service.CreatePermission(s.ctx, &models.PermissionRequest{
		Name: ptr("dup"), Codename: ptr("add_enrollment"), ContentType: ptr(7),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	updated, err := s.service.UpdatePermission(s.ctx, p.ID, &models.PermissionRequest{Name: ptr("Can create enrollment")}, false)
	s.Require().NoError(err)
	s.Equal("add_enrollment", updated.Codename)

	s.Require().NoError(s.service.DeletePermission(s.ctx, p.ID))
	_, err = s.service.GetPermission(s.ctx, p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	list, err := s.service.ListPermissions(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *ServiceSuite) TestCreateAdmin() {
	_, err := s.service.CreatePermission(s.ctx, &models.PermissionRequest{
		Name: ptr("Can delete enrollment"), Codename: ptr("delete_enrollment"), ContentType: ptr(7),
	})
	s.Require().NoError(err)

	req := func() *models.RegisterRequest {
		return &models.RegisterRequest{Username: "admin", Email: "admin@example.com", Password: "admin-pass"}
	}
	acct, created, err := s.service.CreateAdmin(s.ctx, req(), []string{" delete_enrollment", "delete_enrollment"})
	s.Require().NoError(err)
	s.True(created)
	s.True(acct.IsActive)
	s.True(acct.IsStaff)
	s.Equal([]string{"delete_enrollment"}, acct.Permissions)

	_, created, err = s.service.CreateAdmin(s.ctx, req(), nil)
	s.Require().NoError(err)
	s.False(created)

	_, _, err = s.service.CreateAdmin(s.ctx, req(), []string{"missing"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestEnsureInactiveAccount() {
	req := models.ProvisionRequest{Email: "mae@example.com", FirstName: "Clara", Kind: models.KindGuardian, Password: "abcdefghijk"}

	created, err := s.service.EnsureInactiveAccount(s.ctx, req)
	s.Require().NoError(err)
	s.True(created)

	inUse, err := s.service.EmailInUse(s.ctx, "MAE@example.com")
	s.Require().NoError(err)
	s.True(inUse)

	created, err = s.service.EnsureInactiveAccount(s.ctx, req)
	s.Require().NoError(err)
	s.False(created)

	acct, err := s.accounts.FindByUsername(s.ctx, "mae@example.com")
	s.Require().NoError(err)
	s.False(acct.IsActive)
	s.Equal(models.KindGuardian, acct.Kind)
}

func (s *ServiceSuite) TestEnsureInactiveAccountConcurrent() {
	var wg sync.WaitGroup
	var createdCount atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.service.EnsureInactiveAccount(s.ctx, models.ProvisionRequest{Email: "pai@example.com", Password: "abcdefghijk"})
			s.NoError(err)
			if created {
				createdCount.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), createdCount.Load())
}

func (s *ServiceSuite) TestTxHonoursCancelledContext() {
	ctx, cancel := context.WithTimeout(s.ctx, time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	err := s.service.GrantPermissions(ctx, 1, []string{"x"})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}
