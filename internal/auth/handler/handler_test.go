package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"educa/internal/auth/handler/mocks"
	"educa/internal/auth/models"
	dErrors "educa/pkg/domain-errors"
	"educa/pkg/testutil"
)

type AuthHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerSuite))
}

func (s *AuthHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.RegisterPublic(s.router)
	h.RegisterProtected(s.router)
}

func (s *AuthHandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

func (s *AuthHandlerSuite) TestRegister() {
	s.Run("created account is returned without its hash", func() {
		s.service.EXPECT().Register(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *models.RegisterRequest) (*models.Account, error) {
				s.Equal("maria@example.com", req.Email, "email is normalized before the service")
				return &models.Account{ID: 1, Username: req.Username, Email: req.Email, PasswordHash: "hash"}, nil
			})

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users/register", map[string]string{
			"username": "maria", "email": " Maria@Example.com ", "password": "s3cret-pass",
		}))
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		s.NotContains(rr.Body.String(), "hash")
		s.NotContains(rr.Body.String(), "s3cret-pass")
	})

	s.Run("short password never reaches the service", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users/register", map[string]string{
			"username": "maria", "password": "short",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *AuthHandlerSuite) TestLoginStatuses() {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown identity", dErrors.New(dErrors.CodeUnauthorized, "No active account found with the given credentials"), http.StatusUnauthorized},
		{"inactive account", dErrors.New(dErrors.CodeForbidden, "inactive"), http.StatusForbidden},
		{"store failure", dErrors.New(dErrors.CodeInternal, "boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().Login(gomock.Any(), gomock.Any()).Return(nil, tc.err)
			rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users/login", map[string]string{
				"username": "joao", "password": "whatever-pass",
			}))
			testutil.AssertStatus(s.T(), rr, tc.status)
		})
	}

	s.Run("success returns tokens and user", func() {
		s.service.EXPECT().Login(gomock.Any(), gomock.Any()).Return(&models.LoginResult{
			Refresh: "r", Access: "a", User: &models.Account{ID: 3, Username: "joao", Permissions: []string{"view_enrollment"}},
		}, nil)
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users/login", map[string]string{
			"username": "joao", "password": "whatever-pass",
		}))
		testutil.AssertStatusOK(s.T(), rr)
		res := testutil.UnmarshalResponse[models.LoginResult](s.T(), rr)
		s.Equal("a", res.Access)
		s.Equal([]string{"view_enrollment"}, res.User.Permissions)
	})
}

func (s *AuthHandlerSuite) TestTokenEndpoints() {
	s.service.EXPECT().Refresh(gomock.Any(), &models.TokenRequest{Refresh: "rt"}).Return(&models.AccessResult{Access: "new"}, nil)
	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/token/refresh", map[string]string{"refresh": "rt"}))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "access", "new")

	s.service.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(dErrors.New(dErrors.CodeUnauthorized, "Token is invalid or expired"))
	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/token/verify", map[string]string{"token": "bad"}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/token/refresh", map[string]string{}))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)

	s.service.EXPECT().Revoke(gomock.Any(), gomock.Any()).Return(nil)
	req := testutil.WithAuth(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users/logout", map[string]string{"refresh": "rt"}), 3, "jti")
	rr = s.do(req)
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
}

func (s *AuthHandlerSuite) TestAccountDetail() {
	s.service.EXPECT().GetAccount(gomock.Any(), int64(9)).Return(nil, dErrors.New(dErrors.CodeNotFound, "Usuário não encontrado."))
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/users/9"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")

	s.service.EXPECT().UpdateAccount(gomock.Any(), int64(9), gomock.Any(), false).DoAndReturn(
		func(_ context.Context, _ int64, req *models.AccountUpdateRequest, _ bool) (*models.Account, error) {
			s.Require().NotNil(req.IsActive)
			s.True(*req.IsActive)
			s.Nil(req.Username)
			return &models.Account{ID: 9, IsActive: true}, nil
		})
	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPatch, "/users/9", map[string]bool{"is_active": true}))
	testutil.AssertStatusOK(s.T(), rr)

	s.service.EXPECT().UpdateAccount(gomock.Any(), int64(9), gomock.Any(), true).Return(&models.Account{ID: 9}, nil)
	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/users/9", map[string]string{"username": "x"}))
	testutil.AssertStatusOK(s.T(), rr)

	s.service.EXPECT().DeleteAccount(gomock.Any(), int64(9)).Return(nil)
	rr = s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/users/9"))
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/users/abc"))
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
}

func (s *AuthHandlerSuite) TestAddAndRemovePermission() {
	s.service.EXPECT().AddPermission(gomock.Any(), int64(4), &models.PermissionRef{PermissionID: 2}).
		Return(&models.DetailResponse{Detail: "Permissão adicionada com sucesso."}, nil)
	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users/4/add-permission", map[string]int{"permission_id": 2}))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "detail", "Permissão adicionada com sucesso.")

	s.service.EXPECT().RemovePermission(gomock.Any(), int64(4), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "Permissão não encontrada."))
	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users/4/remove-permission", map[string]int{"permission_id": 99}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")

	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users/4/add-permission", map[string]int{}))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *AuthHandlerSuite) TestPermissionRoutes() {
	s.service.EXPECT().ListPermissions(gomock.Any()).Return([]models.Permission{{ID: 1, Codename: "add_enrollment"}}, nil)
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/users/permissions"))
	testutil.AssertStatusOK(s.T(), rr)

	s.service.EXPECT().CreatePermission(gomock.Any(), gomock.Any()).Return(&models.Permission{ID: 2, Codename: "x"}, nil)
	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/users/permissions", map[string]any{"name": "X", "codename": "x", "content_type": 1}))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	s.service.EXPECT().UpdatePermission(gomock.Any(), int64(2), gomock.Any(), false).Return(&models.Permission{ID: 2}, nil)
	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPatch, "/users/permissions/2", map[string]string{"name": "Y"}))
	testutil.AssertStatusOK(s.T(), rr)

	s.service.EXPECT().GetPermission(gomock.Any(), int64(2)).Return(&models.Permission{ID: 2}, nil)
	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/users/permissions/2"))
	testutil.AssertStatusOK(s.T(), rr)

	s.service.EXPECT().DeletePermission(gomock.Any(), int64(2)).Return(nil)
	rr = s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/users/permissions/2"))
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
}
