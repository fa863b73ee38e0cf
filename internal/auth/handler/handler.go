package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"educa/internal/auth/models"
	"educa/pkg/domain"
	dErrors "educa/pkg/domain-errors"
	"educa/pkg/platform/httputil"
	"educa/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/auth-mocks.go -package=mocks Service

// Service defines the account, permission and token operations.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.Account, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error)
	Refresh(ctx context.Context, req *models.TokenRequest) (*models.AccessResult, error)
	Verify(ctx context.Context, req *models.TokenRequest) error
	Revoke(ctx context.Context, req *models.TokenRequest) error

	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	UpdateAccount(ctx context.Context, id int64, req *models.AccountUpdateRequest, full bool) (*models.Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	AddPermission(ctx context.Context, accountID int64, ref *models.PermissionRef) (*models.DetailResponse, error)
	RemovePermission(ctx context.Context, accountID int64, ref *models.PermissionRef) (*models.DetailResponse, error)

	ListPermissions(ctx context.Context) ([]models.Permission, error)
	GetPermission(ctx context.Context, id int64) (*models.Permission, error)
	CreatePermission(ctx context.Context, req *models.PermissionRequest) (*models.Permission, error)
	UpdatePermission(ctx context.Context, id int64, req *models.PermissionRequest, full bool) (*models.Permission, error)
	DeletePermission(ctx context.Context, id int64) error
}

type Handler struct {
	auth   Service
	logger *slog.Logger
}

func New(auth Service, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, logger: logger}
}

// RegisterPublic mounts the endpoints reachable without a token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/users/register", h.HandleRegister)
	r.Post("/users/login", h.HandleLogin)
	r.Post("/api/token/refresh", h.HandleRefresh)
	r.Post("/api/token/verify", h.HandleVerify)
}

// RegisterProtected mounts the endpoints that expect RequireAuth upstream.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/users/logout", h.HandleLogout)

	r.Get("/users/permissions", h.HandleListPermissions)
	r.Post("/users/permissions", h.HandleCreatePermission)
	r.Get("/users/permissions/{id:[0-9]+}", h.HandleGetPermission)
	r.Put("/users/permissions/{id:[0-9]+}", h.handleUpdatePermission(true))
	r.Patch("/users/permissions/{id:[0-9]+}", h.handleUpdatePermission(false))
	r.Delete("/users/permissions/{id:[0-9]+}", h.HandleDeletePermission)

	r.Get("/users/{id:[0-9]+}", h.HandleGetAccount)
	r.Put("/users/{id:[0-9]+}", h.handleUpdateAccount(true))
	r.Patch("/users/{id:[0-9]+}", h.handleUpdateAccount(false))
	r.Delete("/users/{id:[0-9]+}", h.HandleDeleteAccount)
	r.Post("/users/{id:[0-9]+}/add-permission", h.HandleAddPermission)
	r.Post("/users/{id:[0-9]+}/remove-permission", h.HandleRemovePermission)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	acct, err := h.auth.Register(ctx, req)
	if err != nil {
		h.fail(ctx, w, "register failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, acct)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.auth.Login(ctx, req)
	if err != nil {
		h.fail(ctx, w, "login failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.TokenRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := h.auth.Refresh(ctx, req)
	if err != nil {
		h.fail(ctx, w, "token refresh failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.TokenRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.auth.Verify(ctx, req); err != nil {
		h.fail(ctx, w, "token verify failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.TokenRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.auth.Revoke(ctx, req); err != nil {
		h.fail(ctx, w, "logout failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	acct, err := h.auth.GetAccount(ctx, id)
	if err != nil {
		h.fail(ctx, w, "get account failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct)
}

func (h *Handler) handleUpdateAccount(full bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		req, ok := httputil.DecodeAndPrepare[models.AccountUpdateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		acct, err := h.auth.UpdateAccount(ctx, id, req, full)
		if err != nil {
			h.fail(ctx, w, "update account failed", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, acct)
	}
}

func (h *Handler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.auth.DeleteAccount(ctx, id); err != nil {
		h.fail(ctx, w, "delete account failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAddPermission(w http.ResponseWriter, r *http.Request) {
	h.changePermission(w, r, h.auth.AddPermission)
}

func (h *Handler) HandleRemovePermission(w http.ResponseWriter, r *http.Request) {
	h.changePermission(w, r, h.auth.RemovePermission)
}

func (h *Handler) changePermission(w http.ResponseWriter, r *http.Request,
	change func(context.Context, int64, *models.PermissionRef) (*models.DetailResponse, error),
) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ref, ok := httputil.DecodeAndPrepare[models.PermissionRef](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := change(ctx, id, ref)
	if err != nil {
		h.fail(ctx, w, "permission change failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleListPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	perms, err := h.auth.ListPermissions(ctx)
	if err != nil {
		h.fail(ctx, w, "list permissions failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, perms)
}

func (h *Handler) HandleGetPermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.auth.GetPermission(ctx, id)
	if err != nil {
		h.fail(ctx, w, "get permission failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleCreatePermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.PermissionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	p, err := h.auth.CreatePermission(ctx, req)
	if err != nil {
		h.fail(ctx, w, "create permission failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleUpdatePermission(full bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		req, ok := httputil.DecodeAndPrepare[models.PermissionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		p, err := h.auth.UpdatePermission(ctx, id, req, full)
		if err != nil {
			h.fail(ctx, w, "update permission failed", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, p)
	}
}

func (h *Handler) HandleDeletePermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.auth.DeletePermission(ctx, id); err != nil {
		h.fail(ctx, w, "delete permission failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "Not found."))
		return 0, false
	}
	return id, true
}

// fail logs client errors at warn and everything else at error.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	log := h.logger.ErrorContext
	if de, ok := dErrors.As(err); ok && dErrors.ToHTTPStatus(de.Code) < http.StatusInternalServerError {
		log = h.logger.WarnContext
	}
	log(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	httputil.WriteError(w, err)
}
