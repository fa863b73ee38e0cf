package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"educa/internal/enrollment/models"
	"educa/pkg/domain"
	dErrors "educa/pkg/domain-errors"
	"educa/pkg/platform/httputil"
	"educa/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/enrollment-mocks.go -package=mocks Service

// Service defines the enrollment operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, req *models.EnrollmentRequest) (*models.Enrollment, error)
	Update(ctx context.Context, id int64, req *models.EnrollmentRequest, full bool) (*models.Enrollment, error)
	Get(ctx context.Context, id int64) (*models.Enrollment, error)
	List(ctx context.Context, f models.Filter) (*models.Page, error)
	Delete(ctx context.Context, id int64) error
	DeleteSchoolUnit(ctx context.Context, id int64) error
	Attach(ctx context.Context, upload *models.DocumentUpload) (*models.Documents, error)
	GetDocuments(ctx context.Context, enrollmentID int64) (*models.Documents, error)
}

const defaultMaxUploadBytes = 20 << 20

type Handler struct {
	enrollments    Service
	logger         *slog.Logger
	maxUploadBytes int64
}

func New(enrollments Service, logger *slog.Logger, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{enrollments: enrollments, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Register mounts the enrollment routes. Callers put RequireAuth in front.
func (h *Handler) Register(r chi.Router) {
	r.Post("/enrollment", h.HandleCreate)
	r.Get("/enrollment", h.HandleList)
	r.Post("/enrollment/documents", h.HandleAttachDocuments)
	r.Get("/enrollment/{id:[0-9]+}", h.HandleGet)
	r.Put("/enrollment/{id:[0-9]+}", h.handleUpdate(true))
	r.Patch("/enrollment/{id:[0-9]+}", h.handleUpdate(false))
	r.Delete("/enrollment/{id:[0-9]+}", h.HandleDelete)
	r.Get("/enrollment/{id:[0-9]+}/documents", h.HandleGetDocuments)
	r.Delete("/school-units/{id:[0-9]+}", h.HandleDeleteSchoolUnit)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.EnrollmentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, "invalid enrollment payload", err)
		return
	}
	e, err := h.enrollments.Create(ctx, &req)
	if err != nil {
		h.fail(ctx, w, "create enrollment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleUpdate(full bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		var req models.EnrollmentRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.fail(ctx, w, "invalid enrollment payload", err)
			return
		}
		e, err := h.enrollments.Update(ctx, id, &req, full)
		if err != nil {
			h.fail(ctx, w, "update enrollment failed", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, e)
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	e, err := h.enrollments.Get(ctx, id)
	if err != nil {
		h.fail(ctx, w, "get enrollment failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := filterFromQuery(r)
	if err != nil {
		h.fail(ctx, w, "invalid list filter", err)
		return
	}
	page, err := h.enrollments.List(ctx, f)
	if err != nil {
		h.fail(ctx, w, "list enrollments failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func filterFromQuery(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	fields := map[string]string{}
	f := models.Filter{
		Situation:  models.Situation(q.Get("situacao")),
		StudentCPF: q.Get("cpf"),
	}
	if f.Situation != "" && !f.Situation.IsValid() {
		fields["situacao"] = "Select a valid choice."
	}
	ints := []struct {
		name string
		dst  *int
	}{{"etapa", &f.Stage}, {"limit", &f.Limit}, {"offset", &f.Offset}}
	for _, p := range ints {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fields[p.name] = "Enter a whole number."
			continue
		}
		*p.dst = n
	}
	if len(fields) > 0 {
		return models.Filter{}, dErrors.Validation("invalid filter", fields)
	}
	return f, nil
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.enrollments.Delete(ctx, id); err != nil {
		h.fail(ctx, w, "delete enrollment failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleDeleteSchoolUnit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.enrollments.DeleteSchoolUnit(ctx, id); err != nil {
		h.fail(ctx, w, "delete school unit failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAttachDocuments reads a multipart form with the enrollment id and
// one file per document slot.
func (h *Handler) HandleAttachDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(ctx, w, "upload too large", dErrors.New(dErrors.CodeBadRequest,
				"upload exceeds "+strconv.FormatInt(h.maxUploadBytes, 10)+" bytes"))
			return
		}
		h.fail(ctx, w, "invalid multipart form", dErrors.Wrap(err, dErrors.CodeBadRequest, "Multipart form parse error"))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	upload := &models.DocumentUpload{
		Enrollment: r.FormValue("enrollment"),
		Files:      make(map[models.DocumentKind]models.UploadFile),
	}
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, kind := range models.DocumentKinds {
		headers := r.MultipartForm.File[string(kind)]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			h.fail(ctx, w, "open uploaded file failed", dErrors.Wrap(err, dErrors.CodeBadRequest, "could not read "+string(kind)))
			return
		}
		opened = append(opened, f)
		upload.Files[kind] = models.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Content:     f,
		}
	}

	docs, err := h.enrollments.Attach(ctx, upload)
	if err != nil {
		h.fail(ctx, w, "attach documents failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, docs)
}

func (h *Handler) HandleGetDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	docs, err := h.enrollments.GetDocuments(ctx, id)
	if err != nil {
		h.fail(ctx, w, "get documents failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, docs)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "Not found."))
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	log := h.logger.ErrorContext
	if de, ok := dErrors.As(err); ok && dErrors.ToHTTPStatus(de.Code) < http.StatusInternalServerError {
		log = h.logger.WarnContext
	}
	log(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	httputil.WriteError(w, err)
}
