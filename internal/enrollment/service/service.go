package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"educa/internal/audit"
	"educa/internal/enrollment/metrics"
	"educa/internal/enrollment/models"
	"educa/internal/enrollment/store"
	"educa/internal/storage/blob"
	dErrors "educa/pkg/domain-errors"
	"educa/pkg/platform/sentinel"
	"educa/pkg/requestcontext"
)

// Provisioner runs the post-create account workflow. It must not fail the
// enrollment, so it reports nothing back.
type Provisioner interface {
	Provision(ctx context.Context, e *models.Enrollment)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service reconciles nested enrollment payloads into the aggregate and
// manages its documents.
type Service struct {
	store          store.TxStore
	blobs          blob.Store
	provisioner    Provisioner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
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

func WithProvisioner(p Provisioner) Option {
	return func(s *Service) {
		s.provisioner = p
	}
}

func New(st store.TxStore, blobs blob.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		blobs:  blobs,
		logger: slog.Default(),
		tracer: otel.Tracer("educa/enrollment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates req, writes every part of the aggregate in one unit of
// work and then provisions accounts for the guardian and the student.
func (s *Service) Create(ctx context.Context, req *models.EnrollmentRequest) (*models.Enrollment, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.Create")
	defer span.End()
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, s.fail(span, err)
	}

	var created *models.Enrollment
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		e, err := s.reconcileCreate(ctx, tx, req)
		created = e
		return err
	})
	if err != nil {
		return nil, s.fail(span, s.translate(ctx, err, "failed to create enrollment"))
	}
	if s.metrics != nil {
		s.metrics.ObserveReconcile("create", start)
		s.metrics.EnrollmentsCreated.Inc()
	}
	span.SetAttributes(attribute.Int64("enrollment.id", created.ID))
	s.logAudit(ctx, audit.ActionEnrollmentCreated, created.ID)

	if s.provisioner != nil {
		// The enrollment is committed; a client disconnect must not cut the
		// workflow short.
		s.provisioner.Provision(context.WithoutCancel(ctx), created)
	}
	return created, nil
}

// Update applies req to an existing enrollment. PUT callers pass full=true
// and must supply every nested part; PATCH accepts any subset.
func (s *Service) Update(ctx context.Context, id int64, req *models.EnrollmentRequest, full bool) (*models.Enrollment, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.Update", trace.WithAttributes(attribute.Int64("enrollment.id", id)))
	defer span.End()
	start := time.Now()

	validate := req.ValidatePartial
	if full {
		validate = req.Validate
	}
	if err := validate(); err != nil {
		return nil, s.fail(span, err)
	}

	var updated *models.Enrollment
	var changed []string
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		e, fields, err := s.reconcileUpdate(ctx, tx, id, req)
		updated, changed = e, fields
		return err
	})
	if err != nil {
		return nil, s.fail(span, s.translate(ctx, err, "failed to update enrollment"))
	}
	if s.metrics != nil {
		s.metrics.ObserveReconcile("update", start)
		s.metrics.EnrollmentsUpdated.Inc()
	}
	s.logAudit(ctx, audit.ActionEnrollmentUpdated, id, "changed", changed)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Enrollment, error) {
	e, err := s.store.GetEnrollment(ctx, id)
	if err != nil {
		return nil, s.translate(ctx, err, "failed to load enrollment")
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, f models.Filter) (*models.Page, error) {
	f = f.Normalize()
	results, total, err := s.store.ListEnrollments(ctx, f)
	if err != nil {
		return nil, s.translate(ctx, err, "failed to list enrollments")
	}
	return &models.Page{Count: total, Limit: f.Limit, Offset: f.Offset, Results: results}, nil
}

// Delete removes the enrollment, its owned address and its document row.
// Document blobs are removed after commit; failures there are only logged.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "enrollment.Delete", trace.WithAttributes(attribute.Int64("enrollment.id", id)))
	defer span.End()

	var blobKeys []string
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		rec, err := tx.GetRecord(ctx, id)
		if err != nil {
			return err
		}
		docs, err := tx.GetDocuments(ctx, id)
		switch {
		case err == nil:
			blobKeys = docs.Keys()
		case !errors.Is(err, sentinel.ErrNotFound):
			return err
		}
		if err := tx.DeleteEnrollment(ctx, id); err != nil {
			return err
		}
		return tx.DeleteAddress(ctx, rec.AddressID)
	})
	if err != nil {
		return s.fail(span, s.translate(ctx, err, "failed to delete enrollment"))
	}

	s.removeBlobs(ctx, blobKeys)
	if s.metrics != nil {
		s.metrics.EnrollmentsDeleted.Inc()
	}
	s.logAudit(ctx, audit.ActionEnrollmentDeleted, id)
	return nil
}

// DeleteSchoolUnit removes a unit; linked enrollments keep existing with no unit.
func (s *Service) DeleteSchoolUnit(ctx context.Context, id int64) error {
	if err := s.store.DeleteSchoolUnit(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "school unit not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete school unit")
	}
	s.logAudit(ctx, audit.ActionSchoolUnitDeleted, 0, "school_unit_id", id)
	return nil
}

func (s *Service) removeBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to remove document blob",
				"key", key,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
}

// translate maps store facts to domain errors. Errors that already carry a
// domain code pass through.
func (s *Service) translate(ctx context.Context, err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "enrollment not found")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	s.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, enrollmentID int64, attributes ...any) {
	subject := ""
	if enrollmentID != 0 {
		subject = strconv.FormatInt(enrollmentID, 10)
		attributes = append(attributes, "enrollment_id", enrollmentID)
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(action), "log_type", "audit")
	s.logger.InfoContext(ctx, string(action), args...)
	if s.auditPublisher == nil {
		return
	}
	s.auditPublisher.Emit(ctx, audit.Event{Action: action, Subject: subject, Outcome: "success"})
}
