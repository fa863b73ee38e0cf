// Package provisioning creates inactive accounts for the people on a new
// enrollment and sends each of them a one-time credential.
package provisioning

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"educa/internal/audit"
	authmodels "educa/internal/auth/models"
	"educa/internal/enrollment/models"
	"educa/internal/notification"
	"educa/pkg/email"
	"educa/pkg/platform/secrets"
	"educa/pkg/requestcontext"
)

// Accounts is the slice of the auth service provisioning needs.
type Accounts interface {
	EmailInUse(ctx context.Context, email string) (bool, error)
	EnsureInactiveAccount(ctx context.Context, req authmodels.ProvisionRequest) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

type Role string

const (
	RoleGuardian Role = "guardian"
	RoleStudent  Role = "student"
)

type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeAccountFailed Outcome = "account_failed"
	OutcomeNotifyFailed  Outcome = "notify_failed"
)

// LegResult is what happened for one person.
type LegResult struct {
	Role    Role
	Email   string
	Outcome Outcome
	Err     error
}

// Report holds both legs of one run.
type Report struct {
	Guardian LegResult
	Student  LegResult
}

type Service struct {
	accounts       Accounts
	notifier       notification.Notifier
	systemURL      string
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *Metrics
	tracer         trace.Tracer
	credential     func() (string, error)
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

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCredentialGenerator replaces the random one-time credential source.
func WithCredentialGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		if gen != nil {
			s.credential = gen
		}
	}
}

func New(accounts Accounts, notifier notification.Notifier, systemURL string, opts ...Option) *Service {
	s := &Service{
		accounts:   accounts,
		notifier:   notifier,
		systemURL:  systemURL,
		logger:     slog.Default(),
		tracer:     otel.Tracer("educa/provisioning"),
		credential: secrets.GenerateCredential,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provision runs the workflow and discards the report. Failures are already
// logged, counted and audited per leg.
func (s *Service) Provision(ctx context.Context, e *models.Enrollment) {
	_ = s.Run(ctx, e)
}

// Run provisions the guardian and the student concurrently. One leg failing
// never stops the other.
func (s *Service) Run(ctx context.Context, e *models.Enrollment) Report {
	ctx, span := s.tracer.Start(ctx, "provisioning.Run", trace.WithAttributes(attribute.Int64("enrollment.id", e.ID)))
	defer span.End()

	school := e.SchoolName()
	guardian, student := e.Guardian, e.Student
	var report Report
	var g errgroup.Group
	g.Go(func() error {
		report.Guardian = s.leg(ctx, e.ID, RoleGuardian, guardian.Person, authmodels.KindGuardian,
			func(cred notification.Credentials) string {
				return notification.GuardianWelcome(guardian.Name, school, s.systemURL, cred)
			})
		return nil
	})
	g.Go(func() error {
		report.Student = s.leg(ctx, e.ID, RoleStudent, student.Person, authmodels.KindStudent,
			func(cred notification.Credentials) string {
				return notification.StudentWelcome(student.Name, guardian.Name, school, s.systemURL, cred)
			})
		return nil
	})
	_ = g.Wait()

	span.SetAttributes(
		attribute.String("provisioning.guardian", string(report.Guardian.Outcome)),
		attribute.String("provisioning.student", string(report.Student.Outcome)),
	)
	return report
}

func (s *Service) leg(ctx context.Context, enrollmentID int64, role Role, p models.Person, kind authmodels.Kind,
	compose func(notification.Credentials) string,
) LegResult {
	res := LegResult{Role: role, Email: email.Normalize(p.Email)}
	defer func() { s.record(ctx, enrollmentID, res) }()

	inUse, err := s.accounts.EmailInUse(ctx, res.Email)
	if err != nil {
		res.Outcome, res.Err = OutcomeAccountFailed, err
		return res
	}
	if inUse {
		res.Outcome = OutcomeSkipped
		return res
	}

	password, err := s.credential()
	if err != nil {
		res.Outcome, res.Err = OutcomeAccountFailed, err
		return res
	}
	first, last := email.SplitFullName(p.Name, res.Email)
	created, err := s.accounts.EnsureInactiveAccount(ctx, authmodels.ProvisionRequest{
		Email:     res.Email,
		FirstName: first,
		LastName:  last,
		Kind:      kind,
		Password:  password,
	})
	if err != nil {
		res.Outcome, res.Err = OutcomeAccountFailed, err
		return res
	}
	if !created {
		res.Outcome = OutcomeSkipped
		return res
	}

	text := compose(notification.Credentials{Email: res.Email, Password: password})
	if err := s.notifier.Send(ctx, notification.Message{Phone: p.Phone, Text: text}); err != nil {
		res.Outcome, res.Err = OutcomeNotifyFailed, err
		return res
	}
	res.Outcome = OutcomeCreated
	return res
}

func (s *Service) record(ctx context.Context, enrollmentID int64, res LegResult) {
	s.metrics.observe(res.Role, res.Outcome)

	attrs := []any{
		"enrollment_id", enrollmentID,
		"role", string(res.Role),
		"outcome", string(res.Outcome),
		"request_id", requestcontext.RequestID(ctx),
		"event", string(audit.ActionAccountProvisioned),
		"log_type", "audit",
	}
	event := audit.Event{
		Action:  audit.ActionAccountProvisioned,
		Subject: res.Email,
		Outcome: string(res.Outcome),
	}
	if res.Err != nil {
		event.Reason = res.Err.Error()
		s.logger.ErrorContext(ctx, "account provisioning failed", append(attrs, "error", res.Err)...)
	} else {
		s.logger.InfoContext(ctx, "account provisioning", attrs...)
	}
	if s.auditPublisher != nil {
		s.auditPublisher.Emit(ctx, event)
	}
}
