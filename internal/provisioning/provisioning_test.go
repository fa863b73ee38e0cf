package provisioning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"educa/internal/audit"
	authmodels "educa/internal/auth/models"
	authservice "educa/internal/auth/service"
	"educa/internal/auth/store/account"
	"educa/internal/auth/store/permission"
	"educa/internal/enrollment/models"
	jwttoken "educa/internal/jwt_token"
	"educa/internal/notification"
)

type ProvisioningSuite struct {
	suite.Suite
	ctx      context.Context
	accounts *account.InMemoryAccountStore
	auth     *authservice.Service
	notifier *notification.Recorder
	sink     *audit.MemorySink
	metrics  *Metrics
	service  *Service
}

func TestProvisioningSuite(t *testing.T) {
	suite.Run(t, new(ProvisioningSuite))
}

func (s *ProvisioningSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.accounts = account.NewInMemory()
	auth, err := authservice.New(s.accounts, permission.NewInMemory(),
		jwttoken.NewJWTService("test-signing-key", "educa-test"),
		authservice.WithLogger(logger),
	)
	s.Require().NoError(err)
	s.auth = auth
	s.notifier = &notification.Recorder{}
	s.sink = audit.NewMemorySink()
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.service = New(s.auth, s.notifier, "https://sistema.educa.test",
		WithLogger(logger),
		WithAuditPublisher(audit.NewPublisher(logger, s.sink)),
		WithMetrics(s.metrics),
		WithCredentialGenerator(func() (string, error) { return "Xy7-k2PqR9a", nil }),
	)
}

func enrollment() *models.Enrollment {
	e := &models.Enrollment{ID: 42, SchoolUnit: &models.SchoolUnit{Name: "EMEF Monteiro Lobato"}}
	e.Guardian.Person = models.Person{Name: "Ana Maria Souza", Email: "Ana@Example.com", Phone: "5511988887777"}
	e.Student.Person = models.Person{Name: "Pedro Souza", Email: "pedro@example.com", Phone: "5511977776666"}
	return e
}

func (s *ProvisioningSuite) account(email string) *authmodels.Account {
	acct, err := s.accounts.FindByUsername(s.ctx, email)
	s.Require().NoError(err)
	return acct
}

func (s *ProvisioningSuite) TestCreatesBothAccountsAndNotifies() {
	report := s.service.Run(s.ctx, enrollment())

	s.Equal(OutcomeCreated, report.Guardian.Outcome)
	s.Equal(OutcomeCreated, report.Student.Outcome)

	guardian := s.account("ana@example.com")
	s.False(guardian.IsActive)
	s.Equal(authmodels.KindGuardian, guardian.Kind)
	s.Equal("Ana", guardian.FirstName)
	s.Equal("Maria Souza", guardian.LastName)
	student := s.account("pedro@example.com")
	s.Equal(authmodels.KindStudent, student.Kind)

	toGuardian := s.notifier.SentTo("5511988887777")
	s.Require().Len(toGuardian, 1)
	s.Contains(toGuardian[0].Text, "EMEF Monteiro Lobato")
	s.Contains(toGuardian[0].Text, "ana@example.com")
	s.Contains(toGuardian[0].Text, "Xy7-k2PqR9a")

	toStudent := s.notifier.SentTo("5511977776666")
	s.Require().Len(toStudent, 1)
	s.Contains(toStudent[0].Text, "Ana Maria Souza")

	s.Len(s.sink.ByAction(audit.ActionAccountProvisioned), 2)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.Legs.WithLabelValues("guardian", "created"))+
		testutil.ToFloat64(s.metrics.Legs.WithLabelValues("student", "created")))
}

func (s *ProvisioningSuite) TestNotificationFailureKeepsAccount() {
	s.notifier.Err = errors.New("gateway down")
	s.notifier.FailPhones = map[string]bool{"5511988887777": true}

	report := s.service.Run(s.ctx, enrollment())

	s.Equal(OutcomeNotifyFailed, report.Guardian.Outcome)
	s.Error(report.Guardian.Err)
	s.Equal(OutcomeCreated, report.Student.Outcome)
	s.NotNil(s.account("ana@example.com"))
	s.Empty(s.notifier.SentTo("5511988887777"))
	s.Len(s.notifier.SentTo("5511977776666"), 1)

	var failed int
	for _, e := range s.sink.ByAction(audit.ActionAccountProvisioned) {
		if e.Outcome == string(OutcomeNotifyFailed) {
			failed++
			s.Contains(e.Reason, "gateway down")
		}
	}
	s.Equal(1, failed)
}

func (s *ProvisioningSuite) TestGuardianFailureStillProvisionsStudent() {
	e := enrollment()
	e.Guardian.Email = ""

	report := s.service.Run(s.ctx, e)

	s.Equal(OutcomeAccountFailed, report.Guardian.Outcome)
	s.Equal(OutcomeCreated, report.Student.Outcome)
	s.Len(s.notifier.Sent(), 1)
}

func (s *ProvisioningSuite) TestExistingEmailIsSkipped() {
	created, err := s.auth.EnsureInactiveAccount(s.ctx, authmodels.ProvisionRequest{
		Email: "pedro@example.com", Password: "first-pass", Kind: authmodels.KindStudent,
	})
	s.Require().NoError(err)
	s.Require().True(created)

	report := s.service.Run(s.ctx, enrollment())

	s.Equal(OutcomeCreated, report.Guardian.Outcome)
	s.Equal(OutcomeSkipped, report.Student.Outcome)
	s.Empty(s.notifier.SentTo("5511977776666"))
}

func (s *ProvisioningSuite) TestSecondRunCreatesNothing() {
	s.service.Provision(s.ctx, enrollment())
	report := s.service.Run(s.ctx, enrollment())

	s.Equal(OutcomeSkipped, report.Guardian.Outcome)
	s.Equal(OutcomeSkipped, report.Student.Outcome)
	s.Len(s.notifier.Sent(), 2)
}

func (s *ProvisioningSuite) TestDefaultSchoolName() {
	e := enrollment()
	e.SchoolUnit = nil

	s.service.Run(s.ctx, e)

	msgs := s.notifier.SentTo("5511988887777")
	s.Require().Len(msgs, 1)
	s.True(strings.Contains(msgs[0].Text, notification.DefaultSchoolName))
}
