package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"educa/internal/enrollment/handler/mocks"
	"educa/internal/enrollment/models"
	dErrors "educa/pkg/domain-errors"
	"educa/pkg/testutil"
)

type EnrollmentHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestEnrollmentHandlerSuite(t *testing.T) {
	suite.Run(t, new(EnrollmentHandlerSuite))
}

func (s *EnrollmentHandlerSuite) SetupTest() {
	s.service = mocks.NewMockService(gomock.NewController(s.T()))
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)), 1<<10).Register(s.router)
}

func (s *EnrollmentHandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

const createBody = `{
	"student": {"cpf": "111", "nome": "Ana"},
	"responsible": {"cpf": "222", "nome": "Clara"},
	"address": {"cep": "01001-000"}
}`

func (s *EnrollmentHandlerSuite) TestCreate() {
	s.Run("decoded payload reaches the service", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *models.EnrollmentRequest) (*models.Enrollment, error) {
				s.Require().NotNil(req.Student)
				s.Equal("111", *req.Student.CPF)
				s.Nil(req.SchoolUnit)
				return &models.Enrollment{ID: 1, Stage: 1, Situation: models.SituationPending}, nil
			})
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/enrollment", createBody))
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "situacao", "pendente")
	})

	s.Run("validation errors keep dotted field names", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil,
			dErrors.Validation("invalid enrollment payload", map[string]string{"student.cpf": "This field is required."}))
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/enrollment", `{}`))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
		testutil.AssertFieldError(s.T(), rr, "student.cpf")
	})

	s.Run("conflict is 409", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeConflict, "student already has an enrollment"))
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/enrollment", createBody))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("malformed json never reaches the service", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/enrollment", `{"student":`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *EnrollmentHandlerSuite) TestUpdateSelectsFullOrPartial() {
	s.service.EXPECT().Update(gomock.Any(), int64(5), gomock.Any(), true).Return(&models.Enrollment{ID: 5}, nil)
	rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPut, "/enrollment/5", createBody))
	testutil.AssertStatusOK(s.T(), rr)

	s.service.EXPECT().Update(gomock.Any(), int64(5), gomock.Any(), false).Return(nil, dErrors.New(dErrors.CodeNotFound, "enrollment not found"))
	rr = s.do(testutil.NewRequestWithBody(s.T(), http.MethodPatch, "/enrollment/5", `{"etapa": 2}`))
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
}

func (s *EnrollmentHandlerSuite) TestGetAndDelete() {
	s.service.EXPECT().Get(gomock.Any(), int64(3)).Return(&models.Enrollment{ID: 3}, nil)
	testutil.AssertStatusOK(s.T(), s.do(testutil.NewRequest(s.T(), http.MethodGet, "/enrollment/3")))

	s.service.EXPECT().Delete(gomock.Any(), int64(3)).Return(nil)
	testutil.AssertStatus(s.T(), s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/enrollment/3")), http.StatusNoContent)

	s.service.EXPECT().DeleteSchoolUnit(gomock.Any(), int64(8)).Return(dErrors.New(dErrors.CodeNotFound, "school unit not found"))
	testutil.AssertStatus(s.T(), s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/school-units/8")), http.StatusNotFound)
}

func (s *EnrollmentHandlerSuite) TestListParsesFilters() {
	s.service.EXPECT().List(gomock.Any(), models.Filter{
		Situation: models.SituationApproved, Stage: 2, StudentCPF: "111", Limit: 10, Offset: 20,
	}).Return(&models.Page{Count: 0, Limit: 10, Offset: 20, Results: []models.Enrollment{}}, nil)
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/enrollment?situacao=aprovado&etapa=2&cpf=111&limit=10&offset=20"))
	testutil.AssertStatusOK(s.T(), rr)

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/enrollment?situacao=talvez&etapa=x"))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertFieldError(s.T(), rr, "etapa")
}

func (s *EnrollmentHandlerSuite) TestAttachDocuments() {
	s.Run("files are handed over by slot", func() {
		s.service.EXPECT().Attach(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, u *models.DocumentUpload) (*models.Documents, error) {
				s.Equal("7", u.Enrollment)
				s.Len(u.Files, 2)
				body, err := io.ReadAll(u.Files[models.DocResidenceProof].Content)
				s.Require().NoError(err)
				s.Equal("conta de luz", string(body))
				s.Equal(int64(len("conta de luz")), u.Files[models.DocResidenceProof].Size)
				return &models.Documents{ID: 1, EnrollmentID: 7}, nil
			})
		req := testutil.NewMultipartRequest(s.T(), http.MethodPost, "/enrollment/documents",
			map[string]string{"enrollment": "7"},
			map[string][2]string{
				"comprovante_residencia": {"luz.pdf", "conta de luz"},
				"historico_escolar":      {"hist.pdf", "notas"},
			})
		testutil.AssertStatus(s.T(), s.do(req), http.StatusCreated)
	})

	s.Run("upload above the limit is rejected", func() {
		req := testutil.NewMultipartRequest(s.T(), http.MethodPost, "/enrollment/documents",
			map[string]string{"enrollment": "7"},
			map[string][2]string{"historico_escolar": {"big.pdf", strings.Repeat("x", 4<<10)}})
		testutil.AssertStatusAndError(s.T(), s.do(req), http.StatusBadRequest, "bad_request")
	})

	s.Run("json body is not a multipart form", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/enrollment/documents", `{}`))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *EnrollmentHandlerSuite) TestGetDocuments() {
	s.service.EXPECT().GetDocuments(gomock.Any(), int64(7)).Return(nil, dErrors.New(dErrors.CodeNotFound, "documents not found"))
	testutil.AssertStatus(s.T(), s.do(testutil.NewRequest(s.T(), http.MethodGet, "/enrollment/7/documents")), http.StatusNotFound)
}
