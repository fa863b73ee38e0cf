package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/stretchr/testify/suite"

	"educa/internal/enrollment/models"
	"educa/internal/enrollment/store"
	"educa/pkg/domain"
	"educa/pkg/platform/sentinel"
)

// storeSuite runs the same behavioural checks against every Store
// implementation. Embedders set newStore and, optionally, reset.
type storeSuite struct {
	suite.Suite
	newStore func() store.TxStore
	reset    func()
	store    store.TxStore
	ctx      context.Context
}

func (s *storeSuite) SetupTest() {
	if s.reset != nil {
		s.reset()
	}
	s.store = s.newStore()
	s.ctx = context.Background()
}

func ptr[T any](v T) *T { return &v }

func newStudent(cpf string) *models.Student {
	return &models.Student{
		Person: models.Person{
			CPF: cpf, Name: "Ana Souza", Email: "ana." + cpf + "@example.com",
			BirthDate: domain.NewDate(2012, time.May, 1), Phone: "+5511999990000", Gender: models.GenderFemale,
		},
		RG: "12345", IssuingBody: "SSP", IssuingState: "SP",
	}
}

func newGuardian(cpf string) *models.Guardian {
	return &models.Guardian{
		Person: models.Person{
			CPF: cpf, Name: "Maria Souza", Email: "maria." + cpf + "@example.com",
			BirthDate: domain.NewDate(1985, time.March, 10), Phone: "+5511988880000", Gender: "feminino",
		},
		Relationship: models.RelationshipMother,
	}
}

func newAddress() *models.Address {
	return &models.Address{CEP: "01001-000", State: "SP", City: "São Paulo", District: "Sé", Complement: ptr("apto 2")}
}

func newUnit(cnpj string) *models.SchoolUnit {
	return &models.SchoolUnit{Name: "EMEF Centro", CNPJ: cnpj, Address: "Rua A, 1", Active: true}
}

// seed writes a complete enrollment and returns its record.
func (s *storeSuite) seed(studentCPF, guardianCPF string, unit *models.SchoolUnit) *models.Record {
	var rec *models.Record
	err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx store.Store) error {
		st, g, a := newStudent(studentCPF), newGuardian(guardianCPF), newAddress()
		if _, err := tx.GetOrCreateStudent(ctx, st); err != nil {
			return err
		}
		if _, err := tx.GetOrCreateGuardian(ctx, g); err != nil {
			return err
		}
		if err := tx.CreateAddress(ctx, a); err != nil {
			return err
		}
		now := time.Now().UTC().Truncate(time.Millisecond)
		rec = &models.Record{StudentID: st.ID, GuardianID: g.ID, AddressID: a.ID, Stage: 1,
			Situation: models.SituationPending, CreatedAt: now, UpdatedAt: now}
		if unit != nil {
			stored, _, err := tx.GetOrCreateSchoolUnit(ctx, unit)
			if err != nil {
				return err
			}
			rec.SchoolUnitID = &stored.ID
		}
		return tx.CreateEnrollment(ctx, rec)
	})
	s.Require().NoError(err)
	return rec
}

func (s *storeSuite) TestGetOrCreateStudentReturnsExistingRow() {
	first := newStudent("111")
	created, err := s.store.GetOrCreateStudent(s.ctx, first)
	s.Require().NoError(err)
	s.True(created)

	second := newStudent("111")
	second.Name = "Someone Else"
	created, err = s.store.GetOrCreateStudent(s.ctx, second)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, second.ID)
	s.Equal("Ana Souza", second.Name, "existing row is returned unchanged")
}

func (s *storeSuite) TestUpdateStudentCPFCollisionIsConflict() {
	a, b := newStudent("111"), newStudent("222")
	_, err := s.store.GetOrCreateStudent(s.ctx, a)
	s.Require().NoError(err)
	_, err = s.store.GetOrCreateStudent(s.ctx, b)
	s.Require().NoError(err)

	b.CPF = "111"
	err = s.store.UpdateStudent(s.ctx, b)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *storeSuite) TestUpdateMissingGuardianIsNotFound() {
	g := newGuardian("999")
	g.ID = 424242
	s.ErrorIs(s.store.UpdateGuardian(s.ctx, g), sentinel.ErrNotFound)
}

func (s *storeSuite) TestGetOrCreateSchoolUnitReturnsStoredDescriptor() {
	stored, created, err := s.store.GetOrCreateSchoolUnit(s.ctx, newUnit("00.000.000/0001-00"))
	s.Require().NoError(err)
	s.True(created)

	other := newUnit("00.000.000/0001-00")
	other.Name = "Different"
	again, created, err := s.store.GetOrCreateSchoolUnit(s.ctx, other)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(stored.ID, again.ID)
	s.Equal("EMEF Centro", again.Name)
}

func (s *storeSuite) TestSecondEnrollmentForStudentIsRejected() {
	rec := s.seed("111", "222", nil)

	dup := *rec
	dup.ID = 0
	a := newAddress()
	s.Require().NoError(s.store.CreateAddress(s.ctx, a))
	dup.AddressID = a.ID
	s.ErrorIs(s.store.CreateEnrollment(s.ctx, &dup), sentinel.ErrAlreadyUsed)
}

func (s *storeSuite) TestRunInTxRollsBackEveryWrite() {
	boom := errors.New("boom")
	err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetOrCreateStudent(ctx, newStudent("333")); err != nil {
			return err
		}
		if err := tx.CreateAddress(ctx, newAddress()); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	fresh := newStudent("333")
	created, err := s.store.GetOrCreateStudent(s.ctx, fresh)
	s.Require().NoError(err)
	s.True(created, "student written inside the failed unit of work must not survive")
}

func (s *storeSuite) TestFailedUnitOfWorkKeepsConcurrentWritesAndHidesItsOwn() {
	rec := s.seed("111", "222", nil)
	boom := errors.New("boom")
	written := make(chan error, 1)

	err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx store.Store) error {
		st := newStudent("333")
		if _, err := tx.GetOrCreateStudent(ctx, st); err != nil {
			return err
		}
		_, err := s.store.GetStudent(s.ctx, st.ID)
		s.ErrorIs(err, sentinel.ErrNotFound, "uncommitted student must not be visible outside the unit of work")

		go func() {
			written <- s.store.CreateDocuments(s.ctx, &models.Documents{
				EnrollmentID:   rec.ID,
				ResidenceProof: &models.FileRef{Key: "documents/1/a-proof.pdf", Filename: "proof.pdf"},
				SchoolHistory:  &models.FileRef{Key: "documents/1/b-history.pdf", Filename: "history.pdf"},
				CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
			})
		}()
		time.Sleep(50 * time.Millisecond)
		return boom
	})
	s.ErrorIs(err, boom)
	s.Require().NoError(<-written)

	docs, err := s.store.GetDocuments(s.ctx, rec.ID)
	s.Require().NoError(err, "documents written by another caller must survive the rollback")
	s.Equal("proof.pdf", docs.ResidenceProof.Filename)
}

func (s *storeSuite) TestGetEnrollmentAssemblesAggregate() {
	rec := s.seed("111", "222", newUnit("11.111.111/0001-11"))

	e, err := s.store.GetEnrollment(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal("111", e.Student.CPF)
	s.Equal("222", e.Guardian.CPF)
	s.Equal(models.RelationshipMother, e.Guardian.Relationship)
	s.Equal("apto 2", *e.Address.Complement)
	s.Nil(e.Address.Reference)
	s.Require().NotNil(e.SchoolUnit)
	s.Equal("11.111.111/0001-11", e.SchoolUnit.CNPJ)
	s.Equal(models.SituationPending, e.Situation)
	s.True(domain.NewDate(2012, time.May, 1).Equal(e.Student.BirthDate))
}

func (s *storeSuite) TestGetEnrollmentMissing() {
	_, err := s.store.GetEnrollment(s.ctx, 987654)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *storeSuite) TestDeleteSchoolUnitDetachesEnrollments() {
	rec := s.seed("111", "222", newUnit("22.222.222/0001-22"))
	s.Require().NotNil(rec.SchoolUnitID)

	s.Require().NoError(s.store.DeleteSchoolUnit(s.ctx, *rec.SchoolUnitID))

	e, err := s.store.GetEnrollment(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Nil(e.SchoolUnit)
	s.ErrorIs(s.store.DeleteSchoolUnit(s.ctx, *rec.SchoolUnitID), sentinel.ErrNotFound)
}

func (s *storeSuite) TestListEnrollmentsFiltersAndPages() {
	s.seed("111", "900", nil)
	second := s.seed("222", "900", nil)
	s.seed("333", "900", nil)

	second.Situation = models.SituationApproved
	second.Stage = 2
	s.Require().NoError(s.store.UpdateEnrollment(s.ctx, second))

	all, total, err := s.store.ListEnrollments(s.ctx, models.Filter{Limit: 2})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(all, 2)
	s.Equal("111", all[0].Student.CPF)

	rest, _, err := s.store.ListEnrollments(s.ctx, models.Filter{Limit: 2, Offset: 2})
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.Equal("333", rest[0].Student.CPF)

	approved, total, err := s.store.ListEnrollments(s.ctx, models.Filter{Situation: models.SituationApproved, Stage: 2})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal(second.ID, approved[0].ID)

	byCPF, total, err := s.store.ListEnrollments(s.ctx, models.Filter{StudentCPF: "333"})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal("333", byCPF[0].Student.CPF)
}

func (s *storeSuite) TestDocumentsAreOnePerEnrollment() {
	rec := s.seed("111", "222", nil)
	docs := &models.Documents{
		EnrollmentID:   rec.ID,
		ResidenceProof: &models.FileRef{Key: "documents/1/a-proof.pdf", Filename: "proof.pdf", ContentType: "application/pdf", Size: 3, Checksum: "abc"},
		SchoolHistory:  &models.FileRef{Key: "documents/1/b-history.pdf", Filename: "history.pdf", Size: 4},
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
	s.Require().NoError(s.store.CreateDocuments(s.ctx, docs))
	s.NotZero(docs.ID)

	again := *docs
	s.ErrorIs(s.store.CreateDocuments(s.ctx, &again), sentinel.ErrAlreadyUsed)

	got, err := s.store.GetDocuments(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Nil(got.SUSCard)
	s.Require().NotNil(got.ResidenceProof)
	s.Equal("proof.pdf", got.ResidenceProof.Filename)
	s.Equal([]string{"documents/1/a-proof.pdf", "documents/1/b-history.pdf"}, got.Keys())
}

func (s *storeSuite) TestDeleteEnrollmentRemovesDocumentsButKeepsPeople() {
	rec := s.seed("111", "222", nil)
	s.Require().NoError(s.store.CreateDocuments(s.ctx, &models.Documents{
		EnrollmentID:   rec.ID,
		ResidenceProof: &models.FileRef{Key: "k1"},
		SchoolHistory:  &models.FileRef{Key: "k2"},
		CreatedAt:      time.Now().UTC(),
	}))

	err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.DeleteEnrollment(ctx, rec.ID); err != nil {
			return err
		}
		return tx.DeleteAddress(ctx, rec.AddressID)
	})
	s.Require().NoError(err)

	_, err = s.store.GetDocuments(s.ctx, rec.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.GetAddress(s.ctx, rec.AddressID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.GetStudent(s.ctx, rec.StudentID)
	s.NoError(err)
	_, err = s.store.GetGuardian(s.ctx, rec.GuardianID)
	s.NoError(err)
}
