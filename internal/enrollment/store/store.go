// Package store persists the enrollment aggregate and its parts. Stores
// return pkg/platform/sentinel errors; the service maps them to domain codes.
package store

import (
	"context"

	"educa/internal/enrollment/models"
)

// Store is the full set of enrollment persistence operations. Inside
// RunInTx every call made through the tx argument shares one unit of work.
type Store interface {
	// GetOrCreateStudent inserts st unless its CPF is taken, in which case st
	// is overwritten with the stored row. It reports whether a row was created.
	GetOrCreateStudent(ctx context.Context, st *models.Student) (bool, error)
	GetStudent(ctx context.Context, id int64) (*models.Student, error)
	UpdateStudent(ctx context.Context, st *models.Student) error

	GetOrCreateGuardian(ctx context.Context, g *models.Guardian) (bool, error)
	GetGuardian(ctx context.Context, id int64) (*models.Guardian, error)
	UpdateGuardian(ctx context.Context, g *models.Guardian) error

	CreateAddress(ctx context.Context, a *models.Address) error
	GetAddress(ctx context.Context, id int64) (*models.Address, error)
	UpdateAddress(ctx context.Context, a *models.Address) error
	DeleteAddress(ctx context.Context, id int64) error

	// GetOrCreateSchoolUnit returns the unit stored under u.CNPJ, inserting u
	// when none exists.
	GetOrCreateSchoolUnit(ctx context.Context, u *models.SchoolUnit) (*models.SchoolUnit, bool, error)
	GetSchoolUnit(ctx context.Context, id int64) (*models.SchoolUnit, error)
	DeleteSchoolUnit(ctx context.Context, id int64) error

	// CreateEnrollment returns sentinel.ErrAlreadyUsed when the student is
	// already enrolled.
	CreateEnrollment(ctx context.Context, rec *models.Record) error
	GetRecord(ctx context.Context, id int64) (*models.Record, error)
	UpdateEnrollment(ctx context.Context, rec *models.Record) error
	DeleteEnrollment(ctx context.Context, id int64) error
	GetEnrollment(ctx context.Context, id int64) (*models.Enrollment, error)
	ListEnrollments(ctx context.Context, f models.Filter) ([]models.Enrollment, int, error)

	CreateDocuments(ctx context.Context, d *models.Documents) error
	GetDocuments(ctx context.Context, enrollmentID int64) (*models.Documents, error)
}

// TxStore is a Store that can run a unit of work.
type TxStore interface {
	Store
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

var (
	_ TxStore = (*InMemory)(nil)
	_ TxStore = (*Postgres)(nil)
)
