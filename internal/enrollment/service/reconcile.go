package service

import (
	"context"
	"errors"
	"fmt"

	"educa/internal/enrollment/models"
	"educa/internal/enrollment/store"
	dErrors "educa/pkg/domain-errors"
	"educa/pkg/platform/sentinel"
	"educa/pkg/requestcontext"
)

func (s *Service) reconcileCreate(ctx context.Context, tx store.Store, req *models.EnrollmentRequest) (*models.Enrollment, error) {
	student := req.Student.ToStudent()
	if _, err := tx.GetOrCreateStudent(ctx, &student); err != nil {
		return nil, fmt.Errorf("resolve student: %w", err)
	}
	guardian := req.Guardian.ToGuardian()
	if _, err := tx.GetOrCreateGuardian(ctx, &guardian); err != nil {
		return nil, fmt.Errorf("resolve guardian: %w", err)
	}
	address := req.Address.ToAddress()
	if err := tx.CreateAddress(ctx, &address); err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}

	now := requestcontext.Now(ctx)
	rec := &models.Record{
		StudentID:  student.ID,
		GuardianID: guardian.ID,
		AddressID:  address.ID,
		Stage:      1,
		Situation:  models.SituationPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.SchoolUnit != nil {
		unit, err := s.matchOrCreateUnit(ctx, tx, req.SchoolUnit)
		if err != nil {
			return nil, err
		}
		rec.SchoolUnitID = &unit.ID
	}
	if req.Stage != nil {
		rec.Stage = *req.Stage
	}
	if req.Situation != nil {
		rec.Situation = models.Situation(*req.Situation)
	}

	if err := tx.CreateEnrollment(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.countConflict("enrollment")
			return nil, dErrors.New(dErrors.CodeConflict, "student already has an enrollment")
		}
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	return tx.GetEnrollment(ctx, rec.ID)
}

// reconcileUpdate overwrites the loaded parts in place and returns the
// dotted names of every field that changed.
func (s *Service) reconcileUpdate(ctx context.Context, tx store.Store, id int64, req *models.EnrollmentRequest) (*models.Enrollment, []string, error) {
	current, err := tx.GetEnrollment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rec, err := tx.GetRecord(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var changed []string
	if req.Student != nil {
		if fields := req.Student.Apply(&current.Student); len(fields) > 0 {
			if err := tx.UpdateStudent(ctx, &current.Student); err != nil {
				return nil, nil, s.cpfConflict(err, "student")
			}
			changed = appendPrefixed(changed, "student", fields)
		}
	}
	if req.Guardian != nil {
		if fields := req.Guardian.Apply(&current.Guardian); len(fields) > 0 {
			if err := tx.UpdateGuardian(ctx, &current.Guardian); err != nil {
				return nil, nil, s.cpfConflict(err, "responsible")
			}
			changed = appendPrefixed(changed, "responsible", fields)
		}
	}
	if req.Address != nil {
		if fields := req.Address.Apply(&current.Address); len(fields) > 0 {
			if err := tx.UpdateAddress(ctx, &current.Address); err != nil {
				return nil, nil, fmt.Errorf("update address: %w", err)
			}
			changed = appendPrefixed(changed, "address", fields)
		}
	}
	if req.SchoolUnit != nil {
		unit, err := s.matchOrCreateUnit(ctx, tx, req.SchoolUnit)
		if err != nil {
			return nil, nil, err
		}
		if rec.SchoolUnitID == nil || *rec.SchoolUnitID != unit.ID {
			rec.SchoolUnitID = &unit.ID
			changed = append(changed, "school_unit")
		}
	}
	if req.Stage != nil && *req.Stage != rec.Stage {
		rec.Stage = *req.Stage
		changed = append(changed, "etapa")
	}
	if req.Situation != nil && models.Situation(*req.Situation) != rec.Situation {
		rec.Situation = models.Situation(*req.Situation)
		changed = append(changed, "situacao")
	}

	rec.UpdatedAt = requestcontext.Now(ctx)
	if err := tx.UpdateEnrollment(ctx, rec); err != nil {
		return nil, nil, fmt.Errorf("update enrollment: %w", err)
	}
	updated, err := tx.GetEnrollment(ctx, id)
	return updated, changed, err
}

// matchOrCreateUnit returns the unit stored under the descriptor's CNPJ. An
// existing unit is reused only when every supplied descriptor field matches.
func (s *Service) matchOrCreateUnit(ctx context.Context, tx store.Store, in *models.SchoolUnitInput) (*models.SchoolUnit, error) {
	desc := in.ToSchoolUnit()
	unit, _, err := tx.GetOrCreateSchoolUnit(ctx, &desc)
	if err != nil {
		return nil, fmt.Errorf("resolve school unit: %w", err)
	}
	if !in.Matches(*unit) {
		s.countConflict("school_unit")
		return nil, &dErrors.Error{
			Code:    dErrors.CodeConflict,
			Message: "a different school unit is registered under this cnpj",
			Fields:  map[string]string{"school_unit.cnpj": "school unit with this cnpj already exists."},
		}
	}
	return unit, nil
}

func (s *Service) cpfConflict(err error, entity string) error {
	if errors.Is(err, sentinel.ErrConflict) {
		s.countConflict(entity)
		return &dErrors.Error{
			Code:    dErrors.CodeConflict,
			Message: entity + " cpf already registered",
			Fields:  map[string]string{entity + ".cpf": entity + " with this cpf already exists."},
		}
	}
	return fmt.Errorf("update %s: %w", entity, err)
}

func (s *Service) countConflict(entity string) {
	if s.metrics != nil {
		s.metrics.IncrementConflict(entity)
	}
}

func appendPrefixed(dst []string, prefix string, fields []string) []string {
	for _, f := range fields {
		dst = append(dst, prefix+"."+f)
	}
	return dst
}
