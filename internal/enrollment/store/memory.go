package store

import (
	"context"
	"maps"
	"sort"
	"sync"

	"educa/internal/enrollment/models"
	"educa/pkg/platform/sentinel"
)

type memoryData struct {
	students    map[int64]models.Student
	guardians   map[int64]models.Guardian
	addresses   map[int64]models.Address
	schoolUnits map[int64]models.SchoolUnit
	enrollments map[int64]models.Record
	documents   map[int64]models.Documents // by enrollment id
	nextID      int64
}

func (d *memoryData) clone() *memoryData {
	return &memoryData{
		students:    maps.Clone(d.students),
		guardians:   maps.Clone(d.guardians),
		addresses:   maps.Clone(d.addresses),
		schoolUnits: maps.Clone(d.schoolUnits),
		enrollments: maps.Clone(d.enrollments),
		documents:   maps.Clone(d.documents),
		nextID:      d.nextID,
	}
}

// InMemory implements the enrollment store with maps. A unit of work runs
// against a private copy of the tables that replaces the live tables only on
// commit; writes outside a unit of work queue behind txMu so a commit never
// overwrites them.
type InMemory struct {
	txMu *sync.Mutex // nil inside a unit of work
	mu   *sync.RWMutex
	data *memoryData
}

func NewInMemory() *InMemory {
	return &InMemory{
		txMu: &sync.Mutex{},
		mu:   &sync.RWMutex{},
		data: &memoryData{
			students:    make(map[int64]models.Student),
			guardians:   make(map[int64]models.Guardian),
			addresses:   make(map[int64]models.Address),
			schoolUnits: make(map[int64]models.SchoolUnit),
			enrollments: make(map[int64]models.Record),
			documents:   make(map[int64]models.Documents),
		},
	}
}

// RunInTx serializes fn against other writers. fn sees its own writes; other
// callers see none of them until fn returns nil. An error or panic discards
// the staged tables.
func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.txMu == nil {
		return fn(ctx, s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	staged := &InMemory{mu: &sync.RWMutex{}, data: s.data.clone()}
	s.mu.RUnlock()

	if err := fn(ctx, staged); err != nil {
		return err
	}
	s.mu.Lock()
	s.data = staged.data
	s.mu.Unlock()
	return nil
}

// lockWrite takes the locks a single write needs and returns their release.
func (s *InMemory) lockWrite() func() {
	if s.txMu != nil {
		s.txMu.Lock()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if s.txMu != nil {
			s.txMu.Unlock()
		}
	}
}

func (s *InMemory) newID() int64 {
	s.data.nextID++
	return s.data.nextID
}

func (s *InMemory) GetOrCreateStudent(_ context.Context, st *models.Student) (bool, error) {
	defer s.lockWrite()()
	for _, existing := range s.data.students {
		if existing.CPF == st.CPF {
			*st = existing
			return false, nil
		}
	}
	st.ID = s.newID()
	s.data.students[st.ID] = *st
	return true, nil
}

func (s *InMemory) GetStudent(_ context.Context, id int64) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data.students[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &st, nil
}

func (s *InMemory) UpdateStudent(_ context.Context, st *models.Student) error {
	defer s.lockWrite()()
	if _, ok := s.data.students[st.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for id, other := range s.data.students {
		if id != st.ID && other.CPF == st.CPF {
			return sentinel.ErrConflict
		}
	}
	s.data.students[st.ID] = *st
	return nil
}

func (s *InMemory) GetOrCreateGuardian(_ context.Context, g *models.Guardian) (bool, error) {
	defer s.lockWrite()()
	for _, existing := range s.data.guardians {
		if existing.CPF == g.CPF {
			*g = existing
			return false, nil
		}
	}
	g.ID = s.newID()
	s.data.guardians[g.ID] = *g
	return true, nil
}

func (s *InMemory) GetGuardian(_ context.Context, id int64) (*models.Guardian, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.data.guardians[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &g, nil
}

func (s *InMemory) UpdateGuardian(_ context.Context, g *models.Guardian) error {
	defer s.lockWrite()()
	if _, ok := s.data.guardians[g.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for id, other := range s.data.guardians {
		if id != g.ID && other.CPF == g.CPF {
			return sentinel.ErrConflict
		}
	}
	s.data.guardians[g.ID] = *g
	return nil
}

func (s *InMemory) CreateAddress(_ context.Context, a *models.Address) error {
	defer s.lockWrite()()
	a.ID = s.newID()
	s.data.addresses[a.ID] = *a
	return nil
}

func (s *InMemory) GetAddress(_ context.Context, id int64) (*models.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data.addresses[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &a, nil
}

func (s *InMemory) UpdateAddress(_ context.Context, a *models.Address) error {
	defer s.lockWrite()()
	if _, ok := s.data.addresses[a.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.data.addresses[a.ID] = *a
	return nil
}

func (s *InMemory) DeleteAddress(_ context.Context, id int64) error {
	defer s.lockWrite()()
	if _, ok := s.data.addresses[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.data.addresses, id)
	return nil
}

func (s *InMemory) GetOrCreateSchoolUnit(_ context.Context, u *models.SchoolUnit) (*models.SchoolUnit, bool, error) {
	defer s.lockWrite()()
	for _, existing := range s.data.schoolUnits {
		if existing.CNPJ == u.CNPJ {
			return &existing, false, nil
		}
	}
	created := *u
	created.ID = s.newID()
	s.data.schoolUnits[created.ID] = created
	return &created, true, nil
}

func (s *InMemory) GetSchoolUnit(_ context.Context, id int64) (*models.SchoolUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.data.schoolUnits[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

// DeleteSchoolUnit removes the unit and clears it from every enrollment.
func (s *InMemory) DeleteSchoolUnit(_ context.Context, id int64) error {
	defer s.lockWrite()()
	if _, ok := s.data.schoolUnits[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.data.schoolUnits, id)
	for eid, rec := range s.data.enrollments {
		if rec.SchoolUnitID != nil && *rec.SchoolUnitID == id {
			rec.SchoolUnitID = nil
			s.data.enrollments[eid] = rec
		}
	}
	return nil
}

func (s *InMemory) CreateEnrollment(_ context.Context, rec *models.Record) error {
	defer s.lockWrite()()
	for _, existing := range s.data.enrollments {
		if existing.StudentID == rec.StudentID {
			return sentinel.ErrAlreadyUsed
		}
	}
	if err := s.checkRefs(rec); err != nil {
		return err
	}
	rec.ID = s.newID()
	s.data.enrollments[rec.ID] = *rec
	return nil
}

func (s *InMemory) checkRefs(rec *models.Record) error {
	_, okS := s.data.students[rec.StudentID]
	_, okG := s.data.guardians[rec.GuardianID]
	_, okA := s.data.addresses[rec.AddressID]
	if !okS || !okG || !okA {
		return sentinel.ErrInvalidState
	}
	if rec.SchoolUnitID != nil {
		if _, ok := s.data.schoolUnits[*rec.SchoolUnitID]; !ok {
			return sentinel.ErrInvalidState
		}
	}
	return nil
}

func (s *InMemory) GetRecord(_ context.Context, id int64) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data.enrollments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

func (s *InMemory) UpdateEnrollment(_ context.Context, rec *models.Record) error {
	defer s.lockWrite()()
	if _, ok := s.data.enrollments[rec.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkRefs(rec); err != nil {
		return err
	}
	s.data.enrollments[rec.ID] = *rec
	return nil
}

// DeleteEnrollment removes the enrollment and its document row.
func (s *InMemory) DeleteEnrollment(_ context.Context, id int64) error {
	defer s.lockWrite()()
	if _, ok := s.data.enrollments[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.data.enrollments, id)
	delete(s.data.documents, id)
	return nil
}

func (s *InMemory) GetEnrollment(_ context.Context, id int64) (*models.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data.enrollments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.assemble(rec), nil
}

func (s *InMemory) assemble(rec models.Record) *models.Enrollment {
	e := &models.Enrollment{
		ID:        rec.ID,
		Student:   s.data.students[rec.StudentID],
		Guardian:  s.data.guardians[rec.GuardianID],
		Address:   s.data.addresses[rec.AddressID],
		Stage:     rec.Stage,
		Situation: rec.Situation,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.SchoolUnitID != nil {
		if u, ok := s.data.schoolUnits[*rec.SchoolUnitID]; ok {
			e.SchoolUnit = &u
		}
	}
	return e
}

func (s *InMemory) ListEnrollments(_ context.Context, f models.Filter) ([]models.Enrollment, int, error) {
	f = f.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Record
	for _, rec := range s.data.enrollments {
		if f.Situation != "" && rec.Situation != f.Situation {
			continue
		}
		if f.Stage != 0 && rec.Stage != f.Stage {
			continue
		}
		if f.StudentCPF != "" && s.data.students[rec.StudentID].CPF != f.StudentCPF {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	start := min(f.Offset, total)
	end := min(start+f.Limit, total)
	out := make([]models.Enrollment, 0, end-start)
	for _, rec := range matched[start:end] {
		out = append(out, *s.assemble(rec))
	}
	return out, total, nil
}

func (s *InMemory) CreateDocuments(_ context.Context, d *models.Documents) error {
	defer s.lockWrite()()
	if _, ok := s.data.enrollments[d.EnrollmentID]; !ok {
		return sentinel.ErrInvalidState
	}
	if _, exists := s.data.documents[d.EnrollmentID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	d.ID = s.newID()
	s.data.documents[d.EnrollmentID] = *d
	return nil
}

func (s *InMemory) GetDocuments(_ context.Context, enrollmentID int64) (*models.Documents, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data.documents[enrollmentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &d, nil
}

// Counts reports row counts per table; tests use it to assert rollbacks.
func (s *InMemory) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"students":    len(s.data.students),
		"guardians":   len(s.data.guardians),
		"addresses":   len(s.data.addresses),
		"schoolUnits": len(s.data.schoolUnits),
		"enrollments": len(s.data.enrollments),
		"documents":   len(s.data.documents),
	}
}
