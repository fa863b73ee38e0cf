package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"educa/internal/enrollment/models"
	"educa/internal/platform/postgres"
	"educa/pkg/domain"
	txcontext "educa/pkg/platform/tx"
	"educa/pkg/platform/sentinel"
)

// Postgres persists enrollments in PostgreSQL. Natural-key uniqueness is
// enforced by the schema; GetOrCreate methods insert with ON CONFLICT DO
// NOTHING and re-select the winner.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) q(ctx context.Context) postgres.Querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

// RunInTx runs fn in one transaction. A nested call joins the outer one.
func (s *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx, s)
	}
	return postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(txcontext.WithTx(ctx, tx), s)
	})
}

func mapWriteErr(err error) error {
	switch {
	case postgres.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", sentinel.ErrConflict, err)
	case postgres.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", sentinel.ErrInvalidState, err)
	}
	return err
}

func notFoundOr(err error, op string) error {
	if postgres.IsNoRows(err) {
		return sentinel.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireAffected(affected int64) error {
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const studentColumns = `id, cpf, nome, rg, orgao_emissor, estado_emissao, cartao_sus, email,
	data_nascimento, telefone_whatsapp, genero, pcd, bolsa_familia`

func scanStudent(row pgx.Row) (*models.Student, error) {
	var st models.Student
	var birth time.Time
	err := row.Scan(&st.ID, &st.CPF, &st.Name, &st.RG, &st.IssuingBody, &st.IssuingState, &st.SUSCard,
		&st.Email, &birth, &st.Phone, &st.Gender, &st.Disability, &st.BolsaFamilia)
	if err != nil {
		return nil, err
	}
	st.BirthDate = domain.DateOf(birth)
	return &st, nil
}

func (s *Postgres) GetOrCreateStudent(ctx context.Context, st *models.Student) (bool, error) {
	q := s.q(ctx)
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO students (cpf, nome, rg, orgao_emissor, estado_emissao, cartao_sus, email,
			data_nascimento, telefone_whatsapp, genero, pcd, bolsa_familia)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (cpf) DO NOTHING
		RETURNING id`,
		st.CPF, st.Name, st.RG, st.IssuingBody, st.IssuingState, st.SUSCard, st.Email,
		st.BirthDate.Time(), st.Phone, st.Gender, st.Disability, st.BolsaFamilia,
	).Scan(&id)
	if err == nil {
		st.ID = id
		return true, nil
	}
	if !postgres.IsNoRows(err) {
		return false, fmt.Errorf("insert student: %w", mapWriteErr(err))
	}

	existing, err := scanStudent(q.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE cpf = $1`, st.CPF))
	if err != nil {
		return false, notFoundOr(err, "select student by cpf")
	}
	*st = *existing
	return false, nil
}

func (s *Postgres) GetStudent(ctx context.Context, id int64) (*models.Student, error) {
	st, err := scanStudent(s.q(ctx).QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "select student")
	}
	return st, nil
}

func (s *Postgres) UpdateStudent(ctx context.Context, st *models.Student) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE students SET cpf = $2, nome = $3, rg = $4, orgao_emissor = $5, estado_emissao = $6,
			cartao_sus = $7, email = $8, data_nascimento = $9, telefone_whatsapp = $10, genero = $11,
			pcd = $12, bolsa_familia = $13
		WHERE id = $1`,
		st.ID, st.CPF, st.Name, st.RG, st.IssuingBody, st.IssuingState, st.SUSCard, st.Email,
		st.BirthDate.Time(), st.Phone, st.Gender, st.Disability, st.BolsaFamilia,
	)
	if err != nil {
		return fmt.Errorf("update student: %w", mapWriteErr(err))
	}
	return requireAffected(tag.RowsAffected())
}

const guardianColumns = `id, cpf, nome, email, data_nascimento, telefone_whatsapp, genero, vinculo`

func scanGuardian(row pgx.Row) (*models.Guardian, error) {
	var g models.Guardian
	var birth time.Time
	var relationship string
	if err := row.Scan(&g.ID, &g.CPF, &g.Name, &g.Email, &birth, &g.Phone, &g.Gender, &relationship); err != nil {
		return nil, err
	}
	g.BirthDate = domain.DateOf(birth)
	g.Relationship = models.Relationship(relationship)
	return &g, nil
}

func (s *Postgres) GetOrCreateGuardian(ctx context.Context, g *models.Guardian) (bool, error) {
	q := s.q(ctx)
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO guardians (cpf, nome, email, data_nascimento, telefone_whatsapp, genero, vinculo)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cpf) DO NOTHING
		RETURNING id`,
		g.CPF, g.Name, g.Email, g.BirthDate.Time(), g.Phone, g.Gender, string(g.Relationship),
	).Scan(&id)
	if err == nil {
		g.ID = id
		return true, nil
	}
	if !postgres.IsNoRows(err) {
		return false, fmt.Errorf("insert guardian: %w", mapWriteErr(err))
	}

	existing, err := scanGuardian(q.QueryRow(ctx, `SELECT `+guardianColumns+` FROM guardians WHERE cpf = $1`, g.CPF))
	if err != nil {
		return false, notFoundOr(err, "select guardian by cpf")
	}
	*g = *existing
	return false, nil
}

func (s *Postgres) GetGuardian(ctx context.Context, id int64) (*models.Guardian, error) {
	g, err := scanGuardian(s.q(ctx).QueryRow(ctx, `SELECT `+guardianColumns+` FROM guardians WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "select guardian")
	}
	return g, nil
}

func (s *Postgres) UpdateGuardian(ctx context.Context, g *models.Guardian) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE guardians SET cpf = $2, nome = $3, email = $4, data_nascimento = $5,
			telefone_whatsapp = $6, genero = $7, vinculo = $8
		WHERE id = $1`,
		g.ID, g.CPF, g.Name, g.Email, g.BirthDate.Time(), g.Phone, g.Gender, string(g.Relationship),
	)
	if err != nil {
		return fmt.Errorf("update guardian: %w", mapWriteErr(err))
	}
	return requireAffected(tag.RowsAffected())
}

func (s *Postgres) CreateAddress(ctx context.Context, a *models.Address) error {
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO addresses (cep, estado, cidade, bairro, complemento, ponto_referencia)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		a.CEP, a.State, a.City, a.District, a.Complement, a.Reference,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func (s *Postgres) GetAddress(ctx context.Context, id int64) (*models.Address, error) {
	var a models.Address
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, cep, estado, cidade, bairro, complemento, ponto_referencia
		FROM addresses WHERE id = $1`, id,
	).Scan(&a.ID, &a.CEP, &a.State, &a.City, &a.District, &a.Complement, &a.Reference)
	if err != nil {
		return nil, notFoundOr(err, "select address")
	}
	return &a, nil
}

func (s *Postgres) UpdateAddress(ctx context.Context, a *models.Address) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE addresses SET cep = $2, estado = $3, cidade = $4, bairro = $5,
			complemento = $6, ponto_referencia = $7
		WHERE id = $1`,
		a.ID, a.CEP, a.State, a.City, a.District, a.Complement, a.Reference,
	)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}
	return requireAffected(tag.RowsAffected())
}

func (s *Postgres) DeleteAddress(ctx context.Context, id int64) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete address: %w", mapWriteErr(err))
	}
	return requireAffected(tag.RowsAffected())
}

const schoolUnitColumns = `id, nome, cnpj, endereco, telefone, email, ativo`

func scanSchoolUnit(row pgx.Row) (*models.SchoolUnit, error) {
	var u models.SchoolUnit
	if err := row.Scan(&u.ID, &u.Name, &u.CNPJ, &u.Address, &u.Phone, &u.Email, &u.Active); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Postgres) GetOrCreateSchoolUnit(ctx context.Context, u *models.SchoolUnit) (*models.SchoolUnit, bool, error) {
	q := s.q(ctx)
	created, err := scanSchoolUnit(q.QueryRow(ctx, `
		INSERT INTO school_units (nome, cnpj, endereco, telefone, email, ativo)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cnpj) DO NOTHING
		RETURNING `+schoolUnitColumns,
		u.Name, u.CNPJ, u.Address, u.Phone, u.Email, u.Active,
	))
	if err == nil {
		return created, true, nil
	}
	if !postgres.IsNoRows(err) {
		return nil, false, fmt.Errorf("insert school unit: %w", mapWriteErr(err))
	}

	existing, err := scanSchoolUnit(q.QueryRow(ctx, `SELECT `+schoolUnitColumns+` FROM school_units WHERE cnpj = $1`, u.CNPJ))
	if err != nil {
		return nil, false, notFoundOr(err, "select school unit by cnpj")
	}
	return existing, false, nil
}

func (s *Postgres) GetSchoolUnit(ctx context.Context, id int64) (*models.SchoolUnit, error) {
	u, err := scanSchoolUnit(s.q(ctx).QueryRow(ctx, `SELECT `+schoolUnitColumns+` FROM school_units WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "select school unit")
	}
	return u, nil
}

// DeleteSchoolUnit relies on ON DELETE SET NULL to detach enrollments.
func (s *Postgres) DeleteSchoolUnit(ctx context.Context, id int64) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM school_units WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete school unit: %w", err)
	}
	return requireAffected(tag.RowsAffected())
}

func (s *Postgres) CreateEnrollment(ctx context.Context, rec *models.Record) error {
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO enrollments (student_id, guardian_id, address_id, school_unit_id, etapa, situacao, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		rec.StudentID, rec.GuardianID, rec.AddressID, rec.SchoolUnitID, rec.Stage, string(rec.Situation),
		rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert enrollment: %w", mapWriteErr(err))
	}
	return nil
}

func (s *Postgres) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	var rec models.Record
	var situation string
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, student_id, guardian_id, address_id, school_unit_id, etapa, situacao, created_at, updated_at
		FROM enrollments WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.StudentID, &rec.GuardianID, &rec.AddressID, &rec.SchoolUnitID,
		&rec.Stage, &situation, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "select enrollment")
	}
	rec.Situation = models.Situation(situation)
	return &rec, nil
}

func (s *Postgres) UpdateEnrollment(ctx context.Context, rec *models.Record) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE enrollments SET guardian_id = $2, address_id = $3, school_unit_id = $4,
			etapa = $5, situacao = $6, updated_at = $7
		WHERE id = $1`,
		rec.ID, rec.GuardianID, rec.AddressID, rec.SchoolUnitID, rec.Stage, string(rec.Situation), rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", mapWriteErr(err))
	}
	return requireAffected(tag.RowsAffected())
}

// DeleteEnrollment removes the row; the document row cascades.
func (s *Postgres) DeleteEnrollment(ctx context.Context, id int64) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return requireAffected(tag.RowsAffected())
}

const aggregateSelect = `
	SELECT e.id, e.etapa, e.situacao, e.created_at, e.updated_at,
		s.id, s.cpf, s.nome, s.rg, s.orgao_emissor, s.estado_emissao, s.cartao_sus, s.email,
		s.data_nascimento, s.telefone_whatsapp, s.genero, s.pcd, s.bolsa_familia,
		g.id, g.cpf, g.nome, g.email, g.data_nascimento, g.telefone_whatsapp, g.genero, g.vinculo,
		a.id, a.cep, a.estado, a.cidade, a.bairro, a.complemento, a.ponto_referencia,
		u.id, u.nome, u.cnpj, u.endereco, u.telefone, u.email, u.ativo
	FROM enrollments e
	JOIN students s ON s.id = e.student_id
	JOIN guardians g ON g.id = e.guardian_id
	JOIN addresses a ON a.id = e.address_id
	LEFT JOIN school_units u ON u.id = e.school_unit_id`

func scanAggregate(row pgx.Row) (*models.Enrollment, error) {
	var (
		e                            models.Enrollment
		situation, relationship      string
		studentBirth, guardBirth     time.Time
		unitID                       *int64
		unitName, unitCNPJ, unitAddr *string
		unitPhone, unitEmail         *string
		unitActive                   *bool
	)
	st, g, a := &e.Student, &e.Guardian, &e.Address
	err := row.Scan(&e.ID, &e.Stage, &situation, &e.CreatedAt, &e.UpdatedAt,
		&st.ID, &st.CPF, &st.Name, &st.RG, &st.IssuingBody, &st.IssuingState, &st.SUSCard, &st.Email,
		&studentBirth, &st.Phone, &st.Gender, &st.Disability, &st.BolsaFamilia,
		&g.ID, &g.CPF, &g.Name, &g.Email, &guardBirth, &g.Phone, &g.Gender, &relationship,
		&a.ID, &a.CEP, &a.State, &a.City, &a.District, &a.Complement, &a.Reference,
		&unitID, &unitName, &unitCNPJ, &unitAddr, &unitPhone, &unitEmail, &unitActive,
	)
	if err != nil {
		return nil, err
	}
	e.Situation = models.Situation(situation)
	st.BirthDate = domain.DateOf(studentBirth)
	g.BirthDate = domain.DateOf(guardBirth)
	g.Relationship = models.Relationship(relationship)
	if unitID != nil {
		e.SchoolUnit = &models.SchoolUnit{
			ID: *unitID, Name: *unitName, CNPJ: *unitCNPJ, Address: *unitAddr,
			Phone: unitPhone, Email: unitEmail, Active: *unitActive,
		}
	}
	return &e, nil
}

func (s *Postgres) GetEnrollment(ctx context.Context, id int64) (*models.Enrollment, error) {
	e, err := scanAggregate(s.q(ctx).QueryRow(ctx, aggregateSelect+` WHERE e.id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "select enrollment aggregate")
	}
	return e, nil
}

func (s *Postgres) ListEnrollments(ctx context.Context, f models.Filter) ([]models.Enrollment, int, error) {
	f = f.Normalize()
	var (
		conds []string
		args  []any
	)
	if f.Situation != "" {
		args = append(args, string(f.Situation))
		conds = append(conds, fmt.Sprintf("e.situacao = $%d", len(args)))
	}
	if f.Stage != 0 {
		args = append(args, f.Stage)
		conds = append(conds, fmt.Sprintf("e.etapa = $%d", len(args)))
	}
	if f.StudentCPF != "" {
		args = append(args, f.StudentCPF)
		conds = append(conds, fmt.Sprintf("s.cpf = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	q := s.q(ctx)
	var total int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM enrollments e JOIN students s ON s.id = e.student_id`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := q.Query(ctx, aggregateSelect+where+
		fmt.Sprintf(" ORDER BY e.id LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	out := make([]models.Enrollment, 0, f.Limit)
	for rows.Next() {
		e, err := scanAggregate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate enrollments: %w", err)
	}
	return out, total, nil
}

func encodeFileRef(ref *models.FileRef) ([]byte, error) {
	if ref == nil {
		return nil, nil
	}
	return json.Marshal(ref)
}

func decodeFileRef(raw []byte) (*models.FileRef, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ref models.FileRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (s *Postgres) CreateDocuments(ctx context.Context, d *models.Documents) error {
	encoded := make([][]byte, 0, len(models.DocumentKinds))
	for _, kind := range models.DocumentKinds {
		raw, err := encodeFileRef(*d.Slot(kind))
		if err != nil {
			return fmt.Errorf("encode %s: %w", kind, err)
		}
		encoded = append(encoded, raw)
	}
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO enrollment_documents (enrollment_id, cartao_sus, laudo_pcd, comprovante_residencia, historico_escolar, created_at)
		VALUES ($1, $2::jsonb, $3::jsonb, $4::jsonb, $5::jsonb, $6)
		RETURNING id`,
		d.EnrollmentID, encoded[0], encoded[1], encoded[2], encoded[3], d.CreatedAt,
	).Scan(&d.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert documents: %w", mapWriteErr(err))
	}
	return nil
}

func (s *Postgres) GetDocuments(ctx context.Context, enrollmentID int64) (*models.Documents, error) {
	d := models.Documents{EnrollmentID: enrollmentID}
	raw := make([][]byte, len(models.DocumentKinds))
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, cartao_sus, laudo_pcd, comprovante_residencia, historico_escolar, created_at
		FROM enrollment_documents WHERE enrollment_id = $1`, enrollmentID,
	).Scan(&d.ID, &raw[0], &raw[1], &raw[2], &raw[3], &d.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "select documents")
	}
	for i, kind := range models.DocumentKinds {
		ref, err := decodeFileRef(raw[i])
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, errors.Join(sentinel.ErrInvalidState, err))
		}
		*d.Slot(kind) = ref
	}
	return &d, nil
}
