package models

import (
	"time"

	"educa/pkg/domain"
)

// Student genders accepted on the student record.
const (
	GenderMale   = "masculino"
	GenderFemale = "feminino"
)

// Relationship is the guardian's relationship to the student.
type Relationship string

const (
	RelationshipFather      Relationship = "pai"
	RelationshipMother      Relationship = "mae"
	RelationshipTutor       Relationship = "tutor"
	RelationshipLegalGuard  Relationship = "responsavel_legal"
	RelationshipGrandparent Relationship = "avo"
	RelationshipOther       Relationship = "outro"
)

func (r Relationship) IsValid() bool {
	switch r {
	case RelationshipFather, RelationshipMother, RelationshipTutor,
		RelationshipLegalGuard, RelationshipGrandparent, RelationshipOther:
		return true
	}
	return false
}

// Situation is the review state of an enrollment.
type Situation string

const (
	SituationPending  Situation = "pendente"
	SituationApproved Situation = "aprovado"
	SituationRejected Situation = "reprovado"
)

func (s Situation) IsValid() bool {
	switch s {
	case SituationPending, SituationApproved, SituationRejected:
		return true
	}
	return false
}

// Person is the identity core shared by students and guardians. The CPF is
// the natural key.
type Person struct {
	CPF       string      `json:"cpf"`
	Name      string      `json:"nome"`
	Email     string      `json:"email"`
	BirthDate domain.Date `json:"data_nascimento"`
	Phone     string      `json:"telefone_whatsapp"`
	Gender    string      `json:"genero"`
}

type Student struct {
	ID int64 `json:"id"`
	Person
	RG           string  `json:"rg"`
	IssuingBody  string  `json:"orgao_emissor"`
	IssuingState string  `json:"estado_emissao"`
	SUSCard      *string `json:"cartao_sus"`
	Disability   bool    `json:"pcd"`
	BolsaFamilia bool    `json:"bolsa_familia"`
}

// Guardian is the responsible adult who files the enrollment.
type Guardian struct {
	ID int64 `json:"id"`
	Person
	Relationship Relationship `json:"vinculo"`
}

// Address is owned by exactly one enrollment.
type Address struct {
	ID         int64   `json:"id"`
	CEP        string  `json:"cep"`
	State      string  `json:"estado"`
	City       string  `json:"cidade"`
	District   string  `json:"bairro"`
	Complement *string `json:"complemento"`
	Reference  *string `json:"ponto_referencia"`
}

// SchoolUnit is identified by its CNPJ.
type SchoolUnit struct {
	ID      int64   `json:"id"`
	Name    string  `json:"nome"`
	CNPJ    string  `json:"cnpj"`
	Address string  `json:"endereco"`
	Phone   *string `json:"telefone"`
	Email   *string `json:"email"`
	Active  bool    `json:"ativo"`
}

// SameDescriptor reports whether u and other describe the same unit.
func (u SchoolUnit) SameDescriptor(other SchoolUnit) bool {
	return u.CNPJ == other.CNPJ &&
		u.Name == other.Name &&
		u.Address == other.Address &&
		equalPtr(u.Phone, other.Phone) &&
		equalPtr(u.Email, other.Email) &&
		u.Active == other.Active
}

// Record is the stored enrollment row, referencing its parts by id.
type Record struct {
	ID           int64
	StudentID    int64
	GuardianID   int64
	AddressID    int64
	SchoolUnitID *int64
	Stage        int
	Situation    Situation
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Enrollment is the aggregate returned to callers.
type Enrollment struct {
	ID         int64       `json:"id"`
	Student    Student     `json:"student"`
	Guardian   Guardian    `json:"responsible"`
	Address    Address     `json:"address"`
	SchoolUnit *SchoolUnit `json:"school_unit"`
	Stage      int         `json:"etapa"`
	Situation  Situation   `json:"situacao"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// SchoolName returns the linked unit's name, or "" when none is linked.
func (e *Enrollment) SchoolName() string {
	if e.SchoolUnit == nil {
		return ""
	}
	return e.SchoolUnit.Name
}

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	Situation  Situation
	Stage      int
	StudentCPF string
	Limit      int
	Offset     int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps paging values.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	f.Limit = min(f.Limit, MaxPageSize)
	f.Offset = max(f.Offset, 0)
	return f
}

// Page is one page of List results.
type Page struct {
	Count   int          `json:"count"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Results []Enrollment `json:"results"`
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
