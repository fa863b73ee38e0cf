package models

import (
	"strings"

	"github.com/asaskevich/govalidator"

	"educa/pkg/domain"
	dErrors "educa/pkg/domain-errors"
)

// StudentInput carries student fields from a request. Nil means absent.
type StudentInput struct {
	CPF          *string      `json:"cpf"`
	Name         *string      `json:"nome"`
	RG           *string      `json:"rg"`
	IssuingBody  *string      `json:"orgao_emissor"`
	IssuingState *string      `json:"estado_emissao"`
	SUSCard      OptionalString `json:"cartao_sus"`
	Email        *string      `json:"email"`
	BirthDate    *domain.Date `json:"data_nascimento"`
	Phone        *string      `json:"telefone_whatsapp"`
	Gender       *string      `json:"genero"`
	Disability   *bool        `json:"pcd"`
	BolsaFamilia *bool        `json:"bolsa_familia"`
}

// GuardianInput carries guardian fields from a request.
type GuardianInput struct {
	CPF          *string      `json:"cpf"`
	Name         *string      `json:"nome"`
	Email        *string      `json:"email"`
	BirthDate    *domain.Date `json:"data_nascimento"`
	Phone        *string      `json:"telefone_whatsapp"`
	Gender       *string      `json:"genero"`
	Relationship *string      `json:"vinculo"`
}

// AddressInput carries address fields from a request.
type AddressInput struct {
	CEP        *string `json:"cep"`
	State      *string `json:"estado"`
	City       *string `json:"cidade"`
	District   *string `json:"bairro"`
	Complement OptionalString `json:"complemento"`
	Reference  OptionalString `json:"ponto_referencia"`
}

// SchoolUnitInput is a school unit descriptor. It is always resolved as a
// whole, so its required fields are required on create and update alike.
type SchoolUnitInput struct {
	Name    *string `json:"nome"`
	CNPJ    *string `json:"cnpj"`
	Address *string `json:"endereco"`
	Phone   *string `json:"telefone"`
	Email   *string `json:"email"`
	Active  *bool   `json:"ativo"`
}

// EnrollmentRequest is the nested payload of create, PUT and PATCH.
type EnrollmentRequest struct {
	Student    *StudentInput    `json:"student"`
	Guardian   *GuardianInput   `json:"responsible"`
	Address    *AddressInput    `json:"address"`
	SchoolUnit *SchoolUnitInput `json:"school_unit"`
	Stage      *int             `json:"etapa"`
	Situation  *string          `json:"situacao"`
}

// Validate checks a full payload, as required by create and PUT.
func (r *EnrollmentRequest) Validate() error {
	return r.validate(true)
}

// ValidatePartial checks only the parts present, as PATCH allows.
func (r *EnrollmentRequest) ValidatePartial() error {
	return r.validate(false)
}

func (r *EnrollmentRequest) validate(full bool) error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	v := newValidator()
	switch {
	case r.Student != nil:
		r.Student.normalize()
		r.Student.validate(v, full)
	case full:
		v.add("student", "This field is required.")
	}
	switch {
	case r.Guardian != nil:
		r.Guardian.normalize()
		r.Guardian.validate(v, full)
	case full:
		v.add("responsible", "This field is required.")
	}
	switch {
	case r.Address != nil:
		r.Address.normalize()
		r.Address.validate(v, full)
	case full:
		v.add("address", "This field is required.")
	}
	if r.SchoolUnit != nil {
		r.SchoolUnit.normalize()
		r.SchoolUnit.validate(v)
	}
	if r.Stage != nil && *r.Stage < 1 {
		v.add("etapa", "Ensure this value is greater than or equal to 1.")
	}
	if r.Situation != nil && !Situation(*r.Situation).IsValid() {
		v.add("situacao", "Must be one of pendente, aprovado, reprovado.")
	}
	return v.err("invalid enrollment payload")
}

func (in *StudentInput) normalize() {
	trimAll(&in.CPF, &in.Name, &in.RG, &in.IssuingBody, &in.IssuingState, &in.Email, &in.Phone, &in.Gender)
	in.SUSCard.trim()
	if in.IssuingState != nil {
		upper := strings.ToUpper(*in.IssuingState)
		in.IssuingState = &upper
	}
}

func (in *StudentInput) validate(v *validator, full bool) {
	v.required(full, "student.cpf", in.CPF, 14)
	v.required(full, "student.nome", in.Name, 255)
	v.required(full, "student.rg", in.RG, 50)
	v.required(full, "student.orgao_emissor", in.IssuingBody, 100)
	v.state(full, "student.estado_emissao", in.IssuingState)
	v.optional("student.cartao_sus", in.SUSCard.Value, 50)
	v.email(full, "student.email", in.Email)
	v.date(full, "student.data_nascimento", in.BirthDate)
	v.required(full, "student.telefone_whatsapp", in.Phone, 20)
	v.required(full, "student.genero", in.Gender, 20)
	if in.Gender != nil && *in.Gender != "" && *in.Gender != GenderMale && *in.Gender != GenderFemale {
		v.add("student.genero", "Must be one of masculino, feminino.")
	}
}

// ToStudent builds a new student from a validated full input.
func (in *StudentInput) ToStudent() Student {
	s := Student{}
	in.Apply(&s)
	return s
}

// Apply overwrites s with the fields present in the input and returns the
// names of the fields that changed.
func (in *StudentInput) Apply(s *Student) []string {
	var changed []string
	setString(&changed, "cpf", &s.CPF, in.CPF)
	setString(&changed, "nome", &s.Name, in.Name)
	setString(&changed, "rg", &s.RG, in.RG)
	setString(&changed, "orgao_emissor", &s.IssuingBody, in.IssuingBody)
	setString(&changed, "estado_emissao", &s.IssuingState, in.IssuingState)
	setOptional(&changed, "cartao_sus", &s.SUSCard, in.SUSCard)
	setString(&changed, "email", &s.Email, in.Email)
	setDate(&changed, "data_nascimento", &s.BirthDate, in.BirthDate)
	setString(&changed, "telefone_whatsapp", &s.Phone, in.Phone)
	setString(&changed, "genero", &s.Gender, in.Gender)
	setBool(&changed, "pcd", &s.Disability, in.Disability)
	setBool(&changed, "bolsa_familia", &s.BolsaFamilia, in.BolsaFamilia)
	return changed
}

func (in *GuardianInput) normalize() {
	trimAll(&in.CPF, &in.Name, &in.Email, &in.Phone, &in.Gender, &in.Relationship)
}

func (in *GuardianInput) validate(v *validator, full bool) {
	v.required(full, "responsible.cpf", in.CPF, 14)
	v.required(full, "responsible.nome", in.Name, 255)
	v.email(full, "responsible.email", in.Email)
	v.date(full, "responsible.data_nascimento", in.BirthDate)
	v.required(full, "responsible.telefone_whatsapp", in.Phone, 20)
	v.required(full, "responsible.genero", in.Gender, 20)
	v.required(full, "responsible.vinculo", in.Relationship, 50)
	if in.Relationship != nil && *in.Relationship != "" && !Relationship(*in.Relationship).IsValid() {
		v.add("responsible.vinculo", "Must be one of pai, mae, tutor, responsavel_legal, avo, outro.")
	}
}

func (in *GuardianInput) ToGuardian() Guardian {
	g := Guardian{}
	in.Apply(&g)
	return g
}

func (in *GuardianInput) Apply(g *Guardian) []string {
	var changed []string
	setString(&changed, "cpf", &g.CPF, in.CPF)
	setString(&changed, "nome", &g.Name, in.Name)
	setString(&changed, "email", &g.Email, in.Email)
	setDate(&changed, "data_nascimento", &g.BirthDate, in.BirthDate)
	setString(&changed, "telefone_whatsapp", &g.Phone, in.Phone)
	setString(&changed, "genero", &g.Gender, in.Gender)
	if in.Relationship != nil && Relationship(*in.Relationship) != g.Relationship {
		g.Relationship = Relationship(*in.Relationship)
		changed = append(changed, "vinculo")
	}
	return changed
}

func (in *AddressInput) normalize() {
	trimAll(&in.CEP, &in.State, &in.City, &in.District)
	in.Complement.trim()
	in.Reference.trim()
	if in.State != nil {
		upper := strings.ToUpper(*in.State)
		in.State = &upper
	}
}

func (in *AddressInput) validate(v *validator, full bool) {
	v.required(full, "address.cep", in.CEP, 10)
	v.state(full, "address.estado", in.State)
	v.required(full, "address.cidade", in.City, 255)
	v.required(full, "address.bairro", in.District, 255)
	v.optional("address.complemento", in.Complement.Value, 255)
	v.optional("address.ponto_referencia", in.Reference.Value, 255)
}

func (in *AddressInput) ToAddress() Address {
	a := Address{}
	in.Apply(&a)
	return a
}

func (in *AddressInput) Apply(a *Address) []string {
	var changed []string
	setString(&changed, "cep", &a.CEP, in.CEP)
	setString(&changed, "estado", &a.State, in.State)
	setString(&changed, "cidade", &a.City, in.City)
	setString(&changed, "bairro", &a.District, in.District)
	setOptional(&changed, "complemento", &a.Complement, in.Complement)
	setOptional(&changed, "ponto_referencia", &a.Reference, in.Reference)
	return changed
}

func (in *SchoolUnitInput) normalize() {
	trimAll(&in.Name, &in.CNPJ, &in.Address)
	in.Phone = blankToNil(in.Phone)
	in.Email = blankToNil(in.Email)
}

func (in *SchoolUnitInput) validate(v *validator) {
	v.required(true, "school_unit.nome", in.Name, 255)
	v.required(true, "school_unit.cnpj", in.CNPJ, 20)
	v.required(true, "school_unit.endereco", in.Address, 255)
	v.optional("school_unit.telefone", in.Phone, 20)
	if in.Email != nil && !govalidator.IsEmail(*in.Email) {
		v.add("school_unit.email", "Enter a valid email address.")
	}
}

// ToSchoolUnit builds the descriptor; ativo defaults to true.
func (in *SchoolUnitInput) ToSchoolUnit() SchoolUnit {
	u := SchoolUnit{Active: true, Phone: in.Phone, Email: in.Email}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.CNPJ != nil {
		u.CNPJ = *in.CNPJ
	}
	if in.Address != nil {
		u.Address = *in.Address
	}
	if in.Active != nil {
		u.Active = *in.Active
	}
	return u
}

// Matches reports whether u agrees with the descriptor. ativo is compared
// only when the request supplied it.
func (in *SchoolUnitInput) Matches(u SchoolUnit) bool {
	desc := in.ToSchoolUnit()
	if in.Active == nil {
		desc.Active = u.Active
	}
	return u.SameDescriptor(desc)
}
