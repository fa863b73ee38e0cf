package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"educa/pkg/domain"
	dErrors "educa/pkg/domain-errors"
)

const fullPayload = `{
	"student": {"cpf": "111", "nome": "João", "rg": "123", "orgao_emissor": "SSP",
		"estado_emissao": "sp", "email": "joao@example.com", "data_nascimento": "2012-05-01",
		"telefone_whatsapp": "5511911110000", "genero": "masculino"},
	"responsible": {"cpf": "222", "nome": "Maria", "email": "maria@example.com",
		"data_nascimento": "1985-02-10", "telefone_whatsapp": "5511922220000",
		"genero": "feminino", "vinculo": "mae"},
	"address": {"cep": "01000-000", "estado": "SP", "cidade": "São Paulo", "bairro": "Centro"}
}`

func decode(t *testing.T, body string) *EnrollmentRequest {
	t.Helper()
	var req EnrollmentRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return &req
}

func TestValidateFullPayload(t *testing.T) {
	req := decode(t, fullPayload)
	require.NoError(t, req.Validate())
	assert.Equal(t, "SP", *req.Student.IssuingState)

	s := req.Student.ToStudent()
	assert.Equal(t, "111", s.CPF)
	assert.True(t, domain.NewDate(2012, 5, 1).Equal(s.BirthDate))
	assert.False(t, s.Disability)
}

func TestValidateReportsDottedFields(t *testing.T) {
	req := decode(t, `{"student": {"cpf": "", "genero": "outro"}, "etapa": 0, "situacao": "talvez"}`)
	err := req.Validate()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	fields := dErrors.FieldsOf(err)
	assert.Contains(t, fields, "student.cpf")
	assert.Contains(t, fields, "student.nome")
	assert.Contains(t, fields, "student.genero")
	assert.Contains(t, fields, "responsible")
	assert.Contains(t, fields, "address")
	assert.Contains(t, fields, "etapa")
	assert.Contains(t, fields, "situacao")
}

func TestValidatePartialAcceptsSubset(t *testing.T) {
	req := decode(t, `{"student": {"email": "novo@example.com"}}`)
	require.NoError(t, req.ValidatePartial())

	bad := decode(t, `{"student": {"email": "not-an-email"}}`)
	fields := dErrors.FieldsOf(bad.ValidatePartial())
	assert.Contains(t, fields, "student.email")
}

func TestSchoolUnitDescriptorAlwaysComplete(t *testing.T) {
	req := decode(t, `{"school_unit": {"nome": "EMEF"}}`)
	fields := dErrors.FieldsOf(req.ValidatePartial())
	assert.Contains(t, fields, "school_unit.cnpj")
	assert.Contains(t, fields, "school_unit.endereco")
}

func TestApplyReturnsChangedFields(t *testing.T) {
	s := decode(t, fullPayload).Student.ToStudent()
	patch := decode(t, `{"student": {"email": "novo@example.com", "nome": "João", "pcd": true}}`).Student

	changed := patch.Apply(&s)
	assert.ElementsMatch(t, []string{"email", "pcd"}, changed)
	assert.Equal(t, "novo@example.com", s.Email)
	assert.True(t, s.Disability)
}

func TestApplyClearsOptionalFieldsOnlyWhenSent(t *testing.T) {
	base := decode(t, `{"address": {"cep": "01000-000", "estado": "SP", "cidade": "São Paulo",
		"bairro": "Centro", "complemento": "apto 2", "ponto_referencia": "praça"}}`).Address.ToAddress()

	for name, body := range map[string]string{
		"null":  `{"address": {"complemento": null}}`,
		"blank": `{"address": {"complemento": "  "}}`,
	} {
		t.Run(name, func(t *testing.T) {
			a := base
			req := decode(t, body)
			require.NoError(t, req.ValidatePartial())

			changed := req.Address.Apply(&a)
			assert.Equal(t, []string{"complemento"}, changed)
			assert.Nil(t, a.Complement)
			require.NotNil(t, a.Reference)
			assert.Equal(t, "praça", *a.Reference)
		})
	}

	t.Run("absent", func(t *testing.T) {
		a := base
		req := decode(t, `{"address": {"cidade": "Campinas"}}`)
		require.NoError(t, req.ValidatePartial())
		assert.Equal(t, []string{"cidade"}, req.Address.Apply(&a))
		require.NotNil(t, a.Complement)
		assert.Equal(t, "apto 2", *a.Complement)
	})
}

func TestSchoolUnitMatchesIgnoresOmittedAtivo(t *testing.T) {
	stored := SchoolUnit{Name: "EMEF", CNPJ: "00.000/0001", Address: "Rua A", Active: false}

	omitted := decode(t, `{"school_unit": {"nome": "EMEF", "cnpj": "00.000/0001", "endereco": "Rua A"}}`).SchoolUnit
	assert.True(t, omitted.Matches(stored))

	explicit := decode(t, `{"school_unit": {"nome": "EMEF", "cnpj": "00.000/0001", "endereco": "Rua A", "ativo": true}}`).SchoolUnit
	assert.False(t, explicit.Matches(stored))
}

func TestSchoolUnitDescriptorComparison(t *testing.T) {
	in := decode(t, `{"school_unit": {"nome": "EMEF", "cnpj": "00.000/0001", "endereco": "Rua A", "telefone": ""}}`).SchoolUnit
	in.normalize()
	u := in.ToSchoolUnit()
	assert.True(t, u.Active)
	assert.Nil(t, u.Phone)

	other := u
	assert.True(t, u.SameDescriptor(other))
	other.Address = "Rua B"
	assert.False(t, u.SameDescriptor(other))
}

func TestDocumentUploadValidate(t *testing.T) {
	up := &DocumentUpload{
		Enrollment: "abc",
		Files: map[DocumentKind]UploadFile{
			DocSchoolHistory: {Filename: "h.pdf", Size: 1, Content: strings.NewReader("x")},
		},
	}
	_, err := up.Validate()
	fields := dErrors.FieldsOf(err)
	assert.Contains(t, fields, "enrollment")
	assert.Contains(t, fields, "comprovante_residencia")
	assert.NotContains(t, fields, "cartao_sus")

	up.Enrollment = "7"
	up.Files[DocResidenceProof] = UploadFile{Filename: "r.pdf", Content: strings.NewReader("")}
	_, err = up.Validate()
	assert.Equal(t, "The submitted file is empty.", dErrors.FieldsOf(err)["comprovante_residencia"])

	up.Files[DocResidenceProof] = UploadFile{Filename: "r.pdf", Size: 1, Content: strings.NewReader("y")}
	id, err := up.Validate()
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "passwd", SafeFilename("../../etc/passwd"))
	assert.Equal(t, "hist_rico_escolar.pdf", SafeFilename("histórico escolar.pdf"))
	assert.Equal(t, "file", SafeFilename("..."))
}

func TestFilterNormalize(t *testing.T) {
	f := Filter{Limit: 1000, Offset: -3}.Normalize()
	assert.Equal(t, MaxPageSize, f.Limit)
	assert.Equal(t, 0, f.Offset)
	assert.Equal(t, DefaultPageSize, Filter{}.Normalize().Limit)
}
