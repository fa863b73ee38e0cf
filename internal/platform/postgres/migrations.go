package postgres

const migration001Up = `
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    username VARCHAR(150) NOT NULL UNIQUE,
    email VARCHAR(254) NOT NULL DEFAULT '',
    first_name VARCHAR(150) NOT NULL DEFAULT '',
    last_name VARCHAR(150) NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT FALSE,
    is_staff BOOLEAN NOT NULL DEFAULT FALSE,
    kind VARCHAR(20) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT valid_kind CHECK (kind IN ('', 'aluno', 'responsavel', 'professor', 'admin'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email ON accounts (LOWER(email)) WHERE email <> '';

CREATE TABLE IF NOT EXISTS permissions (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    codename VARCHAR(100) NOT NULL UNIQUE,
    content_type INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS account_permissions (
    account_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
    PRIMARY KEY (account_id, permission_id)
);

CREATE TABLE IF NOT EXISTS token_revocations (
    jti TEXT PRIMARY KEY,
    expires_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_token_revocations_expires_at ON token_revocations(expires_at);
`

const migration001Down = `
DROP TABLE IF EXISTS token_revocations;
DROP TABLE IF EXISTS account_permissions;
DROP TABLE IF EXISTS permissions;
DROP TABLE IF EXISTS accounts;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS school_units (
    id BIGSERIAL PRIMARY KEY,
    nome VARCHAR(255) NOT NULL,
    cnpj VARCHAR(20) NOT NULL UNIQUE,
    endereco VARCHAR(255) NOT NULL,
    telefone VARCHAR(20),
    email VARCHAR(254),
    ativo BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS students (
    id BIGSERIAL PRIMARY KEY,
    cpf VARCHAR(14) NOT NULL UNIQUE,
    nome VARCHAR(255) NOT NULL,
    rg VARCHAR(50) NOT NULL,
    orgao_emissor VARCHAR(100) NOT NULL,
    estado_emissao VARCHAR(2) NOT NULL,
    cartao_sus VARCHAR(50),
    email VARCHAR(254) NOT NULL,
    data_nascimento DATE NOT NULL,
    telefone_whatsapp VARCHAR(20) NOT NULL,
    genero VARCHAR(20) NOT NULL,
    pcd BOOLEAN NOT NULL DEFAULT FALSE,
    bolsa_familia BOOLEAN NOT NULL DEFAULT FALSE,
    CONSTRAINT valid_student_genero CHECK (genero IN ('masculino', 'feminino'))
);

CREATE TABLE IF NOT EXISTS guardians (
    id BIGSERIAL PRIMARY KEY,
    cpf VARCHAR(14) NOT NULL UNIQUE,
    nome VARCHAR(255) NOT NULL,
    email VARCHAR(254) NOT NULL,
    data_nascimento DATE NOT NULL,
    telefone_whatsapp VARCHAR(20) NOT NULL,
    genero VARCHAR(20) NOT NULL,
    vinculo VARCHAR(50) NOT NULL,
    CONSTRAINT valid_vinculo CHECK (vinculo IN ('pai', 'mae', 'tutor', 'responsavel_legal', 'avo', 'outro'))
);

CREATE TABLE IF NOT EXISTS addresses (
    id BIGSERIAL PRIMARY KEY,
    cep VARCHAR(10) NOT NULL,
    estado VARCHAR(2) NOT NULL,
    cidade VARCHAR(255) NOT NULL,
    bairro VARCHAR(255) NOT NULL,
    complemento VARCHAR(255),
    ponto_referencia VARCHAR(255)
);

CREATE TABLE IF NOT EXISTS enrollments (
    id BIGSERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL UNIQUE REFERENCES students(id) ON DELETE RESTRICT,
    guardian_id BIGINT NOT NULL REFERENCES guardians(id) ON DELETE RESTRICT,
    address_id BIGINT NOT NULL REFERENCES addresses(id) ON DELETE RESTRICT,
    school_unit_id BIGINT REFERENCES school_units(id) ON DELETE SET NULL,
    etapa INTEGER NOT NULL DEFAULT 1,
    situacao VARCHAR(20) NOT NULL DEFAULT 'pendente',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT valid_etapa CHECK (etapa >= 1),
    CONSTRAINT valid_situacao CHECK (situacao IN ('pendente', 'aprovado', 'reprovado'))
);

CREATE INDEX IF NOT EXISTS idx_enrollments_guardian_id ON enrollments(guardian_id);
CREATE INDEX IF NOT EXISTS idx_enrollments_school_unit_id ON enrollments(school_unit_id);
CREATE INDEX IF NOT EXISTS idx_enrollments_situacao_etapa ON enrollments(situacao, etapa);

CREATE TABLE IF NOT EXISTS enrollment_documents (
    id BIGSERIAL PRIMARY KEY,
    enrollment_id BIGINT NOT NULL UNIQUE REFERENCES enrollments(id) ON DELETE CASCADE,
    cartao_sus JSONB,
    laudo_pcd JSONB,
    comprovante_residencia JSONB NOT NULL,
    historico_escolar JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration002Down = `
DROP TABLE IF EXISTS enrollment_documents;
DROP TABLE IF EXISTS enrollments;
DROP TABLE IF EXISTS addresses;
DROP TABLE IF EXISTS guardians;
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS school_units;
`

// Migrations returns the embedded schema migrations in order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_accounts", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_enrollment", UpSQL: migration002Up, DownSQL: migration002Down},
	}
}
