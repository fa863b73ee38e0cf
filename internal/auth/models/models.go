package models

import (
	"time"
)

// Kind tags what kind of person an account belongs to.
type Kind string

const (
	KindNone     Kind = ""
	KindStudent  Kind = "aluno"
	KindGuardian Kind = "responsavel"
	KindTeacher  Kind = "professor"
	KindAdmin    Kind = "admin"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindNone, KindStudent, KindGuardian, KindTeacher, KindAdmin:
		return true
	}
	return false
}

// Account is a login identity. Accounts start inactive and are activated by
// staff.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	IsStaff      bool      `json:"is_staff"`
	Kind         Kind      `json:"kind"`
	Permissions  []string  `json:"permissions"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Permission is a named capability that can be granted to accounts.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Codename    string `json:"codename"`
	ContentType int    `json:"content_type"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Refresh string   `json:"refresh"`
	Access  string   `json:"access"`
	User    *Account `json:"user"`
}

// AccessResult is returned by a token refresh.
type AccessResult struct {
	Access string `json:"access"`
}

// DetailResponse carries a human-readable confirmation.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// ProvisionRequest asks for an inactive account keyed by email.
type ProvisionRequest struct {
	Email     string
	FirstName string
	LastName  string
	Kind      Kind
	Password  string
}
