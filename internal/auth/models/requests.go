package models

import (
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"

	dErrors "educa/pkg/domain-errors"
)

const minPasswordLength = 8

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, exists := f[field]; !exists {
		f[field] = msg
	}
}

func (f fieldErrors) err(message string) error {
	if len(f) == 0 {
		return nil
	}
	return dErrors.Validation(message, f)
}

func (f fieldErrors) length(field, val string, maxLen int) {
	if !govalidator.StringLength(val, "0", strconv.Itoa(maxLen)) {
		f.add(field, "Ensure this field has no more than "+strconv.Itoa(maxLen)+" characters.")
	}
}

func (f fieldErrors) email(field, val string) {
	if val != "" && !govalidator.IsEmail(val) {
		f.add(field, "Enter a valid email address.")
	}
}

func (f fieldErrors) password(field, val string) {
	if len(val) < minPasswordLength {
		f.add(field, "Ensure this field has at least "+strconv.Itoa(minPasswordLength)+" characters.")
	}
}

// RegisterRequest creates an inactive account.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	f := fieldErrors{}
	if r.Username == "" {
		f.add("username", "This field is required.")
	}
	f.length("username", r.Username, 150)
	f.email("email", r.Email)
	f.length("first_name", r.FirstName, 150)
	f.length("last_name", r.LastName, 150)
	if r.Password == "" {
		f.add("password", "This field is required.")
	}
	f.password("password", r.Password)
	return f.err("invalid registration")
}

// LoginRequest carries credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	f := fieldErrors{}
	if r.Username == "" {
		f.add("username", "This field is required.")
	}
	if r.Password == "" {
		f.add("password", "This field is required.")
	}
	return f.err("invalid credentials payload")
}

// TokenRequest carries a refresh token (refresh, logout) or any token (verify).
type TokenRequest struct {
	Refresh string `json:"refresh"`
	Token   string `json:"token"`
}

func (r *TokenRequest) Normalize() {
	r.Refresh = strings.TrimSpace(r.Refresh)
	r.Token = strings.TrimSpace(r.Token)
}

// Validate requires the field named by the endpoint: refresh unless the
// request carries a token to verify.
func (r *TokenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Refresh == "" && r.Token == "" {
		return dErrors.Validation("token is required", map[string]string{"refresh": "This field is required."})
	}
	return nil
}

// AccountUpdateRequest is a PUT or PATCH of an account. Nil means absent.
type AccountUpdateRequest struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	IsActive  *bool   `json:"is_active"`
	IsStaff   *bool   `json:"is_staff"`
	Kind      *string `json:"kind"`
	Password  *string `json:"password"`
}

func (r *AccountUpdateRequest) Normalize() {
	for _, p := range []*string{r.Username, r.FirstName, r.LastName, r.Kind} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	if r.Email != nil {
		*r.Email = strings.ToLower(strings.TrimSpace(*r.Email))
	}
}

// ValidateFor checks supplied fields; full additionally requires username.
func (r *AccountUpdateRequest) ValidateFor(full bool) error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	f := fieldErrors{}
	if r.Username != nil {
		if *r.Username == "" {
			f.add("username", "This field may not be blank.")
		}
		f.length("username", *r.Username, 150)
	} else if full {
		f.add("username", "This field is required.")
	}
	if r.Email != nil {
		f.email("email", *r.Email)
	}
	if r.FirstName != nil {
		f.length("first_name", *r.FirstName, 150)
	}
	if r.LastName != nil {
		f.length("last_name", *r.LastName, 150)
	}
	if r.Kind != nil && !Kind(*r.Kind).IsValid() {
		f.add("kind", "Must be one of aluno, responsavel, professor, admin.")
	}
	if r.Password != nil && *r.Password != "" {
		f.password("password", *r.Password)
	}
	return f.err("invalid account update")
}

// Apply copies supplied fields except the password onto a.
func (r *AccountUpdateRequest) Apply(a *Account) {
	if r.Username != nil {
		a.Username = *r.Username
	}
	if r.Email != nil {
		a.Email = *r.Email
	}
	if r.FirstName != nil {
		a.FirstName = *r.FirstName
	}
	if r.LastName != nil {
		a.LastName = *r.LastName
	}
	if r.IsActive != nil {
		a.IsActive = *r.IsActive
	}
	if r.IsStaff != nil {
		a.IsStaff = *r.IsStaff
	}
	if r.Kind != nil {
		a.Kind = Kind(*r.Kind)
	}
}

// PermissionRef names a permission by id in add/remove requests.
type PermissionRef struct {
	PermissionID int64 `json:"permission_id"`
}

func (r *PermissionRef) Normalize() {}

func (r *PermissionRef) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.PermissionID <= 0 {
		return dErrors.Validation("invalid permission reference", map[string]string{"permission_id": "A valid integer is required."})
	}
	return nil
}

// PermissionRequest creates or updates a permission. Nil means absent.
type PermissionRequest struct {
	Name        *string `json:"name"`
	Codename    *string `json:"codename"`
	ContentType *int    `json:"content_type"`
}

func (r *PermissionRequest) Normalize() {
	if r.Name != nil {
		*r.Name = strings.TrimSpace(*r.Name)
	}
	if r.Codename != nil {
		*r.Codename = strings.TrimSpace(*r.Codename)
	}
}

func (r *PermissionRequest) ValidateFor(full bool) error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	f := fieldErrors{}
	check := func(field string, val *string, maxLen int) {
		switch {
		case val == nil && full:
			f.add(field, "This field is required.")
		case val != nil && *val == "":
			f.add(field, "This field may not be blank.")
		case val != nil:
			f.length(field, *val, maxLen)
		}
	}
	check("name", r.Name, 255)
	check("codename", r.Codename, 100)
	if r.Codename != nil && *r.Codename != "" && strings.ContainsAny(*r.Codename, " \t") {
		f.add("codename", "Codename may not contain whitespace.")
	}
	if r.ContentType == nil && full {
		f.add("content_type", "This field is required.")
	}
	return f.err("invalid permission")
}

func (r *PermissionRequest) Apply(p *Permission) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Codename != nil {
		p.Codename = *r.Codename
	}
	if r.ContentType != nil {
		p.ContentType = *r.ContentType
	}
}
