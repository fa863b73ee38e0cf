package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: row does not exist
//   - ErrConflict: a unique natural key (cpf, cnpj, email, codename) is taken
//     by a row whose contents differ from the request
//   - ErrAlreadyUsed: create-if-available lost to an existing row
//   - ErrInvalidState: row in the wrong state for the operation
//   - ErrUnavailable: backing service temporarily unavailable
//
// Validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
