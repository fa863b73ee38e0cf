package testutil

import (
	"net/http"

	"educa/pkg/requestcontext"
)

// WithAuth sets the caller and the id of the access token in use, as the
// auth middleware would have.
func WithAuth(req *http.Request, accountID int64, jti string) *http.Request {
	ctx := requestcontext.WithAccountID(req.Context(), accountID)
	ctx = requestcontext.WithTokenID(ctx, jti)
	return req.WithContext(ctx)
}
