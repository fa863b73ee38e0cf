// Package domain holds primitives parsed at trust boundaries.
package domain

import (
	"strconv"
	"strings"

	dErrors "educa/pkg/domain-errors"
)

// ID is a positive numeric row identifier.
type ID = int64

// ParseID parses a path or form value into a positive numeric id.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "id must be a positive integer")
	}
	return n, nil
}
