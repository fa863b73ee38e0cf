package models

import (
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"

	"educa/pkg/domain"
	dErrors "educa/pkg/domain-errors"
)

const msgRequired = "This field is required."

// validator accumulates per-field messages keyed by dotted path.
type validator struct {
	fields map[string]string
}

func newValidator() *validator {
	return &validator{fields: make(map[string]string)}
}

func (v *validator) add(field, msg string) {
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = msg
	}
}

func (v *validator) err(message string) error {
	if len(v.fields) == 0 {
		return nil
	}
	return dErrors.Validation(message, v.fields)
}

// required checks a mandatory string: present when full, and never blank or
// longer than maxLen when supplied.
func (v *validator) required(full bool, field string, val *string, maxLen int) {
	if val == nil {
		if full {
			v.add(field, msgRequired)
		}
		return
	}
	if *val == "" {
		v.add(field, "This field may not be blank.")
		return
	}
	v.optional(field, val, maxLen)
}

func (v *validator) optional(field string, val *string, maxLen int) {
	if val != nil && !govalidator.StringLength(*val, "0", strconv.Itoa(maxLen)) {
		v.add(field, "Ensure this field has no more than "+strconv.Itoa(maxLen)+" characters.")
	}
}

func (v *validator) email(full bool, field string, val *string) {
	v.required(full, field, val, 254)
	if val != nil && *val != "" && !govalidator.IsEmail(*val) {
		v.add(field, "Enter a valid email address.")
	}
}

func (v *validator) state(full bool, field string, val *string) {
	v.required(full, field, val, 2)
	if val != nil && *val != "" && (len(*val) != 2 || !govalidator.IsAlpha(*val)) {
		v.add(field, "Must be a two-letter state code.")
	}
}

func (v *validator) date(full bool, field string, val *domain.Date) {
	if full && (val == nil || val.IsZero()) {
		v.add(field, msgRequired)
	}
}

func trimAll(ptrs ...**string) {
	for _, p := range ptrs {
		if *p != nil {
			t := strings.TrimSpace(**p)
			*p = &t
		}
	}
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func setString(changed *[]string, name string, dst *string, src *string) {
	if src != nil && *src != *dst {
		*dst = *src
		*changed = append(*changed, name)
	}
}

// setOptional copies src when its key was sent; null or blank clears dst.
func setOptional(changed *[]string, name string, dst **string, src OptionalString) {
	if !src.Set || equalPtr(*dst, src.Value) {
		return
	}
	if src.Value == nil {
		*dst = nil
	} else {
		v := *src.Value
		*dst = &v
	}
	*changed = append(*changed, name)
}

func setBool(changed *[]string, name string, dst *bool, src *bool) {
	if src != nil && *src != *dst {
		*dst = *src
		*changed = append(*changed, name)
	}
}

func setDate(changed *[]string, name string, dst *domain.Date, src *domain.Date) {
	if src != nil && !src.IsZero() && !src.Equal(*dst) {
		*dst = *src
		*changed = append(*changed, name)
	}
}
