package models

import "encoding/json"

// OptionalString is a nullable request field that remembers whether its key
// was present, so an update can tell "leave as is" from "clear".
type OptionalString struct {
	Set   bool
	Value *string
}

// Present returns a set field holding v.
func Present(v string) OptionalString {
	return OptionalString{Set: true, Value: &v}
}

// Null returns a set field with no value.
func Null() OptionalString {
	return OptionalString{Set: true}
}

func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

// trim strips spaces and turns a blank value into null.
func (o *OptionalString) trim() {
	o.Value = blankToNil(o.Value)
}
