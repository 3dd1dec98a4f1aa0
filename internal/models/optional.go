package models

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes a JSON field that was omitted from one sent as null.
// Set is true whenever the key was present; Value is nil for an explicit null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON implements json.Unmarshaler
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON implements json.Marshaler
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// Some returns a set Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a set Optional holding an explicit null
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// Apply writes the optional onto dst when it was set
func (o Optional[T]) Apply(dst **T) {
	if o.Set {
		*dst = o.Value
	}
}
