package domain

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/danielgtaylor/huma/v2"
)

// Optional is a tri-state field for partial updates: a field that is absent
// from the payload (Set false) means "leave unchanged", an explicit null
// (Set true, Valid false) means "clear", and a value sets it. This makes the
// omission-means-unchanged contract explicit instead of relying on pointer
// serialization accidents.
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Some returns a set, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Valid: true, Value: v}
}

// Null returns a set-to-null Optional.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Valid = false
		return nil
	}
	o.Valid = true
	return json.Unmarshal(b, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Schema exposes the wrapped type's schema, nullable, so huma validates the
// payload field as if it were the plain type.
func (o Optional[T]) Schema(r huma.Registry) *huma.Schema {
	var v T
	s := r.Schema(reflect.TypeOf(v), false, "")
	s.Nullable = true
	return s
}
