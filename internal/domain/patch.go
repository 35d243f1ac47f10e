package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Nullable is a patch field for a nullable column. It tells apart an absent
// field, an explicit null and a value.
type Nullable[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// SetTo returns a Nullable holding v
func SetTo[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: v}
}

// SetNull returns a Nullable that clears the column
func SetNull[T any]() Nullable[T] {
	return Nullable[T]{Set: true, Null: true}
}

// UnmarshalJSON implements json.Unmarshaler. It is only called when the key is present.
func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Null = true
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

// applyDecimal applies a decimal patch onto a nullable decimal column
func applyDecimal(dst *decimal.NullDecimal, p Nullable[decimal.Decimal]) {
	if !p.Set {
		return
	}
	if p.Null {
		*dst = decimal.NullDecimal{}
		return
	}
	*dst = decimal.NewNullDecimal(p.Value)
}
