package domain

import (
	"fmt"
	"strconv"
)

// Kind enumerates the scalar types allowed in document metadata and filters.
type Kind int

const (
	// KindString is a string metadata value.
	KindString Kind = iota
	// KindNumber is a float64 metadata value.
	KindNumber
	// KindBool is a boolean metadata value.
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a metadata scalar (immutable value object). Only strings, numbers,
// and booleans cross the adapter boundary; richer shapes are rejected up front
// rather than forwarded to a backend that may silently misinterpret them.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// String creates a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number creates a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool creates a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// FromAny converts a dynamically-typed value into a Value, rejecting
// anything outside the closed scalar set.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case bool:
		return Bool(t), nil
	default:
		return Value{}, fmt.Errorf("metadata value of type %T: %w", v, ErrInvalidInput)
	}
}

// Kind returns the scalar kind.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload (zero unless KindString).
func (v Value) Str() string { return v.str }

// Num returns the numeric payload (zero unless KindNumber).
func (v Value) Num() float64 { return v.num }

// B returns the boolean payload (false unless KindBool).
func (v Value) B() bool { return v.b }

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	}
	return false
}

// Encode renders the value as the flat string adapters persist.
// Booleans encode as "true"/"false", numbers via strconv (shortest form).
func (v Value) Encode() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}

// Any returns the payload as a dynamically-typed value (JSON-friendly).
func (v Value) Any() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	default:
		return v.str
	}
}

// DecodeValue parses a flat string back into the most specific scalar:
// booleans first, then numbers, then strings. Inverse of Encode for
// round-tripping through string-typed backends.
func DecodeValue(s string) Value {
	switch s {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Number(f)
	}
	return String(s)
}

// Metadata is the document metadata mapping restricted to scalar values.
type Metadata map[string]Value

// MetadataFromAny validates a dynamically-typed map against the scalar set.
func MetadataFromAny(m map[string]any) (Metadata, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(Metadata, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Clone returns a shallow copy (Values are immutable).
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	c := make(Metadata, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
