// Package filter defines the backend-neutral equality filter: a flat mapping
// of field name to required scalar value, interpreted as a conjunction.
// Adapters translate it into their native predicate syntax; anything beyond
// equality must fail with domain.ErrUnsupportedFilter rather than being
// silently ignored.
package filter

import (
	"fmt"
	"sort"

	"github.com/quarry-dev/quarry/internal/domain"
)

// MaxConditions is the maximum number of equality conditions per expression.
const MaxConditions = 32

// Condition is a single equality test: field == value.
type Condition struct {
	field string
	value domain.Value
}

// NewCondition validates and creates an equality condition.
func NewCondition(field string, value domain.Value) (Condition, error) {
	if field == "" {
		return Condition{}, fmt.Errorf("filter field is required: %w", domain.ErrInvalidInput)
	}
	return Condition{field: field, value: value}, nil
}

// Field returns the metadata field name.
func (c Condition) Field() string { return c.field }

// Value returns the required scalar value.
func (c Condition) Value() domain.Value { return c.value }

// Expression is a conjunction of equality conditions.
type Expression struct {
	conditions []Condition
}

// New validates and creates an Expression.
func New(conditions []Condition) (Expression, error) {
	if len(conditions) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d): %w",
			MaxConditions, domain.ErrInvalidInput)
	}
	return Expression{conditions: conditions}, nil
}

// FromMap builds an Expression from a dynamically-typed equality map,
// rejecting non-scalar values at the boundary. Conditions are ordered by
// field name so translated queries are deterministic.
func FromMap(m map[string]any) (Expression, error) {
	if len(m) == 0 {
		return Expression{}, nil
	}
	fields := make([]string, 0, len(m))
	for k := range m {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	conditions := make([]Condition, 0, len(fields))
	for _, f := range fields {
		v, err := domain.FromAny(m[f])
		if err != nil {
			return Expression{}, fmt.Errorf("filter field %q: %w", f, err)
		}
		c, err := NewCondition(f, v)
		if err != nil {
			return Expression{}, err
		}
		conditions = append(conditions, c)
	}
	return New(conditions)
}

// Conditions returns the equality conditions in field order.
func (e Expression) Conditions() []Condition { return e.conditions }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.conditions) == 0 }

// Matches evaluates the conjunction against a metadata mapping.
// Used by adapters that post-filter in process.
func (e Expression) Matches(meta domain.Metadata) bool {
	for _, c := range e.conditions {
		v, ok := meta[c.field]
		if !ok || !v.Equal(c.value) {
			return false
		}
	}
	return true
}
