package driver

import (
	"fmt"
	"math"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// TypeConversionError reports a stored value of an unexpected type.
type TypeConversionError struct {
	Expected string
	Actual   string
	Field    string
}

func (e *TypeConversionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("type conversion error for field %q: expected %s, got %s", e.Field, e.Expected, e.Actual)
	}
	return fmt.Sprintf("type conversion error: expected %s, got %s", e.Expected, e.Actual)
}

// NewTypeConversionError creates a new TypeConversionError.
func NewTypeConversionError(expected, actual, field string) *TypeConversionError {
	return &TypeConversionError{Expected: expected, Actual: actual, Field: field}
}

// AsDBNode safely converts a query value to dbtype.Node.
func AsDBNode(v any) (dbtype.Node, bool) {
	if v == nil {
		return dbtype.Node{}, false
	}
	node, ok := v.(dbtype.Node)
	return node, ok
}

// AsString safely converts a value to string.
func AsString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// AsInt64 converts a whole number to int64. Neo4j returns int64 while
// JSON-decoded properties of the embedded store arrive as float64, so both
// are accepted; fractional floats are rejected.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// AsFloat64 converts any numeric value to float64.
func AsFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// AsAnySlice safely converts a value to []any.
func AsAnySlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	s, ok := v.([]any)
	return s, ok
}

// AsMap safely converts a value to map[string]any.
func AsMap(v any) (map[string]any, bool) {
	if v == nil {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// MustDBNode converts a query value to dbtype.Node or returns an error.
func MustDBNode(v any, field string) (dbtype.Node, error) {
	node, ok := AsDBNode(v)
	if !ok {
		return dbtype.Node{}, NewTypeConversionError("dbtype.Node", fmt.Sprintf("%T", v), field)
	}
	return node, nil
}

// MustString converts a value to string or returns an error.
func MustString(v any, field string) (string, error) {
	s, ok := AsString(v)
	if !ok {
		return "", NewTypeConversionError("string", fmt.Sprintf("%T", v), field)
	}
	return s, nil
}
