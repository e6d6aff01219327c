package pgsync

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/nullbound/pgsync/internal/pgerr"
	"github.com/nullbound/pgsync/pgtype"
)

// ColumnMetadata is one column's (name, type OID) pair, shared by reference
// across every Row produced from the same Describe/Execute cycle.
type ColumnMetadata struct {
	Name string
	OID  uint32
}

// Row is one result row: raw, nullable column values paired with the
// column metadata from the Describe that preceded it. Column access
// decodes on demand; nothing is eagerly converted.
type Row struct {
	cols   []ColumnMetadata
	values []pgtype.Value
}

func newRow(cols []ColumnMetadata, values []pgtype.Value) *Row {
	return &Row{cols: cols, values: values}
}

// Columns returns this row's column metadata (name, OID), in order.
func (r *Row) Columns() []ColumnMetadata { return r.cols }

// Column returns the raw, not-yet-decoded value at the given zero-based
// index. Panics if i is out of range — accessors are infallible at the
// surface, per the row's contract; callers that need a fallible path
// should use QueryRaw and inspect pgtype.Decode's error directly.
func (r *Row) Column(i int) pgtype.Value {
	if i < 0 || i >= len(r.values) {
		panic(fmt.Sprintf("pgsync: column index %d out of range [0,%d)", i, len(r.values)))
	}
	return r.values[i]
}

// ColumnByName resolves name to a column: first a case-sensitive match,
// then a case-insensitive ASCII fallback. Panics if neither matches.
func (r *Row) ColumnByName(name string) pgtype.Value {
	idx := r.indexOf(name)
	if idx < 0 {
		panic("pgsync: no such column: " + name)
	}
	return r.values[idx]
}

func (r *Row) indexOf(name string) int {
	for i, c := range r.cols {
		if c.Name == name {
			return i
		}
	}
	for i, c := range r.cols {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Get decodes column i into T, panicking on an out-of-range index or a
// decode/conversion failure. If the column is NULL and T is a pointer,
// slice, map, or interface type, Get returns T's zero value (nil) instead
// of panicking — the closest Go idiom to the source's Option<T>-shaped
// nullable without a dedicated wrapper type for every T.
func Get[T any](r *Row, col int) T {
	return decodeInto[T](r.Column(col))
}

// GetByName is Get, looking the column up by name (case-sensitive, then
// case-insensitive ASCII fallback).
func GetByName[T any](r *Row, name string) T {
	return decodeInto[T](r.ColumnByName(name))
}

func decodeInto[T any](v pgtype.Value) T {
	var zero T
	// A target type whose pointer implements Decodable decodes itself —
	// this is the only place that can wire Decodable in, since it's the
	// only place that knows T; pgtype.Decode only ever sees a Value.
	if d, ok := any(&zero).(pgtype.Decodable); ok {
		if err := d.DecodePG(v.OID, v.Raw, v.Null); err != nil {
			panic(err)
		}
		return zero
	}
	if v.Null {
		if nullable(reflect.TypeOf((*T)(nil)).Elem()) {
			return zero
		}
		panic(&pgerr.TypeConversionError{OID: v.OID, Target: fmt.Sprintf("%T", zero), Reason: "NULL into non-pointer type"})
	}
	native, err := pgtype.Decode(v)
	if err != nil {
		panic(err)
	}
	t, ok := native.(T)
	if !ok {
		panic(&pgerr.TypeConversionError{OID: v.OID, Target: fmt.Sprintf("%T", zero), Reason: fmt.Sprintf("decoded as %T, not the requested type", native)})
	}
	return t
}

func nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Chan, reflect.Func:
		return true
	default:
		return false
	}
}
