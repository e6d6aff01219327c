package pgsync

import (
	"strings"
	"testing"

	"github.com/nullbound/pgsync/pgtype"
)

// upperString is a caller-defined result type implementing pgtype.Decodable
// via a pointer receiver, exercising Get[T]'s Decodable dispatch.
type upperString string

func (u *upperString) DecodePG(oid uint32, raw []byte, null bool) error {
	if null {
		*u = ""
		return nil
	}
	*u = upperString(strings.ToUpper(string(raw)))
	return nil
}

func makeRow() *Row {
	cols := []ColumnMetadata{
		{Name: "id", OID: pgtype.OIDInt4},
		{Name: "Name", OID: pgtype.OIDText},
		{Name: "deleted_at", OID: pgtype.OIDTimestamp},
	}
	idRaw, _ := pgtype.Encode(pgtype.OIDInt4, int32(7))
	nameRaw, _ := pgtype.Encode(pgtype.OIDText, "alice")
	values := []pgtype.Value{
		{OID: pgtype.OIDInt4, Raw: idRaw},
		{OID: pgtype.OIDText, Raw: nameRaw},
		{OID: pgtype.OIDTimestamp, Null: true},
	}
	return newRow(cols, values)
}

func TestRowGetByIndex(t *testing.T) {
	r := makeRow()
	if got := Get[int32](r, 0); got != 7 {
		t.Errorf("got %v, want 7", got)
	}
	if got := Get[string](r, 1); got != "alice" {
		t.Errorf("got %v, want alice", got)
	}
}

func TestRowGetByNameCaseInsensitiveFallback(t *testing.T) {
	r := makeRow()
	if got := GetByName[string](r, "Name"); got != "alice" {
		t.Errorf("exact-case lookup: got %v", got)
	}
	if got := GetByName[string](r, "name"); got != "alice" {
		t.Errorf("case-insensitive lookup: got %v", got)
	}
}

func TestRowGetByNameUnknownColumnPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an unknown column name")
		}
	}()
	GetByName[string](makeRow(), "nope")
}

func TestRowColumnOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an out-of-range column index")
		}
	}()
	makeRow().Column(99)
}

func TestRowGetNullIntoPointerYieldsNil(t *testing.T) {
	r := makeRow()
	got := Get[*string](r, 2)
	if got != nil {
		t.Errorf("expected nil for a NULL column decoded as *string, got %v", got)
	}
}

func TestRowGetNullIntoNonPointerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic decoding NULL into a non-pointer type")
		}
	}()
	Get[int64](makeRow(), 2)
}

func TestRowGetWrongTypePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic decoding an int4 column as a string")
		}
	}()
	Get[string](makeRow(), 0)
}

func TestRowGetDecodableType(t *testing.T) {
	r := makeRow()
	if got := Get[upperString](r, 1); got != "ALICE" {
		t.Errorf("got %v, want ALICE", got)
	}
}

func TestRowGetDecodableTypeHandlesNullItself(t *testing.T) {
	// Column 2 is NULL; a Decodable type decides for itself how to handle
	// that instead of going through the pointer/slice/map/interface rule
	// decodeInto otherwise applies.
	if got := Get[upperString](makeRow(), 2); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestRowColumnsReturnsMetadataInOrder(t *testing.T) {
	r := makeRow()
	cols := r.Columns()
	if len(cols) != 3 || cols[0].Name != "id" || cols[1].Name != "Name" {
		t.Errorf("unexpected column metadata: %+v", cols)
	}
}
