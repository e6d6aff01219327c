package pgtype

import "github.com/nullbound/pgsync/internal/pgerr"

// Value is a column or parameter in transit: the OID it's bound to,
// whether it's NULL, and (for a decoded result) its raw binary-format
// bytes. The zero value with Null=false and a nil Raw is not meaningful —
// construct it through the extended-query engine or Encode below.
type Value struct {
	OID  uint32
	Null bool
	Raw  []byte
}

// Decode converts v's raw bytes into the canonical Go representation for
// its OID (int16/int32/int64/float32/float64/bool/string/[]byte/
// decimal.Decimal/uuid.UUID/Timestamp/Date/time.Duration), using the type
// registered for v.OID. Returns nil, nil for a NULL value; callers decide
// how to surface that (pgsync.Row.Get treats it as the zero value for
// pointer/slice/map/interface targets, a panic otherwise).
func Decode(v Value) (any, error) {
	if v.Null {
		return nil, nil
	}
	return ForOID(v.OID).Decode(v.Raw)
}

// Encode renders a Go value as binary-format wire bytes for oid. A value
// implementing Encodable always encodes itself, and its EncodePG result is
// returned as is (the registry is not consulted for it); any other value
// goes through the built-in registry. ok=false means v could not be
// represented in binary — the caller tries EncodeText next, or surfaces a
// SerializationError if that also fails.
func Encode(oid uint32, v any) (raw []byte, ok bool) {
	if e, ok := v.(Encodable); ok {
		return e.EncodePG(oid)
	}
	return ForOID(oid).Encode(v)
}

// EncodeText renders v as text-format wire bytes for oid, the fallback path
// for a value Encode couldn't place in binary. Not every registered type
// has a text encoder (ok=false if none is registered for oid); Encodable
// values have no text counterpart, since the interface only promises a
// binary encoding.
func EncodeText(oid uint32, v any) (raw []byte, ok bool) {
	t := ForOID(oid)
	if t.EncodeText == nil {
		return nil, false
	}
	return t.EncodeText(v)
}

// Encodable is implemented by caller-defined types that know how to encode
// themselves for a specific OID, extending the built-in registry (spec's
// "Polymorphic parameter and value types" capability set).
type Encodable interface {
	EncodePG(oid uint32) (raw []byte, ok bool)
}

// Decodable is implemented by caller-defined result types that know how to
// decode themselves from a specific OID's wire bytes. Unlike Encodable,
// there's no hook inside this package's Decode: Decode only ever sees a
// Value, never the Go type the caller wants the result decoded into, so the
// check belongs at the call site that knows that type — see
// pgsync.Row.Get's use of Decodable.
type Decodable interface {
	DecodePG(oid uint32, raw []byte, null bool) error
}

// NewTypeConversionError lets callers outside this package (pgsync.Row.Get)
// construct the same TypeConversionError this package's decoders return.
func NewTypeConversionError(oid uint32, target, reason string) error {
	return &pgerr.TypeConversionError{OID: oid, Target: target, Reason: reason}
}
