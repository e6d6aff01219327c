// Package pgtype implements PostgreSQL's OID-to-Go-value mapping: a
// registry of type descriptors, each knowing how to decode a column's
// binary wire bytes into a canonical Go value and how to encode a Go value
// back into binary wire bytes for use as a bound parameter.
package pgtype

// Well-known OIDs for the types this client understands natively. Unknown
// OIDs fall back to the TEXT descriptor — see ForOID.
const (
	OIDBool        uint32 = 16
	OIDBytea       uint32 = 17
	OIDInt8        uint32 = 20
	OIDInt2        uint32 = 21
	OIDInt4        uint32 = 23
	OIDText        uint32 = 25
	OIDJSON        uint32 = 114
	OIDFloat4      uint32 = 700
	OIDFloat8      uint32 = 701
	OIDVarchar     uint32 = 1043
	OIDDate        uint32 = 1082
	OIDTime        uint32 = 1083
	OIDTimestamp   uint32 = 1114
	OIDTimestampTZ uint32 = 1184
	OIDNumeric     uint32 = 1700
	OIDUUID        uint32 = 2950
	OIDJSONB       uint32 = 3802
)

// Type describes one PostgreSQL type this client can move across the
// wire in binary format: how to turn a column's raw bytes into a Go value
// and back.
type Type struct {
	OID  uint32
	Name string

	// Decode turns raw (non-NULL) binary wire bytes into the canonical Go
	// representation for this type.
	Decode func(raw []byte) (any, error)

	// Encode turns a Go value into binary wire bytes for this type.
	// ok=false means v isn't a representation this codec recognizes.
	Encode func(v any) (raw []byte, ok bool)

	// EncodeText turns a Go value into this type's text wire format, used
	// as a fallback parameter format when Encode can't place v in binary.
	// Nil for types with no text encoder registered.
	EncodeText func(v any) (raw []byte, ok bool)
}

var registry = map[uint32]*Type{}

func register(t *Type) { registry[t.OID] = t }

// ForOID returns the registered descriptor for oid, defaulting to TEXT for
// anything unrecognized — the spec's deliberately lenient unknown-OID
// policy (an Open Question resolved in favor of the source's behavior:
// see DESIGN.md).
func ForOID(oid uint32) *Type {
	if t, ok := registry[oid]; ok {
		return t
	}
	return registry[OIDText]
}
