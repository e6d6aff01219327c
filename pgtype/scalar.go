package pgtype

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"

	"github.com/nullbound/pgsync/internal/pgerr"
)

func init() {
	register(&Type{OID: OIDBool, Name: "bool", Decode: decodeBool, Encode: encodeBool, EncodeText: encodeBoolText})
	register(&Type{OID: OIDInt2, Name: "int2", Decode: decodeInt2, Encode: encodeInt2, EncodeText: encodeIntText})
	register(&Type{OID: OIDInt4, Name: "int4", Decode: decodeInt4, Encode: encodeInt4, EncodeText: encodeIntText})
	register(&Type{OID: OIDInt8, Name: "int8", Decode: decodeInt8, Encode: encodeInt8, EncodeText: encodeIntText})
	register(&Type{OID: OIDFloat4, Name: "float4", Decode: decodeFloat4, Encode: encodeFloat4, EncodeText: encodeFloatText})
	register(&Type{OID: OIDFloat8, Name: "float8", Decode: decodeFloat8, Encode: encodeFloat8, EncodeText: encodeFloatText})
	register(&Type{OID: OIDText, Name: "text", Decode: decodeText, Encode: encodeText, EncodeText: encodeText})
	register(&Type{OID: OIDVarchar, Name: "varchar", Decode: decodeText, Encode: encodeText, EncodeText: encodeText})
	register(&Type{OID: OIDBytea, Name: "bytea", Decode: decodeBytea, Encode: encodeBytea, EncodeText: encodeByteaText})
	register(&Type{OID: OIDJSON, Name: "json", Decode: decodeText, Encode: encodeText, EncodeText: encodeText})
	register(&Type{OID: OIDJSONB, Name: "jsonb", Decode: decodeJSONB, Encode: encodeJSONB, EncodeText: encodeText})
}

func decodeBool(raw []byte) (any, error) {
	if len(raw) != 1 {
		return nil, &pgerr.TypeConversionError{OID: OIDBool, Target: "bool", Reason: "expected 1 byte"}
	}
	return raw[0] != 0, nil
}

func encodeBool(v any) ([]byte, bool) {
	b, ok := v.(bool)
	if !ok {
		return nil, false
	}
	if b {
		return []byte{1}, true
	}
	return []byte{0}, true
}

func encodeBoolText(v any) ([]byte, bool) {
	b, ok := v.(bool)
	if !ok {
		return nil, false
	}
	if b {
		return []byte("true"), true
	}
	return []byte("false"), true
}

// toInt64 widens any of Go's built-in integer types to int64 so the
// scalar integer encoders accept whatever flavor of int literal the
// caller passed.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// encodeIntText is shared by int2/int4/int8: PostgreSQL's text format for
// every integer width is just its decimal ASCII rendering. Unlike the
// binary encoder, it also accepts a decimal string directly — the one
// extra leniency a text fallback can afford since the server's own parser
// will validate it anyway.
func encodeIntText(v any) ([]byte, bool) {
	if n, ok := toInt64(v); ok {
		return []byte(strconv.FormatInt(n, 10)), true
	}
	if s, ok := v.(string); ok {
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return []byte(s), true
		}
	}
	return nil, false
}

func decodeInt2(raw []byte) (any, error) {
	if len(raw) != 2 {
		return nil, &pgerr.TypeConversionError{OID: OIDInt2, Target: "int16", Reason: "expected 2 bytes"}
	}
	return int16(binary.BigEndian.Uint16(raw)), nil
}

func encodeInt2(v any) ([]byte, bool) {
	n, ok := toInt64(v)
	if !ok {
		return nil, false
	}
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(n))
	return b, true
}

func decodeInt4(raw []byte) (any, error) {
	if len(raw) != 4 {
		return nil, &pgerr.TypeConversionError{OID: OIDInt4, Target: "int32", Reason: "expected 4 bytes"}
	}
	return int32(binary.BigEndian.Uint32(raw)), nil
}

func encodeInt4(v any) ([]byte, bool) {
	n, ok := toInt64(v)
	if !ok {
		return nil, false
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(n))
	return b, true
}

func decodeInt8(raw []byte) (any, error) {
	if len(raw) != 8 {
		return nil, &pgerr.TypeConversionError{OID: OIDInt8, Target: "int64", Reason: "expected 8 bytes"}
	}
	return int64(binary.BigEndian.Uint64(raw)), nil
}

func encodeInt8(v any) ([]byte, bool) {
	n, ok := toInt64(v)
	if !ok {
		return nil, false
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b, true
}

func decodeFloat4(raw []byte) (any, error) {
	if len(raw) != 4 {
		return nil, &pgerr.TypeConversionError{OID: OIDFloat4, Target: "float32", Reason: "expected 4 bytes"}
	}
	return math.Float32frombits(binary.BigEndian.Uint32(raw)), nil
}

func encodeFloat4(v any) ([]byte, bool) {
	var f float32
	switch x := v.(type) {
	case float32:
		f = x
	case float64:
		f = float32(x)
	default:
		return nil, false
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(f))
	return b, true
}

func decodeFloat8(raw []byte) (any, error) {
	if len(raw) != 8 {
		return nil, &pgerr.TypeConversionError{OID: OIDFloat8, Target: "float64", Reason: "expected 8 bytes"}
	}
	return math.Float64frombits(binary.BigEndian.Uint64(raw)), nil
}

func encodeFloat8(v any) ([]byte, bool) {
	var f float64
	switch x := v.(type) {
	case float32:
		f = float64(x)
	case float64:
		f = x
	default:
		return nil, false
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(f))
	return b, true
}

// encodeFloatText renders a float32/float64 in PostgreSQL's text input
// format, shared by float4/float8: shortest round-trippable decimal, with
// the three named special values the server's parser also accepts. Also
// accepts a string already in a form strconv can parse, the same
// text-fallback leniency encodeIntText affords.
func encodeFloatText(v any) ([]byte, bool) {
	var f float64
	switch x := v.(type) {
	case float32:
		f = float64(x)
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil, false
		}
		f = parsed
	default:
		return nil, false
	}
	switch {
	case math.IsNaN(f):
		return []byte("NaN"), true
	case math.IsInf(f, 1):
		return []byte("Infinity"), true
	case math.IsInf(f, -1):
		return []byte("-Infinity"), true
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), true
}

func decodeText(raw []byte) (any, error) {
	return string(raw), nil
}

func encodeText(v any) ([]byte, bool) {
	switch x := v.(type) {
	case string:
		return []byte(x), true
	case []byte:
		return append([]byte(nil), x...), true
	}
	return nil, false
}

func decodeBytea(raw []byte) (any, error) {
	return append([]byte(nil), raw...), nil
}

func encodeBytea(v any) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...), true
	case string:
		return []byte(x), true
	}
	return nil, false
}

// encodeByteaText renders bytea in PostgreSQL's hex text format
// ("\x" followed by lowercase hex), the format its own text output uses by
// default since 9.0 and which its input parser always accepts.
func encodeByteaText(v any) ([]byte, bool) {
	var body []byte
	switch x := v.(type) {
	case []byte:
		body = x
	case string:
		body = []byte(x)
	default:
		return nil, false
	}
	out := make([]byte, 2+hex.EncodedLen(len(body)))
	out[0], out[1] = '\\', 'x'
	hex.Encode(out[2:], body)
	return out, true
}

// decodeJSONB strips JSONB's leading format-version byte (always 1) and
// returns the remaining UTF-8 JSON text as bytes — JSON/JSONB are treated
// as opaque payloads, never parsed by this client.
func decodeJSONB(raw []byte) (any, error) {
	if len(raw) < 1 {
		return nil, &pgerr.TypeConversionError{OID: OIDJSONB, Target: "[]byte", Reason: "empty jsonb payload"}
	}
	if raw[0] != 1 {
		return nil, &pgerr.TypeConversionError{OID: OIDJSONB, Target: "[]byte", Reason: "unsupported jsonb version byte"}
	}
	return append([]byte(nil), raw[1:]...), nil
}

func encodeJSONB(v any) ([]byte, bool) {
	var body []byte
	switch x := v.(type) {
	case string:
		body = []byte(x)
	case []byte:
		body = x
	default:
		return nil, false
	}
	out := make([]byte, 0, 1+len(body))
	out = append(out, 1)
	out = append(out, body...)
	return out, true
}
