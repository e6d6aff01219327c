package pgtype

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestScalarRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		oid  uint32
		in   any
	}{
		{"bool true", OIDBool, true},
		{"bool false", OIDBool, false},
		{"int2", OIDInt2, int16(-1234)},
		{"int4", OIDInt4, int32(-123456789)},
		{"int8", OIDInt8, int64(-123456789012345)},
		{"float4", OIDFloat4, float32(3.5)},
		{"float8", OIDFloat8, float64(-2.5e10)},
		{"text", OIDText, "hello, world"},
		{"bytea", OIDBytea, []byte{0x00, 0x01, 0xff}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			raw, ok := Encode(c.oid, c.in)
			if !ok {
				t.Fatalf("Encode(%v) failed", c.in)
			}
			got, err := Decode(Value{OID: c.oid, Raw: raw})
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			switch want := c.in.(type) {
			case []byte:
				gotBytes, ok := got.([]byte)
				if !ok || !bytes.Equal(gotBytes, want) {
					t.Errorf("got %v, want %v", got, want)
				}
			default:
				if got != c.in {
					t.Errorf("got %v, want %v", got, c.in)
				}
			}
		})
	}
}

func TestIntegerWideningOnEncode(t *testing.T) {
	raw, ok := Encode(OIDInt8, int(42))
	if !ok {
		t.Fatal("Encode(int) into int8 should succeed via widening")
	}
	got, err := Decode(Value{OID: OIDInt8, Raw: raw})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.(int64) != 42 {
		t.Errorf("got %v, want 42", got)
	}
}

func TestJSONBVersionByte(t *testing.T) {
	raw, ok := Encode(OIDJSONB, `{"a":1}`)
	if !ok {
		t.Fatal("Encode jsonb failed")
	}
	if raw[0] != 1 {
		t.Fatalf("expected leading version byte 1, got %d", raw[0])
	}
	got, err := Decode(Value{OID: OIDJSONB, Raw: raw})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got.([]byte)) != `{"a":1}` {
		t.Errorf("got %q", got)
	}
}

func TestDecodeNullValue(t *testing.T) {
	got, err := Decode(Value{OID: OIDInt4, Null: true})
	if err != nil {
		t.Fatalf("Decode(NULL): %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for NULL, got %v", got)
	}
}

func TestUnknownOIDFallsBackToText(t *testing.T) {
	raw, ok := Encode(999999, "arbitrary enum value")
	if !ok {
		t.Fatal("Encode with unknown OID should fall back to text and succeed for a string")
	}
	got, err := Decode(Value{OID: 999999, Raw: raw})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "arbitrary enum value" {
		t.Errorf("got %v", got)
	}
}

func TestNumericRoundTrip(t *testing.T) {
	cases := []string{
		"0",
		"1",
		"-1",
		"123.456",
		"-123.456",
		"100000",
		"0.0001",
		"99999.99999",
		"-0.5",
	}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			d, err := decimal.NewFromString(s)
			if err != nil {
				t.Fatalf("NewFromString(%q): %v", s, err)
			}
			raw, ok := Encode(OIDNumeric, d)
			if !ok {
				t.Fatalf("Encode(%v) failed", d)
			}
			got, err := Decode(Value{OID: OIDNumeric, Raw: raw})
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			gotDec, ok := got.(decimal.Decimal)
			if !ok {
				t.Fatalf("expected decimal.Decimal, got %T", got)
			}
			if !gotDec.Equal(d) {
				t.Errorf("round-trip mismatch: got %v, want %v", gotDec, d)
			}
		})
	}
}

func TestNumericFromOtherGoTypes(t *testing.T) {
	for _, v := range []any{"42.5", 42, int32(42), int64(42), float64(42.5), float32(42.5)} {
		if _, ok := Encode(OIDNumeric, v); !ok {
			t.Errorf("Encode(%v, %T) should succeed", v, v)
		}
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	want := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	raw, ok := Encode(OIDTimestamp, TimestampFromTime(want))
	if !ok {
		t.Fatal("Encode failed")
	}
	got, err := Decode(Value{OID: OIDTimestamp, Raw: raw})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ts := got.(Timestamp)
	if !ts.Time.Equal(want) {
		t.Errorf("got %v, want %v", ts.Time, want)
	}
}

func TestTimestampInfinitySentinels(t *testing.T) {
	rawPos, _ := Encode(OIDTimestamp, Timestamp{PosInfinity: true})
	got, err := Decode(Value{OID: OIDTimestamp, Raw: rawPos})
	if err != nil || !got.(Timestamp).PosInfinity {
		t.Fatalf("expected PosInfinity, got %+v err=%v", got, err)
	}

	rawNeg, _ := Encode(OIDTimestampTZ, Timestamp{NegInfinity: true})
	got, err = Decode(Value{OID: OIDTimestampTZ, Raw: rawNeg})
	if err != nil || !got.(Timestamp).NegInfinity {
		t.Fatalf("expected NegInfinity, got %+v err=%v", got, err)
	}
}

func TestDateRoundTripAndInfinity(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	raw, ok := Encode(OIDDate, want)
	if !ok {
		t.Fatal("Encode failed")
	}
	got, err := Decode(Value{OID: OIDDate, Raw: raw})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.(Date).Time.Equal(want) {
		t.Errorf("got %v, want %v", got.(Date).Time, want)
	}

	rawPos, _ := Encode(OIDDate, Date{PosInfinity: true})
	gotPos, _ := Decode(Value{OID: OIDDate, Raw: rawPos})
	if !gotPos.(Date).PosInfinity {
		t.Fatal("expected PosInfinity")
	}
}

func TestTimeDuration(t *testing.T) {
	want := 13*time.Hour + 45*time.Minute + 30*time.Second
	raw, ok := Encode(OIDTime, want)
	if !ok {
		t.Fatal("Encode failed")
	}
	got, err := Decode(Value{OID: OIDTime, Raw: raw})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.(time.Duration) != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	want := uuid.New()
	raw, ok := Encode(OIDUUID, want)
	if !ok {
		t.Fatal("Encode failed")
	}
	if len(raw) != 16 {
		t.Fatalf("expected 16 raw bytes, got %d", len(raw))
	}
	got, err := Decode(Value{OID: OIDUUID, Raw: raw})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.(uuid.UUID) != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestUUIDFromString(t *testing.T) {
	want := uuid.New()
	raw, ok := Encode(OIDUUID, want.String())
	if !ok {
		t.Fatal("Encode(string) failed")
	}
	got, _ := Decode(Value{OID: OIDUUID, Raw: raw})
	if got.(uuid.UUID) != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEncodeTypeMismatchFails(t *testing.T) {
	if _, ok := Encode(OIDInt4, "not a number"); ok {
		t.Fatal("expected Encode to fail for a string into int4")
	}
	if _, ok := Encode(OIDUUID, 12345); ok {
		t.Fatal("expected Encode to fail for an int into uuid")
	}
}

// customOID is a caller-defined extension type implementing Encodable and
// Decodable, the way a user would register a type this package never
// heard of without forking the registry.
type customOID struct {
	label string
}

func (c customOID) EncodePG(oid uint32) ([]byte, bool) {
	if oid != 999998 {
		return nil, false
	}
	return []byte("custom:" + c.label), true
}

func (c *customOID) DecodePG(oid uint32, raw []byte, null bool) error {
	if null {
		c.label = ""
		return nil
	}
	c.label = string(raw)
	return nil
}

func TestEncodableValueTakesPriorityOverRegistry(t *testing.T) {
	raw, ok := Encode(999998, customOID{label: "widget"})
	if !ok {
		t.Fatal("Encode should dispatch to EncodePG for an Encodable value")
	}
	if string(raw) != "custom:widget" {
		t.Errorf("got %q", raw)
	}
}

func TestEncodableFailureDoesNotFallThroughToRegistry(t *testing.T) {
	// customOID.EncodePG only recognizes OID 999998; for any other OID it
	// reports ok=false, and Encode must not silently retry the (unrelated)
	// registry entry for that OID.
	if _, ok := Encode(OIDText, customOID{label: "widget"}); ok {
		t.Fatal("Encode should not fall back to the text registry for an Encodable value")
	}
}

func TestEncodeTextFallbackForScalars(t *testing.T) {
	cases := []struct {
		name string
		oid  uint32
		in   any
		want string
	}{
		{"int4 from string", OIDInt4, "42", "42"},
		{"int8 negative", OIDInt8, int64(-7), "-7"},
		{"float8 from string", OIDFloat8, "3.5", "3.5"},
		{"bool true", OIDBool, true, "true"},
		{"bool false", OIDBool, false, "false"},
		{"numeric", OIDNumeric, "123.450", "123.45"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			raw, ok := EncodeText(c.oid, c.in)
			if !ok {
				t.Fatalf("EncodeText(%v) failed", c.in)
			}
			if string(raw) != c.want {
				t.Errorf("got %q, want %q", raw, c.want)
			}
		})
	}
}

func TestEncodeTextByteaUsesHexFormat(t *testing.T) {
	raw, ok := EncodeText(OIDBytea, []byte{0x00, 0x01, 0xff})
	if !ok {
		t.Fatal("EncodeText(bytea) failed")
	}
	if string(raw) != `\x0001ff` {
		t.Errorf("got %q, want %q", raw, `\x0001ff`)
	}
}

func TestEncodeTextTimestampInfinity(t *testing.T) {
	raw, ok := EncodeText(OIDTimestamp, Timestamp{PosInfinity: true})
	if !ok || string(raw) != "infinity" {
		t.Fatalf("got %q, ok=%v", raw, ok)
	}
}

func TestMaxInt64SentinelDoesNotCollideWithNumeric(t *testing.T) {
	// Sanity check that math.MaxInt64 itself still round-trips through
	// NUMERIC (a distinct OID/format from TIMESTAMP, so the sentinel
	// value has no special meaning here).
	d := decimal.NewFromInt(math.MaxInt64)
	raw, ok := Encode(OIDNumeric, d)
	if !ok {
		t.Fatal("Encode failed")
	}
	got, err := Decode(Value{OID: OIDNumeric, Raw: raw})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.(decimal.Decimal).Equal(d) {
		t.Errorf("got %v, want %v", got, d)
	}
}
