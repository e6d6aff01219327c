package pgtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/nullbound/pgsync/internal/pgerr"
)

// pgEpoch is the reference instant PostgreSQL's binary TIMESTAMP,
// TIMESTAMPTZ and DATE formats count from.
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Timestamp is TIMESTAMP/TIMESTAMPTZ's {Finite|PosInfinity|NegInfinity}
// wrapper (spec's "Special values"), generalizing the original Rust
// implementation's Timestamp<T> to a concrete time.Time payload since Go
// has one canonical time type rather than a pluggable date-library target.
type Timestamp struct {
	Time        time.Time
	PosInfinity bool
	NegInfinity bool
}

// TimestampFromTime wraps a finite time.Time as a Timestamp.
func TimestampFromTime(t time.Time) Timestamp { return Timestamp{Time: t} }

const timestampTextLayout = "2006-01-02 15:04:05.999999"

func init() {
	register(&Type{OID: OIDTimestamp, Name: "timestamp", Decode: decodeTimestamp, Encode: encodeTimestamp, EncodeText: encodeTimestampText})
	register(&Type{OID: OIDTimestampTZ, Name: "timestamptz", Decode: decodeTimestamp, Encode: encodeTimestamp, EncodeText: encodeTimestampText})
	register(&Type{OID: OIDTime, Name: "time", Decode: decodeTime, Encode: encodeTime, EncodeText: encodeTimeText})
}

func decodeTimestamp(raw []byte) (any, error) {
	if len(raw) != 8 {
		return nil, &pgerr.TypeConversionError{OID: OIDTimestamp, Target: "pgtype.Timestamp", Reason: "expected 8 bytes"}
	}
	micros := int64(binary.BigEndian.Uint64(raw))
	switch micros {
	case math.MaxInt64:
		return Timestamp{PosInfinity: true}, nil
	case math.MinInt64:
		return Timestamp{NegInfinity: true}, nil
	}
	return Timestamp{Time: pgEpoch.Add(time.Duration(micros) * time.Microsecond)}, nil
}

func encodeTimestamp(v any) ([]byte, bool) {
	ts, ok := v.(Timestamp)
	if !ok {
		t, ok2 := v.(time.Time)
		if !ok2 {
			return nil, false
		}
		ts = Timestamp{Time: t}
	}
	b := make([]byte, 8)
	switch {
	case ts.PosInfinity:
		binary.BigEndian.PutUint64(b, uint64(int64(math.MaxInt64)))
	case ts.NegInfinity:
		binary.BigEndian.PutUint64(b, uint64(int64(math.MinInt64)))
	default:
		micros := ts.Time.UTC().Sub(pgEpoch).Microseconds()
		binary.BigEndian.PutUint64(b, uint64(micros))
	}
	return b, true
}

// encodeTimestampText renders a Timestamp (or plain time.Time) the way
// PostgreSQL's own TIMESTAMP/TIMESTAMPTZ input parser expects text, with
// the same infinity special cases the binary encoder handles.
func encodeTimestampText(v any) ([]byte, bool) {
	ts, ok := v.(Timestamp)
	if !ok {
		t, ok2 := v.(time.Time)
		if !ok2 {
			return nil, false
		}
		ts = Timestamp{Time: t}
	}
	switch {
	case ts.PosInfinity:
		return []byte("infinity"), true
	case ts.NegInfinity:
		return []byte("-infinity"), true
	}
	return []byte(ts.Time.UTC().Format(timestampTextLayout)), true
}

// decodeTime/encodeTime handle TIME (microseconds since midnight) as a
// plain time.Duration — the spec lists TIME in the registry but assigns it
// no special-value contract, unlike TIMESTAMP/DATE.
func decodeTime(raw []byte) (any, error) {
	if len(raw) != 8 {
		return nil, &pgerr.TypeConversionError{OID: OIDTime, Target: "time.Duration", Reason: "expected 8 bytes"}
	}
	micros := int64(binary.BigEndian.Uint64(raw))
	return time.Duration(micros) * time.Microsecond, nil
}

func encodeTime(v any) ([]byte, bool) {
	d, ok := v.(time.Duration)
	if !ok {
		return nil, false
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(d.Microseconds()))
	return b, true
}

// encodeTimeText renders a time.Duration since midnight as "HH:MM:SS.ffffff".
func encodeTimeText(v any) ([]byte, bool) {
	d, ok := v.(time.Duration)
	if !ok {
		return nil, false
	}
	if d < 0 {
		return nil, false
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	micros := d / time.Microsecond
	return []byte(fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, s, micros)), true
}
