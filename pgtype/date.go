package pgtype

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/nullbound/pgsync/internal/pgerr"
)

// Date is DATE's {Finite|PosInfinity|NegInfinity} wrapper, mirroring
// Timestamp in timestamp.go.
type Date struct {
	Time        time.Time
	PosInfinity bool
	NegInfinity bool
}

const dateTextLayout = "2006-01-02"

func init() {
	register(&Type{OID: OIDDate, Name: "date", Decode: decodeDate, Encode: encodeDate, EncodeText: encodeDateText})
}

func decodeDate(raw []byte) (any, error) {
	if len(raw) != 4 {
		return nil, &pgerr.TypeConversionError{OID: OIDDate, Target: "pgtype.Date", Reason: "expected 4 bytes"}
	}
	days := int32(binary.BigEndian.Uint32(raw))
	switch days {
	case math.MaxInt32:
		return Date{PosInfinity: true}, nil
	case math.MinInt32:
		return Date{NegInfinity: true}, nil
	}
	return Date{Time: pgEpoch.AddDate(0, 0, int(days))}, nil
}

func encodeDate(v any) ([]byte, bool) {
	d, ok := v.(Date)
	if !ok {
		t, ok2 := v.(time.Time)
		if !ok2 {
			return nil, false
		}
		d = Date{Time: t}
	}
	b := make([]byte, 4)
	switch {
	case d.PosInfinity:
		binary.BigEndian.PutUint32(b, uint32(int32(math.MaxInt32)))
	case d.NegInfinity:
		binary.BigEndian.PutUint32(b, uint32(int32(math.MinInt32)))
	default:
		days := int32(d.Time.UTC().Sub(pgEpoch).Hours() / 24)
		binary.BigEndian.PutUint32(b, uint32(days))
	}
	return b, true
}

// encodeDateText mirrors encodeDate's infinity handling for DATE's text
// input format.
func encodeDateText(v any) ([]byte, bool) {
	d, ok := v.(Date)
	if !ok {
		t, ok2 := v.(time.Time)
		if !ok2 {
			return nil, false
		}
		d = Date{Time: t}
	}
	switch {
	case d.PosInfinity:
		return []byte("infinity"), true
	case d.NegInfinity:
		return []byte("-infinity"), true
	}
	return []byte(d.Time.UTC().Format(dateTextLayout)), true
}
