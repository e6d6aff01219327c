package pgtype

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nullbound/pgsync/internal/pgerr"
)

// NUMERIC's sign field: 0x0000 positive, 0x4000 negative, 0xC000 NaN.
const (
	numericPos uint16 = 0x0000
	numericNeg uint16 = 0x4000
	numericNaN uint16 = 0xC000
)

func init() {
	register(&Type{OID: OIDNumeric, Name: "numeric", Decode: decodeNumeric, Encode: encodeNumeric, EncodeText: encodeNumericText})
}

// decodeNumeric parses PostgreSQL's NUMERIC binary layout: a header of
// (ndigits, weight, sign, dscale) followed by ndigits base-10000 digit
// groups, into a shopspring/decimal.Decimal.
func decodeNumeric(raw []byte) (any, error) {
	if len(raw) < 8 {
		return nil, &pgerr.TypeConversionError{OID: OIDNumeric, Target: "decimal.Decimal", Reason: "numeric payload too short"}
	}
	ndigits := int(binary.BigEndian.Uint16(raw[0:2]))
	weight := int16(binary.BigEndian.Uint16(raw[2:4]))
	sign := binary.BigEndian.Uint16(raw[4:6])
	dscale := int(binary.BigEndian.Uint16(raw[6:8]))

	if sign == numericNaN {
		return nil, &pgerr.TypeConversionError{OID: OIDNumeric, Target: "decimal.Decimal", Reason: "NaN numeric has no decimal.Decimal representation"}
	}
	if len(raw) < 8+2*ndigits {
		return nil, &pgerr.TypeConversionError{OID: OIDNumeric, Target: "decimal.Decimal", Reason: "numeric payload truncated"}
	}

	var digits strings.Builder
	for i := 0; i < ndigits; i++ {
		group := binary.BigEndian.Uint16(raw[8+2*i : 10+2*i])
		digits.WriteString(padGroup(group))
	}
	s := digits.String()

	// The first digit group's place value is 10000^weight, i.e. the
	// decimal point sits (weight+1)*4 digits in from the left of s.
	pointPos := (int(weight) + 1) * 4
	for pointPos <= 0 {
		s = "0" + s
		pointPos++
	}
	for len(s) < pointPos {
		s += "0"
	}
	intPart, fracPart := s[:pointPos], s[pointPos:]
	if intPart == "" {
		intPart = "0"
	}

	numStr := intPart
	if len(fracPart) > 0 {
		numStr += "." + fracPart
	}
	d, err := decimal.NewFromString(numStr)
	if err != nil {
		return nil, &pgerr.TypeConversionError{OID: OIDNumeric, Target: "decimal.Decimal", Reason: err.Error()}
	}
	if len(fracPart) > dscale {
		d = d.Truncate(int32(dscale))
	}
	if sign == numericNeg {
		d = d.Neg()
	}
	return d, nil
}

func padGroup(group uint16) string {
	s := strconv.Itoa(int(group))
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

// encodeNumeric renders a decimal.Decimal (or a string/float/int Go
// recognizes as one) into PostgreSQL's NUMERIC binary layout.
func encodeNumeric(v any) ([]byte, bool) {
	d, ok := toDecimal(v)
	if !ok {
		return nil, false
	}
	return numericToBinary(d), true
}

// encodeNumericText renders a decimal.Decimal (or anything toDecimal
// accepts) as its plain decimal string, which is NUMERIC's own text format.
func encodeNumericText(v any) ([]byte, bool) {
	d, ok := toDecimal(v)
	if !ok {
		return nil, false
	}
	return []byte(d.String()), true
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	}
	return decimal.Decimal{}, false
}

func numericToBinary(d decimal.Decimal) []byte {
	neg := d.Sign() < 0
	d = d.Abs()

	scale := int(-d.Exponent())
	if scale < 0 {
		scale = 0
	}
	digits := d.Coefficient().String()
	for len(digits) <= scale {
		digits = "0" + digits
	}
	intDigits := digits[:len(digits)-scale]
	fracDigits := digits[len(digits)-scale:]

	for len(intDigits)%4 != 0 {
		intDigits = "0" + intDigits
	}
	for len(fracDigits)%4 != 0 {
		fracDigits += "0"
	}

	var groups []uint16
	for i := 0; i < len(intDigits); i += 4 {
		n, _ := strconv.Atoi(intDigits[i : i+4])
		groups = append(groups, uint16(n))
	}
	for i := 0; i < len(fracDigits); i += 4 {
		n, _ := strconv.Atoi(fracDigits[i : i+4])
		groups = append(groups, uint16(n))
	}

	weight := len(intDigits)/4 - 1
	for len(groups) > 1 && groups[0] == 0 {
		groups = groups[1:]
		weight--
	}
	for len(groups) > 1 && groups[len(groups)-1] == 0 {
		groups = groups[:len(groups)-1]
	}
	if len(groups) == 1 && groups[0] == 0 {
		weight = 0
	}

	buf := make([]byte, 8+2*len(groups))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(groups)))
	binary.BigEndian.PutUint16(buf[2:4], uint16(weight))
	sign := numericPos
	if neg {
		sign = numericNeg
	}
	binary.BigEndian.PutUint16(buf[4:6], sign)
	binary.BigEndian.PutUint16(buf[6:8], uint16(scale))
	for i, g := range groups {
		binary.BigEndian.PutUint16(buf[8+2*i:10+2*i], g)
	}
	return buf
}
