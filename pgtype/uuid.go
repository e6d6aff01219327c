package pgtype

import (
	"github.com/google/uuid"

	"github.com/nullbound/pgsync/internal/pgerr"
)

func init() {
	register(&Type{OID: OIDUUID, Name: "uuid", Decode: decodeUUID, Encode: encodeUUID, EncodeText: encodeUUIDText})
}

func decodeUUID(raw []byte) (any, error) {
	if len(raw) != 16 {
		return nil, &pgerr.TypeConversionError{OID: OIDUUID, Target: "uuid.UUID", Reason: "expected 16 bytes"}
	}
	var u uuid.UUID
	copy(u[:], raw)
	return u, nil
}

func encodeUUID(v any) ([]byte, bool) {
	switch x := v.(type) {
	case uuid.UUID:
		b := make([]byte, 16)
		copy(b, x[:])
		return b, true
	case string:
		u, err := uuid.Parse(x)
		if err != nil {
			return nil, false
		}
		b := make([]byte, 16)
		copy(b, u[:])
		return b, true
	}
	return nil, false
}

// encodeUUIDText renders a UUID in its canonical hyphenated text form,
// which doubles as PostgreSQL's UUID text input format.
func encodeUUIDText(v any) ([]byte, bool) {
	switch x := v.(type) {
	case uuid.UUID:
		return []byte(x.String()), true
	case string:
		u, err := uuid.Parse(x)
		if err != nil {
			return nil, false
		}
		return []byte(u.String()), true
	}
	return nil, false
}
