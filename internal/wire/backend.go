package wire

import (
	"encoding/binary"

	"github.com/nullbound/pgsync/internal/pgerr"
)

// BackendMessage is the tagged-variant union of backend messages this
// client understands. Each concrete type below implements it.
type BackendMessage interface {
	isBackendMessage()
}

type (
	AuthenticationOk                struct{}
	AuthenticationCleartextPassword struct{}
	AuthenticationMD5Password       struct{ Salt [4]byte }
	AuthenticationSASL              struct{ raw []byte }
	AuthenticationSASLContinue      struct{ Data []byte }
	AuthenticationSASLFinal         struct{ Data []byte }
	BackendKeyData                  struct {
		ProcessID uint32
		SecretKey uint32
	}
	ParameterStatus struct {
		Name  string
		Value string
	}
	NoticeResponse       struct{ raw []byte }
	ErrorResponse        struct{ raw []byte }
	ReadyForQuery        struct{ Status byte }
	ParseComplete        struct{}
	ParameterDescription struct{ raw []byte }
	RowDescription       struct{ raw []byte }
	NoData               struct{}
	BindComplete         struct{}
	DataRow              struct{ raw []byte }
	CommandComplete      struct{ Tag string }
	EmptyQueryResponse   struct{}
	Other                struct {
		Tag byte
		Raw []byte
	}
)

func (AuthenticationOk) isBackendMessage()                {}
func (AuthenticationCleartextPassword) isBackendMessage() {}
func (AuthenticationMD5Password) isBackendMessage()       {}
func (AuthenticationSASL) isBackendMessage()              {}
func (AuthenticationSASLContinue) isBackendMessage()      {}
func (AuthenticationSASLFinal) isBackendMessage()         {}
func (BackendKeyData) isBackendMessage()                 {}
func (ParameterStatus) isBackendMessage()                {}
func (NoticeResponse) isBackendMessage()                  {}
func (ErrorResponse) isBackendMessage()                   {}
func (ReadyForQuery) isBackendMessage()                   {}
func (ParseComplete) isBackendMessage()                   {}
func (ParameterDescription) isBackendMessage()            {}
func (RowDescription) isBackendMessage()                  {}
func (NoData) isBackendMessage()                          {}
func (BindComplete) isBackendMessage()                    {}
func (DataRow) isBackendMessage()                         {}
func (CommandComplete) isBackendMessage()                 {}
func (EmptyQueryResponse) isBackendMessage()               {}
func (Other) isBackendMessage()                           {}

// ReadBackend reads the next message off the wire and decodes it.
func (c *Conn) ReadBackend() (BackendMessage, error) {
	tag, payload, err := c.ReadMessage()
	if err != nil {
		return nil, err
	}
	return Decode(tag, payload)
}

// Decode turns a tag+payload pair into a typed BackendMessage. Unknown tags
// fall through to Other rather than erroring, per the spec's tolerant
// handling of messages the core doesn't need to act on.
func Decode(tag byte, payload []byte) (BackendMessage, error) {
	switch tag {
	case 'R':
		return decodeAuth(payload)
	case 'K':
		if len(payload) < 8 {
			return nil, &pgerr.ProtocolError{Reason: "BackendKeyData too short"}
		}
		return BackendKeyData{
			ProcessID: binary.BigEndian.Uint32(payload[0:4]),
			SecretKey: binary.BigEndian.Uint32(payload[4:8]),
		}, nil
	case 'S':
		name, value, ok := splitCString(payload)
		if !ok {
			return nil, &pgerr.ProtocolError{Reason: "ParameterStatus malformed"}
		}
		return ParameterStatus{Name: name, Value: value}, nil
	case 'N':
		return NoticeResponse{raw: payload}, nil
	case 'E':
		return ErrorResponse{raw: payload}, nil
	case 'Z':
		if len(payload) < 1 {
			return nil, &pgerr.ProtocolError{Reason: "ReadyForQuery too short"}
		}
		return ReadyForQuery{Status: payload[0]}, nil
	case '1':
		return ParseComplete{}, nil
	case 't':
		return ParameterDescription{raw: payload}, nil
	case 'T':
		return RowDescription{raw: payload}, nil
	case 'n':
		return NoData{}, nil
	case '2':
		return BindComplete{}, nil
	case 'D':
		return DataRow{raw: payload}, nil
	case 'C':
		tagStr, _, _ := cStringAt(payload, 0)
		return CommandComplete{Tag: tagStr}, nil
	case 'I':
		return EmptyQueryResponse{}, nil
	default:
		return Other{Tag: tag, Raw: payload}, nil
	}
}

func decodeAuth(payload []byte) (BackendMessage, error) {
	if len(payload) < 4 {
		return nil, &pgerr.ProtocolError{Reason: "Authentication message too short"}
	}
	kind := binary.BigEndian.Uint32(payload[0:4])
	rest := payload[4:]
	switch kind {
	case 0:
		return AuthenticationOk{}, nil
	case 3:
		return AuthenticationCleartextPassword{}, nil
	case 5:
		if len(rest) < 4 {
			return nil, &pgerr.ProtocolError{Reason: "AuthenticationMD5Password too short"}
		}
		var salt [4]byte
		copy(salt[:], rest[:4])
		return AuthenticationMD5Password{Salt: salt}, nil
	case 10:
		return AuthenticationSASL{raw: rest}, nil
	case 11:
		return AuthenticationSASLContinue{Data: append([]byte(nil), rest...)}, nil
	case 12:
		return AuthenticationSASLFinal{Data: append([]byte(nil), rest...)}, nil
	default:
		return Other{Tag: 'R', Raw: payload}, nil
	}
}

// --- lazy accessors ---

// Mechanisms returns the NUL-terminated list of SASL mechanism names
// offered by the server.
func (m AuthenticationSASL) Mechanisms() []string {
	var out []string
	data := m.raw
	for len(data) > 0 {
		s, rest, ok := cStringAt(data, 0)
		if !ok || s == "" {
			break
		}
		out = append(out, s)
		data = rest
	}
	return out
}

// ErrorField is one (code, value) pair from an ErrorResponse/NoticeResponse.
type ErrorField struct {
	Code  byte
	Value string
}

// ErrorFieldIter is a sequential cursor over an ErrorResponse's fields,
// matching the spec's "lazy backend-message accessors" design: ownership of
// the underlying buffer stays with the message.
type ErrorFieldIter struct {
	data []byte
	pos  int
}

// Fields returns an iterator over this ErrorResponse's (code, z-string)
// pairs, terminated by a zero byte per the wire format.
func (m ErrorResponse) Fields() *ErrorFieldIter {
	return &ErrorFieldIter{data: m.raw}
}

// Fields returns an iterator over this NoticeResponse's fields (same wire
// shape as ErrorResponse; the core ignores the content but callers may
// still want to inspect notices).
func (m NoticeResponse) Fields() *ErrorFieldIter {
	return &ErrorFieldIter{data: m.raw}
}

// Next returns the next field, or ok=false once the terminating zero byte
// is reached.
func (it *ErrorFieldIter) Next() (ErrorField, bool) {
	if it.pos >= len(it.data) {
		return ErrorField{}, false
	}
	code := it.data[it.pos]
	if code == 0 {
		it.pos++
		return ErrorField{}, false
	}
	it.pos++
	s, rest, ok := cStringAt(it.data, it.pos)
	if !ok {
		it.pos = len(it.data)
		return ErrorField{}, false
	}
	it.pos = len(it.data) - len(rest)
	return ErrorField{Code: code, Value: s}, true
}

// ParameterIter is a sequential cursor over a ParameterDescription's OIDs.
type ParameterIter struct {
	data []byte
	pos  int
}

// Parameters returns an iterator over the inferred parameter type OIDs.
func (m ParameterDescription) Parameters() *ParameterIter {
	return &ParameterIter{data: m.raw, pos: 2} // skip i16 count
}

// Next returns the next parameter OID.
func (it *ParameterIter) Next() (uint32, bool) {
	if it.pos+4 > len(it.data) {
		return 0, false
	}
	oid := binary.BigEndian.Uint32(it.data[it.pos : it.pos+4])
	it.pos += 4
	return oid, true
}

// FieldDescription describes one result column from a RowDescription.
type FieldDescription struct {
	Name      string
	TableOID  uint32
	ColumnNum int16
	TypeOID   uint32
	TypeSize  int16
	TypeMod   int32
	Format    int16
}

// FieldIter is a sequential cursor over a RowDescription's fields.
type FieldIter struct {
	data []byte
	pos  int
}

// Fields returns an iterator over the described result columns.
func (m RowDescription) Fields() *FieldIter {
	return &FieldIter{data: m.raw, pos: 2} // skip i16 count
}

// Count returns the number of described columns without iterating.
func (m RowDescription) Count() int {
	if len(m.raw) < 2 {
		return 0
	}
	return int(int16(binary.BigEndian.Uint16(m.raw[0:2])))
}

// Next returns the next field description.
func (it *FieldIter) Next() (FieldDescription, bool) {
	s, rest, ok := cStringAt(it.data, it.pos)
	if !ok {
		return FieldDescription{}, false
	}
	pos := len(it.data) - len(rest)
	if pos+18 > len(it.data) {
		return FieldDescription{}, false
	}
	fd := FieldDescription{
		Name:      s,
		TableOID:  binary.BigEndian.Uint32(it.data[pos : pos+4]),
		ColumnNum: int16(binary.BigEndian.Uint16(it.data[pos+4 : pos+6])),
		TypeOID:   binary.BigEndian.Uint32(it.data[pos+6 : pos+10]),
		TypeSize:  int16(binary.BigEndian.Uint16(it.data[pos+10 : pos+12])),
		TypeMod:   int32(binary.BigEndian.Uint32(it.data[pos+12 : pos+16])),
		Format:    int16(binary.BigEndian.Uint16(it.data[pos+16 : pos+18])),
	}
	it.pos = pos + 18
	return fd, true
}

// ColumnRange locates one column's value within a DataRow's buffer, or
// marks it NULL.
type ColumnRange struct {
	Null       bool
	Start, End int
}

// RangeIter is a sequential cursor over a DataRow's column ranges.
type RangeIter struct {
	data []byte
	pos  int
}

// Ranges returns an iterator over this row's column value ranges.
func (m DataRow) Ranges() *RangeIter {
	return &RangeIter{data: m.raw, pos: 2} // skip i16 column count
}

// Buffer returns the DataRow's raw payload; ColumnRange offsets index into
// this slice.
func (m DataRow) Buffer() []byte { return m.raw }

// Count returns the number of columns in this row.
func (m DataRow) Count() int {
	if len(m.raw) < 2 {
		return 0
	}
	return int(int16(binary.BigEndian.Uint16(m.raw[0:2])))
}

// Next returns the next column's range, or ok=false at the end.
func (it *RangeIter) Next() (ColumnRange, bool) {
	if it.pos+4 > len(it.data) {
		return ColumnRange{}, false
	}
	length := int32(binary.BigEndian.Uint32(it.data[it.pos : it.pos+4]))
	it.pos += 4
	if length < 0 {
		return ColumnRange{Null: true}, true
	}
	start := it.pos
	end := start + int(length)
	it.pos = end
	return ColumnRange{Start: start, End: end}, true
}

// --- small parsing helpers shared by the decoders above ---

func cStringAt(data []byte, pos int) (s string, rest []byte, ok bool) {
	if pos > len(data) {
		return "", nil, false
	}
	for i := pos; i < len(data); i++ {
		if data[i] == 0 {
			return string(data[pos:i]), data[i+1:], true
		}
	}
	return "", nil, false
}

func splitCString(data []byte) (key, value string, ok bool) {
	k, rest, ok := cStringAt(data, 0)
	if !ok {
		return "", "", false
	}
	v, _, ok := cStringAt(rest, 0)
	if !ok {
		return "", "", false
	}
	return k, v, true
}
