package wire

import "encoding/binary"

// ProtocolVersion is the PostgreSQL wire protocol v3.0 version constant
// sent in the startup message.
const ProtocolVersion uint32 = 0x00030000

// appendInt32 appends a big-endian int32.
func appendInt32(buf []byte, v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return append(buf, b[:]...)
}

func appendInt16(buf []byte, v int16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	return append(buf, b[:]...)
}

// appendCString appends s followed by a NUL terminator.
func appendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

// frame prepends the tag (if nonzero) and the big-endian length (inclusive
// of itself, exclusive of the tag) to body, returning the full wire bytes.
func frame(tag byte, body []byte) []byte {
	length := int32(4 + len(body))
	out := make([]byte, 0, 1+len(body)+4)
	if tag != 0 {
		out = append(out, tag)
	}
	out = appendInt32(out, length)
	out = append(out, body...)
	return out
}

// WriteStartup sends the untagged startup message: version, then
// zero-terminated name/value pairs, then a final zero byte. params must be
// supplied in order; callers control whether "database" is included.
func (c *Conn) WriteStartup(params [][2]string) {
	body := make([]byte, 0, 64)
	body = appendInt32(body, int32(ProtocolVersion))
	for _, kv := range params {
		body = appendCString(body, kv[0])
		body = appendCString(body, kv[1])
	}
	body = append(body, 0)
	c.WriteRaw(frame(0, body))
}

// WritePassword sends a PasswordMessage ('p') carrying a cleartext/MD5
// password or a raw SASL payload, depending on caller.
func (c *Conn) WritePassword(payload []byte) {
	body := append(append([]byte{}, payload...), 0)
	c.WriteRaw(frame('p', body))
}

// WriteSASLInitialResponse sends the SASLInitialResponse 'p' message:
// mechanism name (z), i32 length, initial message bytes.
func (c *Conn) WriteSASLInitialResponse(mechanism string, initial []byte) {
	body := make([]byte, 0, len(mechanism)+5+len(initial))
	body = appendCString(body, mechanism)
	body = appendInt32(body, int32(len(initial)))
	body = append(body, initial...)
	c.WriteRaw(frame('p', body))
}

// WriteSASLResponse sends the raw SASL response bytes as a 'p' message (no
// mechanism name, no length prefix — just the payload).
func (c *Conn) WriteSASLResponse(payload []byte) {
	c.WriteRaw(frame('p', payload))
}

// WriteParse sends a Parse ('P') message for an unnamed statement.
// paramOIDs may be all zero to let the server infer parameter types.
func (c *Conn) WriteParse(query string, paramOIDs []uint32) {
	body := make([]byte, 0, len(query)+16)
	body = appendCString(body, "") // unnamed statement
	body = appendCString(body, query)
	body = appendInt16(body, int16(len(paramOIDs)))
	for _, oid := range paramOIDs {
		body = appendInt32(body, int32(oid))
	}
	c.WriteRaw(frame('P', body))
}

// DescribeTarget selects whether Describe targets a prepared statement or
// a portal.
type DescribeTarget byte

const (
	DescribeStatement DescribeTarget = 'S'
	DescribePortal    DescribeTarget = 'P'
)

// WriteDescribe sends a Describe ('D') message for the unnamed
// statement/portal.
func (c *Conn) WriteDescribe(target DescribeTarget) {
	body := []byte{byte(target)}
	body = appendCString(body, "")
	c.WriteRaw(frame('D', body))
}

// BoundParam is one encoded parameter value: either the bytes to send, or
// IsNull=true to encode the NULL sentinel (wire length -1).
type BoundParam struct {
	Bytes  []byte
	IsNull bool
}

// WriteBind sends a Bind ('B') message for the unnamed portal/statement.
// paramFormats and params must be the same length; resultFormats is
// typically []int16{1} to request binary for every result column.
func (c *Conn) WriteBind(paramFormats []int16, params []BoundParam, resultFormats []int16) {
	size := 16 + 2*len(paramFormats) + 2*len(resultFormats)
	for _, p := range params {
		size += 4 + len(p.Bytes)
	}
	body := make([]byte, 0, size)
	body = appendCString(body, "") // portal
	body = appendCString(body, "") // statement
	body = appendInt16(body, int16(len(paramFormats)))
	for _, f := range paramFormats {
		body = appendInt16(body, f)
	}
	body = appendInt16(body, int16(len(params)))
	for _, p := range params {
		if p.IsNull {
			body = appendInt32(body, -1)
			continue
		}
		body = appendInt32(body, int32(len(p.Bytes)))
		body = append(body, p.Bytes...)
	}
	body = appendInt16(body, int16(len(resultFormats)))
	for _, f := range resultFormats {
		body = appendInt16(body, f)
	}
	c.WriteRaw(frame('B', body))
}

// WriteExecute sends an Execute ('E') message for the unnamed portal.
// maxRows=0 requests an unlimited number of rows.
func (c *Conn) WriteExecute(maxRows int32) {
	body := make([]byte, 0, 8)
	body = appendCString(body, "")
	body = appendInt32(body, maxRows)
	c.WriteRaw(frame('E', body))
}

// WriteSync sends an empty Sync ('S') message.
func (c *Conn) WriteSync() {
	c.WriteRaw(frame('S', nil))
}

// WriteQuery sends a simple-query ('Q') message.
func (c *Conn) WriteQuery(sql string) {
	body := appendCString(nil, sql)
	c.WriteRaw(frame('Q', body))
}

// WriteTerminate sends an empty Terminate ('X') message.
func (c *Conn) WriteTerminate() {
	c.WriteRaw(frame('X', nil))
}
