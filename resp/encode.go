package resp

import (
	"fmt"
	"strconv"
)

// Encode renders r back to its wire form. Used by tests that need a
// round-trip (parse(Encode(r)) == r) and by the loopback test server to
// script canned replies.
func (r *Reply) Encode() []byte {
	buf := make([]byte, 0, 32)
	return r.appendTo(buf)
}

func (r *Reply) appendTo(buf []byte) []byte {
	switch r.Kind {
	case SimpleString:
		buf = append(buf, '+')
		buf = append(buf, r.Str...)
		return append(buf, '\r', '\n')

	case Error:
		buf = append(buf, '-')
		buf = append(buf, r.Str...)
		return append(buf, '\r', '\n')

	case Integer:
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, r.Int, 10)
		return append(buf, '\r', '\n')

	case Bulk:
		if r.BulkNull {
			return append(buf, '$', '-', '1', '\r', '\n')
		}
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(r.Bulk)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, r.Bulk...)
		return append(buf, '\r', '\n')

	case Array:
		if r.ArrayNull {
			return append(buf, '*', '-', '1', '\r', '\n')
		}
		buf = append(buf, '*')
		buf = strconv.AppendInt(buf, int64(len(r.Array)), 10)
		buf = append(buf, '\r', '\n')
		for _, child := range r.Array {
			buf = child.appendTo(buf)
		}
		return buf

	default:
		return buf
	}
}

// EncodeCommand renders a command invocation (verb plus arguments) as the
// RESP array-of-bulk-strings form every request uses. Arguments render via
// argToString; numeric arguments render base-10. There is no charset
// parameter: outgoing arguments are already Go strings/[]byte/numbers,
// and RESP bulk strings are written as raw bytes regardless of encoding —
// Charset only matters when projecting an incoming Reply back to a Go
// string (see Reply.Text), which happens on decode, not on encode.
func EncodeCommand(verb string, args []interface{}) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(len(args)+1), 10)
	buf = append(buf, '\r', '\n')
	buf = appendBulkString(buf, verb)

	for _, arg := range args {
		s, err := argToString(arg)
		if err != nil {
			return nil, err
		}
		buf = appendBulkString(buf, s)
	}
	return buf, nil
}

func appendBulkString(buf []byte, s string) []byte {
	buf = append(buf, '$')
	buf = strconv.AppendInt(buf, int64(len(s)), 10)
	buf = append(buf, '\r', '\n')
	buf = append(buf, s...)
	return append(buf, '\r', '\n')
}

// argToString renders a command argument. Numeric types render base-10,
// booleans render as "1"/"0" and nil as the empty string; anything else
// falls back to fmt.Sprint, mirroring how the RESP writers
// in the pack (e.g. redcon's WriteAny) treat unrecognized argument types.
func argToString(arg interface{}) (string, error) {
	switch v := arg.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}
