package resp

import (
	"strconv"

	"github.com/pkg/errors"
)

// ErrProtocol marks a fatal, unrecoverable parse failure: malformed length,
// a missing terminator after a declared length, or non-digit bytes in a
// length/integer field. The connection owning the Decoder must be closed.
var ErrProtocol = errors.New("resp: protocol error")

// errShort is an internal sentinel meaning "not enough bytes yet"; it never
// escapes Decoder.Feed.
var errShort = errors.New("resp: short buffer")

// Decoder is an incremental RESP parser. It is restartable across partial
// reads: if Feed ends mid-frame the unconsumed bytes are retained and
// combined with the next Feed call. The zero value is ready to use.
type Decoder struct {
	buf []byte
}

// Feed appends p to the decoder's internal buffer and returns every whole
// top-level Reply that can be parsed out of it. A nil/empty result with a
// nil error means more bytes are needed before the next Reply is complete.
func (d *Decoder) Feed(p []byte) ([]*Reply, error) {
	if len(p) > 0 {
		d.buf = append(d.buf, p...)
	}

	var out []*Reply
	for {
		reply, n, err := parseFrame(d.buf)
		if err == errShort {
			break
		}
		if err != nil {
			return out, err
		}
		d.buf = d.buf[n:]
		out = append(out, reply)
	}

	// Avoid retaining the whole backing array forever once it has been
	// fully drained.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return out, nil
}

// parseFrame parses one complete top-level frame from b, returning the
// reply, the number of bytes it consumed, and either nil, errShort (need
// more bytes), or ErrProtocol.
func parseFrame(b []byte) (*Reply, int, error) {
	if len(b) == 0 {
		return nil, 0, errShort
	}

	switch b[0] {
	case '+':
		line, n, err := readLine(b[1:])
		if err != nil {
			return nil, 0, err
		}
		return NewSimpleString(string(line)), n + 1, nil

	case '-':
		line, n, err := readLine(b[1:])
		if err != nil {
			return nil, 0, err
		}
		return NewError(string(line)), n + 1, nil

	case ':':
		line, n, err := readLine(b[1:])
		if err != nil {
			return nil, 0, err
		}
		i, perr := parseASCIIInt(line)
		if perr != nil {
			return nil, 0, errors.Wrap(ErrProtocol, "invalid integer frame")
		}
		return NewInteger(i), n + 1, nil

	case '$':
		line, n, err := readLine(b[1:])
		if err != nil {
			return nil, 0, err
		}
		length, perr := parseASCIIInt(line)
		if perr != nil {
			return nil, 0, errors.Wrap(ErrProtocol, "invalid bulk length")
		}
		if length == -1 {
			return NewBulkNull(), n + 1, nil
		}
		if length < -1 {
			return nil, 0, errors.Wrap(ErrProtocol, "negative bulk length")
		}
		head := n + 1
		total := head + int(length) + 2
		if len(b) < total {
			return nil, 0, errShort
		}
		if b[head+int(length)] != '\r' || b[head+int(length)+1] != '\n' {
			return nil, 0, errors.Wrap(ErrProtocol, "missing terminator after bulk payload")
		}
		payload := make([]byte, length)
		copy(payload, b[head:head+int(length)])
		return NewBulk(payload), total, nil

	case '*':
		line, n, err := readLine(b[1:])
		if err != nil {
			return nil, 0, err
		}
		count, perr := parseASCIIInt(line)
		if perr != nil {
			return nil, 0, errors.Wrap(ErrProtocol, "invalid array length")
		}
		if count == -1 {
			return NewArrayNull(), n + 1, nil
		}
		if count < -1 {
			return nil, 0, errors.Wrap(ErrProtocol, "negative array length")
		}
		pos := n + 1
		children := make([]*Reply, 0, count)
		for i := 0; i < int(count); i++ {
			child, cn, err := parseFrame(b[pos:])
			if err != nil {
				// Propagates errShort (whole array incomplete) and
				// ErrProtocol (fatal) alike; array state is not retained
				// separately from the raw buffer, so the next Feed call
				// simply reparses from the unconsumed prefix.
				return nil, 0, err
			}
			children = append(children, child)
			pos += cn
		}
		return NewArray(children), pos, nil

	default:
		return nil, 0, errors.Wrapf(ErrProtocol, "unknown type byte %q", b[0])
	}
}

// readLine returns the bytes before the first CRLF in b and the number of
// bytes consumed including the CRLF. errShort if no CRLF is present yet.
func readLine(b []byte) ([]byte, int, error) {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return b[:i], i + 2, nil
		}
	}
	return nil, 0, errShort
}

// parseASCIIInt parses a base-10 signed integer, rejecting anything that
// is not plain ASCII digits (with an optional leading '+' or '-', as
// strconv.ParseInt accepts).
func parseASCIIInt(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, errors.New("resp: empty integer field")
	}
	for _, c := range b {
		if c >= 0x80 {
			return 0, errors.New("resp: non-ASCII digit")
		}
	}
	return strconv.ParseInt(string(b), 10, 64)
}
