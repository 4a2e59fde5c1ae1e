// Package resp implements the RESP wire protocol: the reply type, its
// text/integer/list/map projections, and an incremental decoder that can be
// fed bytes as they arrive off a socket.
package resp

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind tags the five RESP reply shapes.
type Kind uint8

const (
	SimpleString Kind = iota
	Error
	Integer
	Bulk
	Array
)

func (k Kind) String() string {
	switch k {
	case SimpleString:
		return "simple string"
	case Error:
		return "error"
	case Integer:
		return "integer"
	case Bulk:
		return "bulk"
	case Array:
		return "array"
	default:
		return "unknown"
	}
}

// ErrProjection is returned when a Reply's shape is incompatible with the
// projection a caller asked for.
var ErrProjection = errors.New("resp: reply cannot be projected to the requested shape")

// Reply is a decoded server reply: a tagged union over the five RESP types.
// Bulk and Array distinguish a present-but-empty value from a null one via
// BulkNull/ArrayNull; Str carries SimpleString and Error text verbatim.
type Reply struct {
	Kind Kind

	Str string // SimpleString / Error text
	Int int64  // Integer value

	Bulk     []byte // Bulk payload; meaningless if BulkNull
	BulkNull bool

	Array     []*Reply // Array elements; meaningless if ArrayNull
	ArrayNull bool
}

// NewSimpleString builds a SimpleString reply.
func NewSimpleString(s string) *Reply { return &Reply{Kind: SimpleString, Str: s} }

// NewError builds an Error reply carrying the server's verbatim message.
func NewError(s string) *Reply { return &Reply{Kind: Error, Str: s} }

// NewInteger builds an Integer reply.
func NewInteger(i int64) *Reply { return &Reply{Kind: Integer, Int: i} }

// NewBulk builds a non-null Bulk reply.
func NewBulk(b []byte) *Reply { return &Reply{Kind: Bulk, Bulk: b} }

// NewBulkNull builds the null Bulk reply ($-1).
func NewBulkNull() *Reply { return &Reply{Kind: Bulk, BulkNull: true} }

// NewArray builds a non-null Array reply.
func NewArray(items []*Reply) *Reply { return &Reply{Kind: Array, Array: items} }

// NewArrayNull builds the null Array reply (*-1).
func NewArrayNull() *Reply { return &Reply{Kind: Array, ArrayNull: true} }

// IsNil reports whether this reply is a null bulk or null array.
func (r *Reply) IsNil() bool {
	return (r.Kind == Bulk && r.BulkNull) || (r.Kind == Array && r.ArrayNull)
}

// Charset decodes bulk/simple-string payloads into Go strings. The zero
// value is not usable; use UTF8.
type Charset struct {
	name   string
	decode func([]byte) (string, error)
}

func (c Charset) String() string { return c.name }

// UTF8 treats bulk payloads as UTF-8/ASCII text, which is how Go strings
// are natively represented; this is the default per the configuration
// contract.
var UTF8 = Charset{name: "UTF-8", decode: func(b []byte) (string, error) { return string(b), nil }}

// ASCII validates that a payload contains only 7-bit bytes before
// converting it, rejecting anything outside that range.
var ASCII = Charset{name: "ASCII", decode: func(b []byte) (string, error) {
	for _, c := range b {
		if c > 0x7f {
			return "", errors.Errorf("resp: byte %#x is not valid ASCII", c)
		}
	}
	return string(b), nil
}}

// CharsetByName resolves one of the charsets this package understands,
// defaulting to UTF8 for an empty name.
func CharsetByName(name string) (Charset, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "UTF-8", "UTF8":
		return UTF8, nil
	case "ASCII", "US-ASCII":
		return ASCII, nil
	default:
		return Charset{}, errors.Errorf("resp: unsupported encoding %q", name)
	}
}

// Text projects the reply to a string using cs. SimpleString and Bulk decode
// their bytes; Integer renders base-10. A null bulk projects to ("", true,
// nil) — the second value reports nilness, not an error.
func (r *Reply) Text(cs Charset) (value string, isNil bool, err error) {
	switch r.Kind {
	case SimpleString:
		return r.Str, false, nil
	case Integer:
		return strconv.FormatInt(r.Int, 10), false, nil
	case Bulk:
		if r.BulkNull {
			return "", true, nil
		}
		s, err := cs.decode(r.Bulk)
		return s, false, err
	case Error:
		return "", false, errors.Wrap(ErrProjection, "cannot project an Error reply to text")
	default:
		return "", false, errors.Wrapf(ErrProjection, "cannot project a %s reply to text", r.Kind)
	}
}

// Integer projects the reply to an int64. Integer passes through;
// numeric-looking Bulk/SimpleString values parse as base-10.
func (r *Reply) Integer() (int64, error) {
	switch r.Kind {
	case Integer:
		return r.Int, nil
	case SimpleString:
		i, err := strconv.ParseInt(strings.TrimSpace(r.Str), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrProjection, "simple string %q is not an integer", r.Str)
		}
		return i, nil
	case Bulk:
		if r.BulkNull {
			return 0, errors.Wrap(ErrProjection, "cannot project a null bulk reply to integer")
		}
		i, err := strconv.ParseInt(strings.TrimSpace(string(r.Bulk)), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrProjection, "bulk %q is not an integer", r.Bulk)
		}
		return i, nil
	default:
		return 0, errors.Wrapf(ErrProjection, "cannot project a %s reply to integer", r.Kind)
	}
}

// List projects an Array reply to a slice of strings via Text, preserving
// nulls as ("", true) entries by way of NullString.
func (r *Reply) List(cs Charset) ([]NullString, error) {
	if r.Kind != Array {
		return nil, errors.Wrapf(ErrProjection, "cannot project a %s reply to list", r.Kind)
	}
	if r.ArrayNull {
		return nil, nil
	}
	out := make([]NullString, len(r.Array))
	for i, el := range r.Array {
		v, isNil, err := el.Text(cs)
		if err != nil {
			return nil, errors.Wrapf(err, "list element %d", i)
		}
		out[i] = NullString{Value: v, Valid: !isNil}
	}
	return out, nil
}

// Map projects an even-length Array reply to alternating key/value pairs,
// both rendered via Text. An odd-length array is a projection error.
func (r *Reply) Map(cs Charset) (map[string]string, error) {
	if r.Kind != Array {
		return nil, errors.Wrapf(ErrProjection, "cannot project a %s reply to map", r.Kind)
	}
	if r.ArrayNull {
		return nil, nil
	}
	if len(r.Array)%2 != 0 {
		return nil, errors.Wrap(ErrProjection, "array has an odd number of elements")
	}
	out := make(map[string]string, len(r.Array)/2)
	for i := 0; i < len(r.Array); i += 2 {
		k, _, err := r.Array[i].Text(cs)
		if err != nil {
			return nil, errors.Wrapf(err, "map key %d", i/2)
		}
		v, isNil, err := r.Array[i+1].Text(cs)
		if err != nil {
			return nil, errors.Wrapf(err, "map value %d", i/2)
		}
		if isNil {
			v = ""
		}
		out[k] = v
	}
	return out, nil
}

// NullString is a text projection that preserves RESP null.
type NullString struct {
	Value string
	Valid bool
}
