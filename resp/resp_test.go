package resp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplyTextProjection(t *testing.T) {
	s, isNil, err := NewBulk([]byte("hi")).Text(UTF8)
	require.NoError(t, err)
	require.False(t, isNil)
	require.Equal(t, "hi", s)

	_, isNil, err = NewBulkNull().Text(UTF8)
	require.NoError(t, err)
	require.True(t, isNil)

	s, _, err = NewInteger(42).Text(UTF8)
	require.NoError(t, err)
	require.Equal(t, "42", s)

	_, _, err = NewError("ERR x").Text(UTF8)
	require.ErrorIs(t, err, ErrProjection)
}

func TestReplyIntegerProjection(t *testing.T) {
	i, err := NewInteger(7).Integer()
	require.NoError(t, err)
	require.EqualValues(t, 7, i)

	i, err = NewBulk([]byte("123")).Integer()
	require.NoError(t, err)
	require.EqualValues(t, 123, i)

	_, err = NewBulk([]byte("nope")).Integer()
	require.ErrorIs(t, err, ErrProjection)
}

func TestReplyListProjection(t *testing.T) {
	r := NewArray([]*Reply{NewBulk([]byte("a")), NewBulkNull(), NewBulk([]byte("b"))})
	list, err := r.List(UTF8)
	require.NoError(t, err)
	require.Equal(t, []NullString{{"a", true}, {"", false}, {"b", true}}, list)

	_, err = NewInteger(1).List(UTF8)
	require.ErrorIs(t, err, ErrProjection)
}

func TestReplyMapProjection(t *testing.T) {
	r := NewArray([]*Reply{
		NewBulk([]byte("f1")), NewBulk([]byte("Hello")),
		NewBulk([]byte("f2")), NewBulk([]byte("World")),
	})
	m, err := r.Map(UTF8)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"f1": "Hello", "f2": "World"}, m)

	odd := NewArray([]*Reply{NewBulk([]byte("f1"))})
	_, err = odd.Map(UTF8)
	require.ErrorIs(t, err, ErrProjection)
}

func TestCharsetByName(t *testing.T) {
	cs, err := CharsetByName("")
	require.NoError(t, err)
	require.Equal(t, UTF8, cs)

	cs, err = CharsetByName("ascii")
	require.NoError(t, err)
	require.Equal(t, ASCII, cs)

	_, err = CharsetByName("shift-jis")
	require.Error(t, err)
}

func TestEncodeCommand(t *testing.T) {
	buf, err := EncodeCommand("SET", []interface{}{"k", 10})
	require.NoError(t, err)
	require.Equal(t, "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$2\r\n10\r\n", string(buf))
}
