package redis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscriptionRegistryChannelDispatch(t *testing.T) {
	r := NewSubscriptionRegistry()

	var got []PushMessage
	r.RegisterChannel("ch", func(m PushMessage) { got = append(got, m) })
	r.RegisterChannel("ch", func(m PushMessage) { got = append(got, m) })

	matched := r.DispatchChannel("ch", PushMessage{Channel: "ch", Message: []byte("hi")})
	require.True(t, matched)
	require.Len(t, got, 2)

	matched = r.DispatchChannel("other", PushMessage{Channel: "other"})
	require.False(t, matched)
}

func TestSubscriptionRegistryPatternDispatch(t *testing.T) {
	r := NewSubscriptionRegistry()

	var got PushMessage
	r.RegisterPattern("news.*", func(m PushMessage) { got = m })

	matched := r.DispatchPattern("news.*", PushMessage{Pattern: "news.*", Channel: "news.tech", Message: []byte("x")})
	require.True(t, matched)
	require.Equal(t, "news.tech", got.Channel)
}

func TestSubscriptionRegistryUnregisterChannel(t *testing.T) {
	r := NewSubscriptionRegistry()
	r.RegisterChannel("ch", func(PushMessage) {})

	require.True(t, r.UnregisterChannel("ch"))
	require.False(t, r.UnregisterChannel("ch"))
	require.False(t, r.DispatchChannel("ch", PushMessage{}))
}

func TestSubscriptionRegistryUnregisterAll(t *testing.T) {
	r := NewSubscriptionRegistry()
	r.RegisterChannel("a", func(PushMessage) {})
	r.RegisterChannel("b", func(PushMessage) {})
	r.RegisterPattern("p.*", func(PushMessage) {})

	require.Equal(t, 2, r.ChannelSize())
	require.Equal(t, 1, r.PatternSize())

	removed := r.UnregisterAllChannels()
	require.ElementsMatch(t, []string{"a", "b"}, removed)
	require.Equal(t, 0, r.ChannelSize())

	removedPatterns := r.UnregisterAllPatterns()
	require.Equal(t, []string{"p.*"}, removedPatterns)
	require.Equal(t, 0, r.PatternSize())
}
