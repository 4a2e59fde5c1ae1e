package redis_test

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	redis "github.com/nats-redis-io/goresp"
	"github.com/nats-redis-io/goresp/internal/resptest"
	"github.com/nats-redis-io/goresp/resp"
)

// newTestServer starts a loopback resptest server and returns the Config
// needed to dial it.
func newTestServer(t *testing.T) redis.Config {
	t.Helper()
	srv, err := resptest.New()
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	host, portStr, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := redis.DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	return cfg
}

func newConnectedClient(t *testing.T, cfg redis.Config, notifier redis.Notifier) *redis.Client {
	t.Helper()
	c, err := redis.NewClient(cfg, notifier, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	c.Start(func(err error) { done <- err })
	require.NoError(t, <-done)
	return c
}

func newTestClient(t *testing.T, notifier redis.Notifier) *redis.Client {
	t.Helper()
	return newConnectedClient(t, newTestServer(t), notifier)
}

func nopNotifier() redis.Notifier {
	return redis.NotifierFunc(func(string, redis.Notification) {})
}

func TestClientSetGetRoundTrip(t *testing.T) {
	c := newTestClient(t, nopNotifier())

	require.NoError(t, c.Set("k", "v"))
	value, isNil, err := c.Get("k")
	require.NoError(t, err)
	require.False(t, isNil)
	require.Equal(t, "v", value)

	n, err := c.Del("k")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	exists, err := c.Exists("k")
	require.NoError(t, err)
	require.EqualValues(t, 0, exists)
}

func TestClientAppendScenario(t *testing.T) {
	c := newTestClient(t, nopNotifier())

	n, err := c.Append("k", "Hello")
	require.NoError(t, err)
	require.EqualValues(t, 5, n)

	n, err = c.Append("k", " World")
	require.NoError(t, err)
	require.EqualValues(t, 11, n)

	value, _, err := c.Get("k")
	require.NoError(t, err)
	require.Equal(t, "Hello World", value)
}

func TestClientDecrScenario(t *testing.T) {
	c := newTestClient(t, nopNotifier())

	require.NoError(t, c.Set("k", "10"))
	n, err := c.Decr("k")
	require.NoError(t, err)
	require.EqualValues(t, 9, n)

	n, err = c.DecrBy("k", 5)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
}

func TestClientHGetAllTransform(t *testing.T) {
	c := newTestClient(t, nopNotifier())

	_, err := c.HSet("h", "f1", "Hello")
	require.NoError(t, err)
	_, err = c.HSet("h", "f2", "World")
	require.NoError(t, err)

	m, err := c.HGetAll("h")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"f1": "Hello", "f2": "World"}, m)
}

func TestClientInfoTransform(t *testing.T) {
	c := newTestClient(t, nopNotifier())

	sections, _, err := c.Info()
	require.NoError(t, err)
	require.Contains(t, sections, "stats")
	require.Equal(t, "42", sections["stats"]["total_connections_received"])
}

func TestClientSAddIdempotence(t *testing.T) {
	c := newTestClient(t, nopNotifier())

	n, err := c.SAdd("s", "x")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = c.SAdd("s", "x")
	require.NoError(t, err)
	require.EqualValues(t, 0, n)

	members, err := c.SMembers("s")
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "x", members[0].Value)
}

func TestClientSubscribePublish(t *testing.T) {
	cfg := newTestServer(t)

	var mu sync.Mutex
	var got []redis.Notification
	notifier := redis.NotifierFunc(func(address string, n redis.Notification) {
		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, redis.DefaultConfig().Address+".ch", address)
		got = append(got, n)
	})

	sub := newConnectedClient(t, cfg, notifier)
	pub := newConnectedClient(t, cfg, nopNotifier())

	require.NoError(t, sub.Subscribe("ch"))

	_, err := pub.Publish("ch", "hi")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	require.Equal(t, "ok", got[0].Status)
	require.Equal(t, "ch", got[0].Value.Channel)
	require.Equal(t, "hi", string(got[0].Value.Message))
	mu.Unlock()

	require.NoError(t, sub.Unsubscribe("ch"))
}

func TestClientMultiExec(t *testing.T) {
	c := newTestClient(t, nopNotifier())

	tx, err := c.Multi()
	require.NoError(t, err)
	require.NoError(t, tx.Queue("SET", "a", "1"))
	require.NoError(t, tx.Queue("SET", "b", "2"))
	replies, err := tx.Exec()
	require.NoError(t, err)
	require.Len(t, replies, 2)
	for _, r := range replies {
		text, _, err := r.Text(resp.UTF8)
		require.NoError(t, err)
		require.Equal(t, "OK", text)
	}

	v, _, err := c.Get("a")
	require.NoError(t, err)
	require.Equal(t, "1", v)
}

func TestClientPreConnectBuffering(t *testing.T) {
	cfg := newTestServer(t)

	c, err := redis.NewClient(cfg, nopNotifier(), nil)
	require.NoError(t, err)

	const n = 10
	var mu sync.Mutex
	order := make([]int, 0, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		c.SendVoid("SET", []interface{}{"k" + strconv.Itoa(i), strconv.Itoa(i)}, func(err error) {
			require.NoError(t, err)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, n)
	for i := 0; i < n; i++ {
		require.Equal(t, i, order[i])
	}
}
