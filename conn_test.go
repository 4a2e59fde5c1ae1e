package redis

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nats-redis-io/goresp/resp"
)

func newPipeConn(registry *SubscriptionRegistry) (*Conn, net.Conn) {
	client, server := net.Pipe()
	if registry == nil {
		registry = NewSubscriptionRegistry()
	}
	conn := NewConn(client, resp.UTF8, registry, func(error) {}, nil)
	return conn, server
}

func TestConnSendReceivesReply(t *testing.T) {
	conn, server := newPipeConn(nil)
	defer conn.Close()

	go func() {
		buf := make([]byte, 4096)
		n, err := server.Read(buf)
		require.NoError(t, err)
		require.Contains(t, string(buf[:n]), "PING")
		server.Write([]byte("+PONG\r\n"))
	}()

	done := make(chan struct{})
	var got *resp.Reply
	cmd := newCommand("PING", nil, resp.UTF8, func(r *resp.Reply, err error) {
		require.NoError(t, err)
		got = r
		close(done)
	})
	require.NoError(t, conn.Send(cmd))
	<-done

	text, isNil, err := got.Text(resp.UTF8)
	require.NoError(t, err)
	require.False(t, isNil)
	require.Equal(t, "PONG", text)
}

func TestConnPendingFIFOOrdering(t *testing.T) {
	conn, server := newPipeConn(nil)
	defer conn.Close()

	go func() {
		// net.Pipe has no buffering: each Send's write completes only once
		// this side reads it, so read all three requests before replying.
		buf := make([]byte, 8192)
		for i := 0; i < 3; i++ {
			server.Read(buf)
		}
		server.Write([]byte(":1\r\n:2\r\n:3\r\n"))
	}()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 1; i <= 3; i++ {
		i := i
		cmd := newCommand("INCR", []interface{}{"k"}, resp.UTF8, func(r *resp.Reply, err error) {
			require.NoError(t, err)
			v, _ := r.Integer()
			mu.Lock()
			order = append(order, int(v))
			mu.Unlock()
			wg.Done()
		})
		require.NoError(t, conn.Send(cmd))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestConnServerErrorReply(t *testing.T) {
	conn, server := newPipeConn(nil)
	defer conn.Close()

	go func() {
		buf := make([]byte, 4096)
		server.Read(buf)
		server.Write([]byte("-ERR no such key\r\n"))
	}()

	done := make(chan struct{})
	var sinkErr error
	cmd := newCommand("GET", []interface{}{"missing"}, resp.UTF8, func(r *resp.Reply, err error) {
		sinkErr = err
		close(done)
	})
	require.NoError(t, conn.Send(cmd))
	<-done

	var serverErr *ServerError
	require.ErrorAs(t, sinkErr, &serverErr)
	require.Equal(t, "ERR no such key", serverErr.Message)
}

func TestConnPeerCloseDrainsPending(t *testing.T) {
	conn, server := newPipeConn(nil)

	go func() {
		buf := make([]byte, 4096)
		server.Read(buf)
		server.Close()
	}()

	done := make(chan struct{})
	var sinkErr error
	cmd := newCommand("GET", []interface{}{"k"}, resp.UTF8, func(r *resp.Reply, err error) {
		sinkErr = err
		close(done)
	})
	require.NoError(t, conn.Send(cmd))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sink never fired after peer close")
	}

	var closedErr *ConnectionClosedError
	require.ErrorAs(t, sinkErr, &closedErr)

	// A second Send after the peer close must fail immediately and still
	// invoke its sink exactly once, even though it was never enqueued.
	done2 := make(chan struct{})
	var secondErr error
	cmd2 := newCommand("GET", []interface{}{"k2"}, resp.UTF8, func(r *resp.Reply, err error) {
		secondErr = err
		close(done2)
	})
	err := conn.Send(cmd2)
	require.Error(t, err)
	<-done2
	require.Error(t, secondErr)
}

func TestConnPushRoutesToRegistry(t *testing.T) {
	registry := NewSubscriptionRegistry()
	got := make(chan PushMessage, 1)
	registry.RegisterChannel("news", func(m PushMessage) { got <- m })

	conn, server := newPipeConn(registry)
	defer conn.Close()

	go func() {
		server.Write([]byte("*3\r\n$7\r\nmessage\r\n$4\r\nnews\r\n$5\r\nhello\r\n"))
	}()

	select {
	case msg := <-got:
		require.Equal(t, "news", msg.Channel)
		require.Equal(t, "hello", string(msg.Message))
	case <-time.After(time.Second):
		t.Fatal("push never dispatched")
	}
}

// TestConnRegistryNotClearedOnClose covers §9's open question: the
// SubscriptionRegistry outlives a peer close, since Conn.closeWithError
// never touches it and the Client that owns both objects reuses the same
// registry across reconnects.
func TestConnRegistryNotClearedOnClose(t *testing.T) {
	registry := NewSubscriptionRegistry()
	registry.RegisterChannel("news", func(PushMessage) {})

	_, server := newPipeConn(registry)
	server.Close()

	// Give the read loop a moment to observe the close and run
	// closeWithError, which must never touch the registry.
	time.Sleep(20 * time.Millisecond)

	require.Equal(t, 1, registry.ChannelSize())
}
