package redis

import (
	"bytes"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nats-redis-io/goresp/resp"
)

const readBufferSize = conservativeMSS

// conservativeMSS mirrors the teacher's read-buffer sizing rationale: IPv6
// minimum MTU minus IP/TCP headers, a safe chunk size that avoids extra
// syscalls without over-allocating.
const conservativeMSS = 1208

// Conn owns one TCP socket, the pending FIFO of in-flight Commands, and a
// reference to the SubscriptionRegistry pub/sub pushes are routed through.
// All reply dispatch — every Command.Sink invocation with a decoded reply,
// and every SubscriptionRegistry.Handler invocation — happens on the single
// goroutine started by Conn.readLoop. Sinks that Send or Close complete
// with an error (a failed write, a Send after the connection closed, Close
// draining the FIFO) run on the goroutine that called Send or Close, so
// they can overlap with a sink running on readLoop.
type Conn struct {
	net      net.Conn
	charset  resp.Charset
	decoder  resp.Decoder
	registry *SubscriptionRegistry
	onClose  func(error)
	log      *logrus.Entry

	// writeMu serializes Send calls: a command must be appended to
	// pending before its bytes leave the socket, and two concurrent
	// writers must not interleave their byte streams.
	writeMu sync.Mutex

	// pendingMu guards pending and closed, which are read by both the
	// writer (Send, Close) and the single reader goroutine.
	pendingMu sync.Mutex
	pending   []*Command
	closed    bool
}

// NewConn wraps an already-dialed net.Conn and starts its read loop.
func NewConn(nc net.Conn, charset resp.Charset, registry *SubscriptionRegistry, onClose func(error), log *logrus.Entry) *Conn {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Conn{
		net:      nc,
		charset:  charset,
		registry: registry,
		onClose:  onClose,
		log:      log,
	}
	go c.readLoop()
	return c
}

// Send serializes cmd to RESP and writes it to the socket, appending it to
// the pending FIFO first so that any possible reply finds it already
// enqueued (§4.2's ordering contract).
func (c *Conn) Send(cmd *Command) error {
	buf, err := resp.EncodeCommand(cmd.Verb, cmd.Args)
	if err != nil {
		return &UsageError{Message: err.Error()}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.enqueue(cmd); err != nil {
		// cmd was never appended to pending, so nothing will ever drain
		// it; the caller's sink must still fire exactly once.
		cmd.Sink(nil, err)
		return err
	}

	if _, err := c.net.Write(buf); err != nil {
		closed := &ConnectionClosedError{Err: err}
		c.closeWithError(closed) // drains pending, including cmd, invoking its sink
		return closed
	}
	return nil
}

func (c *Conn) enqueue(cmd *Command) error {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.closed {
		return &ConnectionClosedError{}
	}
	cmd.remaining = cmd.ExpectedReplies
	if cmd.remaining == 0 {
		cmd.remaining = 1
	}
	c.pending = append(c.pending, cmd)
	return nil
}

// Close closes the socket gracefully, completing every remaining pending
// entry with a connection-closed error.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.closeWithError(&ConnectionClosedError{})
	return c.net.Close()
}

// closeWithError drains the pending FIFO in order and marks the connection
// closed. It must be called with writeMu held (or from the reader
// goroutine, which never races a writer past this point because enqueue
// checks closed under pendingMu).
func (c *Conn) closeWithError(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = nil
	alreadyClosed := c.closed
	c.closed = true
	c.pendingMu.Unlock()

	if alreadyClosed {
		return
	}

	for _, cmd := range pending {
		cmd.Sink(nil, err)
	}
	if c.onClose != nil {
		c.onClose(err)
	}
}

// readLoop is the connection's single dispatch goroutine: it feeds
// incoming bytes to the decoder and routes every decoded Reply either to
// the SubscriptionRegistry (pub/sub pushes) or to the head of the pending
// FIFO (everything else).
func (c *Conn) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.net.Read(buf)
		if n > 0 {
			replies, ferr := c.decoder.Feed(buf[:n])
			for _, r := range replies {
				c.dispatch(r)
			}
			if ferr != nil {
				c.closeWithError(&ConnectionClosedError{Err: &ProtocolError{Err: ferr}})
				c.net.Close()
				return
			}
		}
		if err != nil {
			c.closeWithError(&ConnectionClosedError{Err: err})
			return
		}
	}
}

// dispatch routes a single decoded Reply per §4.2.
func (c *Conn) dispatch(r *resp.Reply) {
	if push, ok := asPush(r); ok {
		c.dispatchPush(push)
		return
	}

	c.pendingMu.Lock()
	if len(c.pending) == 0 {
		c.pendingMu.Unlock()
		c.log.WithField("reply", r.Kind.String()).Debug("redis: reply with no pending command, discarding")
		return
	}
	head := c.pending[0]
	head.last = r
	head.remaining--
	done := head.remaining == 0
	if done {
		c.pending = c.pending[1:]
	}
	c.pendingMu.Unlock()

	if !done {
		return
	}

	if head.last.Kind == resp.Error {
		head.Sink(nil, &ServerError{Message: head.last.Str})
		return
	}
	if isSubscribeConfirmation(head.last) {
		c.log.WithField("verb", head.Verb).Debug("redis: subscription command confirmed")
	}
	head.Sink(head.last, nil)
}

// asPush recognizes a pub/sub push: a non-null Array whose first element
// text-projects to "message" (length 3) or "pmessage" (length 4).
func asPush(r *resp.Reply) (PushMessage, bool) {
	if r.Kind != resp.Array || r.ArrayNull || len(r.Array) == 0 {
		return PushMessage{}, false
	}
	head := r.Array[0]
	if head.Kind != resp.Bulk && head.Kind != resp.SimpleString {
		return PushMessage{}, false
	}
	text, isNil, err := head.Text(resp.UTF8)
	if err != nil || isNil {
		return PushMessage{}, false
	}

	switch {
	case text == "message" && len(r.Array) == 3:
		channel, _, _ := r.Array[1].Text(resp.UTF8)
		return PushMessage{Channel: channel, Message: bulkBytes(r.Array[2])}, true
	case text == "pmessage" && len(r.Array) == 4:
		pattern, _, _ := r.Array[1].Text(resp.UTF8)
		channel, _, _ := r.Array[2].Text(resp.UTF8)
		return PushMessage{Pattern: pattern, Channel: channel, Message: bulkBytes(r.Array[3])}, true
	default:
		return PushMessage{}, false
	}
}

func bulkBytes(r *resp.Reply) []byte {
	if r.Kind == resp.Bulk && !r.BulkNull {
		return r.Bulk
	}
	return []byte(r.Str)
}

func (c *Conn) dispatchPush(msg PushMessage) {
	var matched bool
	if msg.Pattern != "" {
		matched = c.registry.DispatchPattern(msg.Pattern, msg)
	} else {
		matched = c.registry.DispatchChannel(msg.Channel, msg)
	}
	if !matched {
		c.log.WithFields(logrus.Fields{
			"channel": msg.Channel,
			"pattern": msg.Pattern,
		}).Debug("redis: pub/sub push with no registered handler, discarding")
	}
}

// isSubscribeConfirmation reports whether r is the simple two-or-three
// element array form some servers use to confirm SUBSCRIBE/UNSUBSCRIBE,
// used only to decide log verbosity; accounting itself is driven purely by
// ExpectedReplies.
func isSubscribeConfirmation(r *resp.Reply) bool {
	if r.Kind != resp.Array || r.ArrayNull || len(r.Array) == 0 {
		return false
	}
	head := r.Array[0]
	text, isNil, err := head.Text(resp.UTF8)
	if err != nil || isNil {
		return false
	}
	return bytes.Equal([]byte(text), []byte("subscribe")) ||
		bytes.Equal([]byte(text), []byte("unsubscribe")) ||
		bytes.Equal([]byte(text), []byte("psubscribe")) ||
		bytes.Equal([]byte(text), []byte("punsubscribe"))
}
