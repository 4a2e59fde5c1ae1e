package redis

import (
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nats-redis-io/goresp/resp"
)

type connState uint8

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// bufferedSend is one Command accepted before the connection was ready.
type bufferedSend struct {
	cmd *Command
}

// Client is the public façade: it accepts send(verb, args, expected_return,
// sink) calls, applies subscribe/unsubscribe pre-processing and the
// HGETALL/INFO response transforms, queues requests issued before the
// connection is ready, and drives (re)connect on demand. Exactly one
// Client goroutine ever touches conn/buffer/state at a time: every method
// takes mu, and the only long-running goroutine it starts (Conn's read
// loop) reports back into the Client via callbacks, never by reaching into
// Client state directly without the lock.
type Client struct {
	cfg      Config
	charset  resp.Charset
	address  string
	id       string
	notifier Notifier
	log      *logrus.Entry

	registry *SubscriptionRegistry

	mu         sync.Mutex
	state      connState
	conn       *Conn
	buffer     []bufferedSend
	startSinks []func(error)
}

// NewClient builds a Client from cfg. It does not connect; call Start (or
// just Send) to do that.
func NewClient(cfg Config, notifier Notifier, log *logrus.Entry) (*Client, error) {
	cs, err := cfg.charset()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if notifier == nil {
		// A nil Notifier would panic the read loop on the first pub/sub
		// push; callers that never subscribe should not have to supply one.
		notifier = NotifierFunc(func(string, Notification) {})
	}
	address := cfg.Address
	if address == "" {
		address = DefaultConfig().Address
	}

	c := &Client{
		cfg:      cfg,
		charset:  cs,
		address:  address,
		id:       uuid.NewString(),
		notifier: notifier,
		log:      log,
		registry: NewSubscriptionRegistry(),
	}

	if cfg.Binary {
		c.log.Warn("redis: binary=true is a reserved, no-op flag; preserved for backward compatibility only")
	}

	return c, nil
}

// ID returns the per-Client identifier NewClient generated. It is not part
// of notification addresses or log fields.
func (c *Client) ID() string { return c.id }

// Start eagerly connects, completing sink when the socket is up or with a
// ConnectError.
func (c *Client) Start(sink func(error)) {
	c.mu.Lock()
	switch c.state {
	case stateConnected:
		c.mu.Unlock()
		sink(nil)
		return
	case stateConnecting:
		c.startSinks = append(c.startSinks, sink)
		c.mu.Unlock()
		return
	default:
		c.state = stateConnecting
		c.startSinks = append(c.startSinks, sink)
		c.mu.Unlock()
		go c.connect()
	}
}

// Stop disconnects, completing sink once the socket is closed.
func (c *Client) Stop(sink func(error)) {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = stateDisconnected
	c.mu.Unlock()

	if conn == nil {
		sink(nil)
		return
	}
	sink(conn.Close())
}

// connect dials the server and either promotes Connecting to Connected and
// drains the pre-connect buffer, or fails every waiting sink with a
// ConnectError and falls back to Disconnected.
func (c *Client) connect() {
	nc, err := net.Dial("tcp", c.cfg.addr())

	c.mu.Lock()
	if err != nil {
		c.state = stateDisconnected
		sinks := c.startSinks
		c.startSinks = nil
		buffered := c.buffer
		c.buffer = nil
		c.mu.Unlock()

		cerr := &ConnectError{Err: err}
		c.log.WithError(err).Warn("redis: connect failed")
		for _, s := range sinks {
			s(cerr)
		}
		for _, b := range buffered {
			b.cmd.Sink(nil, cerr)
		}
		return
	}

	conn := NewConn(nc, c.charset, c.registry, c.onConnClosed, c.log)
	c.conn = conn

	// Drain the pre-connect buffer with state left at Connecting, so any
	// Send racing to arrive concurrently still appends to c.buffer instead
	// of writing directly — a direct write jumping ahead of a buffered one
	// issued earlier would break FIFO ordering. The loop re-checks the
	// buffer after unlocking for each round of conn.Send calls, since
	// onConnClosed (invoked synchronously by conn.Send on a write failure)
	// takes c.mu itself and must never find it already held by this
	// goroutine.
	for {
		buffered := c.buffer
		c.buffer = nil
		if len(buffered) == 0 {
			break
		}
		c.mu.Unlock()
		for _, b := range buffered {
			if err := conn.Send(b.cmd); err != nil {
				c.log.WithError(err).Debug("redis: draining buffered command failed")
			}
		}
		c.mu.Lock()
	}

	c.state = stateConnected
	sinks := c.startSinks
	c.startSinks = nil
	c.mu.Unlock()

	for _, s := range sinks {
		s(nil)
	}
}

// onConnClosed is Conn's onClose callback: it clears the current
// connection reference (but deliberately leaves the SubscriptionRegistry
// untouched, per §9's open question) so the next Send reconnects lazily.
func (c *Client) onConnClosed(err error) {
	c.mu.Lock()
	c.conn = nil
	c.state = stateDisconnected
	c.mu.Unlock()
	if err != nil {
		c.log.WithError(err).Warn("redis: connection closed")
	}
}

// send is the single internal entry point every Send* wrapper funnels
// through. It applies subscribe/unsubscribe pre-processing, hands off to
// the live Conn when connected, or buffers (and triggers a connect) when
// not.
func (c *Client) send(verb string, args []interface{}, raw func(*resp.Reply, error)) {
	cmd := newCommand(verb, args, c.charset, raw)

	if err := c.prepareSubscription(cmd); err != nil {
		raw(nil, err)
		return
	}

	if cmd.ExpectedReplies == 0 {
		// A bulk UNSUBSCRIBE/PUNSUBSCRIBE with nothing registered has
		// nothing to confirm; complete it without touching the socket.
		raw(resp.NewInteger(0), nil)
		return
	}

	c.mu.Lock()
	switch c.state {
	case stateConnected:
		conn := c.conn
		c.mu.Unlock()
		if err := conn.Send(cmd); err != nil {
			c.log.WithError(err).Debug("redis: send failed")
		}
		return
	case stateConnecting:
		c.buffer = append(c.buffer, bufferedSend{cmd: cmd})
		c.mu.Unlock()
		return
	default:
		c.state = stateConnecting
		c.buffer = append(c.buffer, bufferedSend{cmd: cmd})
		c.mu.Unlock()
		go c.connect()
		return
	}
}
