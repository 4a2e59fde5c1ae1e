package redis

import "github.com/nats-redis-io/goresp/resp"

// This file is the mechanical per-verb facade spec.md §1 calls "deliberately
// out of scope": one small blocking wrapper per Redis verb, built entirely
// on top of the Send* entry points in send.go and SendRaw. None of it touches the
// wire, the pending FIFO, or the SubscriptionRegistry directly.

func (c *Client) awaitText(verb string, args ...interface{}) (value string, isNil bool, err error) {
	done := make(chan struct{})
	c.SendText(verb, args, func(v string, n bool, e error) {
		value, isNil, err = v, n, e
		close(done)
	})
	<-done
	return
}

func (c *Client) awaitInteger(verb string, args ...interface{}) (value int64, err error) {
	done := make(chan struct{})
	c.SendInteger(verb, args, func(v int64, e error) {
		value, err = v, e
		close(done)
	})
	<-done
	return
}

func (c *Client) awaitVoid(verb string, args ...interface{}) error {
	done := make(chan struct{})
	var outErr error
	c.SendVoid(verb, args, func(e error) {
		outErr = e
		close(done)
	})
	<-done
	return outErr
}

func (c *Client) awaitList(verb string, args ...interface{}) (values []resp.NullString, err error) {
	done := make(chan struct{})
	c.SendList(verb, args, func(v []resp.NullString, e error) {
		values, err = v, e
		close(done)
	})
	<-done
	return
}

func (c *Client) awaitMap(verb string, args ...interface{}) (values map[string]string, err error) {
	done := make(chan struct{})
	c.SendMap(verb, args, func(v map[string]string, e error) {
		values, err = v, e
		close(done)
	})
	<-done
	return
}

// Ping issues PING and returns the server's reply text (normally "PONG").
func (c *Client) Ping() (string, error) {
	v, _, err := c.awaitText("PING")
	return v, err
}

// Get issues GET. isNil is true when the key does not exist.
func (c *Client) Get(key string) (value string, isNil bool, err error) {
	return c.awaitText("GET", key)
}

// Set issues SET key value.
func (c *Client) Set(key, value string) error {
	return c.awaitVoid("SET", key, value)
}

// Del issues DEL over one or more keys, returning the number removed.
func (c *Client) Del(keys ...string) (int64, error) {
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return c.awaitInteger("DEL", args...)
}

// Exists issues EXISTS over one or more keys.
func (c *Client) Exists(keys ...string) (int64, error) {
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return c.awaitInteger("EXISTS", args...)
}

// Append issues APPEND key value, returning the resulting string length.
func (c *Client) Append(key, value string) (int64, error) {
	return c.awaitInteger("APPEND", key, value)
}

// Incr issues INCR key.
func (c *Client) Incr(key string) (int64, error) { return c.awaitInteger("INCR", key) }

// Decr issues DECR key.
func (c *Client) Decr(key string) (int64, error) { return c.awaitInteger("DECR", key) }

// IncrBy issues INCRBY key delta.
func (c *Client) IncrBy(key string, delta int64) (int64, error) {
	return c.awaitInteger("INCRBY", key, delta)
}

// DecrBy issues DECRBY key delta.
func (c *Client) DecrBy(key string, delta int64) (int64, error) {
	return c.awaitInteger("DECRBY", key, delta)
}

// HSet issues HSET key field value, returning 1 if field is new.
func (c *Client) HSet(key, field, value string) (int64, error) {
	return c.awaitInteger("HSET", key, field, value)
}

// HGet issues HGET key field.
func (c *Client) HGet(key, field string) (value string, isNil bool, err error) {
	return c.awaitText("HGET", key, field)
}

// HGetAll issues HGETALL key; the array-of-pairs reply is projected to a
// map by SendMap itself, with no separate transform step needed.
func (c *Client) HGetAll(key string) (map[string]string, error) {
	return c.awaitMap("HGETALL", key)
}

// SAdd issues SADD key member..., returning the count of members added.
func (c *Client) SAdd(key string, members ...string) (int64, error) {
	args := make([]interface{}, 0, len(members)+1)
	args = append(args, key)
	for _, m := range members {
		args = append(args, m)
	}
	return c.awaitInteger("SADD", args...)
}

// SMembers issues SMEMBERS key.
func (c *Client) SMembers(key string) ([]resp.NullString, error) {
	return c.awaitList("SMEMBERS", key)
}

// LPush issues LPUSH key value..., returning the resulting list length.
func (c *Client) LPush(key string, values ...string) (int64, error) {
	args := make([]interface{}, 0, len(values)+1)
	args = append(args, key)
	for _, v := range values {
		args = append(args, v)
	}
	return c.awaitInteger("LPUSH", args...)
}

// LRange issues LRANGE key start stop.
func (c *Client) LRange(key string, start, stop int64) ([]resp.NullString, error) {
	return c.awaitList("LRANGE", key, start, stop)
}

// Publish issues PUBLISH channel message, returning the receiver count.
func (c *Client) Publish(channel, message string) (int64, error) {
	return c.awaitInteger("PUBLISH", channel, message)
}

// Subscribe issues SUBSCRIBE over one or more channels. Pushes arrive
// through the Client's configured Notifier, not through this call's
// return value, per §6.
func (c *Client) Subscribe(channels ...string) error {
	args := make([]interface{}, len(channels))
	for i, ch := range channels {
		args[i] = ch
	}
	return c.awaitVoid("SUBSCRIBE", args...)
}

// Unsubscribe issues UNSUBSCRIBE, with no arguments removing every channel
// subscription.
func (c *Client) Unsubscribe(channels ...string) error {
	args := make([]interface{}, len(channels))
	for i, ch := range channels {
		args[i] = ch
	}
	return c.awaitVoid("UNSUBSCRIBE", args...)
}

// Info issues INFO and parses its two-level section shape.
func (c *Client) Info() (sections map[string]map[string]string, top map[string]string, err error) {
	done := make(chan struct{})
	c.SendInfo("INFO", nil, func(s map[string]map[string]string, t map[string]string, e error) {
		sections, top, err = s, t, e
		close(done)
	})
	<-done
	return
}

// Multi begins a transaction block, returning a MultiCmd used to queue
// further commands before Exec.
func (c *Client) Multi() (*MultiCmd, error) {
	if err := c.awaitVoid("MULTI"); err != nil {
		return nil, err
	}
	return &MultiCmd{client: c}, nil
}

// MultiCmd accumulates commands queued inside a MULTI/EXEC transaction.
// Each Queue call is itself pipelined like any other Send — the
// transaction's atomicity is the server's guarantee, not this client's.
type MultiCmd struct {
	client *Client
}

// Queue issues verb/args inside the open transaction, discarding the
// server's "QUEUED" acknowledgement.
func (m *MultiCmd) Queue(verb string, args ...interface{}) error {
	return m.client.awaitVoid(verb, args...)
}

// Exec issues EXEC, returning the array of per-command replies.
func (m *MultiCmd) Exec() ([]*resp.Reply, error) {
	done := make(chan struct{})
	var out []*resp.Reply
	var outErr error
	m.client.SendRaw("EXEC", nil, func(r *resp.Reply, err error) {
		if err != nil {
			outErr = err
		} else if r.Kind == resp.Array {
			out = r.Array
		}
		close(done)
	})
	<-done
	return out, outErr
}
