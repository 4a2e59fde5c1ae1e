package redis

import (
	"context"
	"sync"

	"github.com/nats-redis-io/goresp/resp"
)

// SendRaw exposes the low-level send that every typed Send* wrapper in
// send.go funnels through. It is exported so callers needing a projection this
// package doesn't provide a typed wrapper for — or wanting to compose with
// Deadline — can still reach the core.
func (c *Client) SendRaw(verb string, args []interface{}, raw func(*resp.Reply, error)) {
	c.send(verb, args, raw)
}

// Deadline wraps raw so that, if ctx is cancelled or its deadline passes
// before raw would otherwise fire, raw is invoked once with ctx.Err() and
// the eventual real completion is silently dropped. This is the additive
// per-request deadline feature from §9: passing a nil context, or one that
// can never be cancelled (its Done returns nil), returns raw unchanged —
// Send's behavior is never altered
// for callers who don't opt in.
//
// The underlying Command still runs to completion against the pending
// FIFO regardless of the deadline; only the caller-visible sink fires
// early. A dropped-but-still-in-flight command does not corrupt
// subsequent replies, since FIFO accounting is entirely independent of
// whether anyone is still listening for the result.
func (c *Client) Deadline(ctx context.Context, raw func(*resp.Reply, error)) func(*resp.Reply, error) {
	if ctx == nil || ctx.Done() == nil {
		return raw
	}

	var once sync.Once
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			once.Do(func() { raw(nil, ctx.Err()) })
		case <-done:
		}
	}()

	return func(r *resp.Reply, err error) {
		close(done)
		once.Do(func() { raw(r, err) })
	}
}

// SendTextDeadline is SendText bounded by ctx; see Deadline.
func (c *Client) SendTextDeadline(ctx context.Context, verb string, args []interface{}, sink TextSink) {
	c.send(verb, args, c.Deadline(ctx, func(r *resp.Reply, err error) {
		if err != nil {
			sink("", false, err)
			return
		}
		v, isNil, perr := r.Text(c.charset)
		sink(v, isNil, wrapProjectionErr(perr))
	}))
}
