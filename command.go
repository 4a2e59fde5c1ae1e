package redis

import "github.com/nats-redis-io/goresp/resp"

// Command is an outbound request: the verb, its argument vector, the
// Client's configured charset (carried along; argument encoding does not
// use it), how many replies it expects, and the sink that is invoked
// exactly once with the final outcome. Conn operates purely at this level;
// projection (§6's five Send* shapes plus the SendInfo extension) and response-shape transforms (§4.4) are entirely
// the Sink closure's business — §9's "eliminate the runtime token" means
// Command itself carries no return-kind/transform tag for Conn to switch
// on.
type Command struct {
	Verb            string
	Args            []interface{}
	Charset         resp.Charset
	ExpectedReplies uint32

	// Sink receives the raw terminal reply and/or error exactly once.
	// For multi-reply commands (SUBSCRIBE and friends) it receives the
	// final confirmation reply, per §4.3.
	Sink func(*resp.Reply, error)

	// remaining tracks expected-reply accounting; owned exclusively by
	// whichever Conn currently holds this Command in its pending FIFO.
	remaining uint32
	last      *resp.Reply
}

// newCommand builds a Command with ExpectedReplies defaulted to 1.
func newCommand(verb string, args []interface{}, cs resp.Charset, sink func(*resp.Reply, error)) *Command {
	return &Command{
		Verb:            verb,
		Args:            args,
		Charset:         cs,
		ExpectedReplies: 1,
		Sink:            sink,
	}
}
