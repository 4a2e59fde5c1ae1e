package redis

import "strings"

// prepareSubscription applies §4.3's expected-reply accounting and
// SubscriptionRegistry bookkeeping for SUBSCRIBE/PSUBSCRIBE/UNSUBSCRIBE/
// PUNSUBSCRIBE, normalizing the verb to upper-case first per §9's
// case-sensitivity redesign note. Handlers are registered/removed here —
// before the command is ever written — so the first server push can never
// race ahead of its registration.
func (c *Client) prepareSubscription(cmd *Command) error {
	switch strings.ToUpper(cmd.Verb) {
	case "SUBSCRIBE":
		return c.prepareSubscribe(cmd, c.registry.RegisterChannel, c.channelHandler)
	case "PSUBSCRIBE":
		return c.prepareSubscribe(cmd, c.registry.RegisterPattern, c.patternHandler)
	case "UNSUBSCRIBE":
		return c.prepareUnsubscribe(cmd, c.registry.UnregisterChannel, c.registry.UnregisterAllChannels)
	case "PUNSUBSCRIBE":
		return c.prepareUnsubscribe(cmd, c.registry.UnregisterPattern, c.registry.UnregisterAllPatterns)
	default:
		return nil
	}
}

func (c *Client) prepareSubscribe(cmd *Command, register func(string, Handler), handler func() Handler) error {
	if len(cmd.Args) == 0 {
		return &UsageError{Message: cmd.Verb + " requires at least one channel or pattern argument"}
	}
	for _, arg := range cmd.Args {
		name, ok := arg.(string)
		if !ok {
			return &UsageError{Message: cmd.Verb + " arguments must be strings"}
		}
		register(name, handler())
	}
	cmd.ExpectedReplies = uint32(len(cmd.Args))
	return nil
}

func (c *Client) prepareUnsubscribe(cmd *Command, unregisterOne func(string) bool, unregisterAll func() []string) error {
	if len(cmd.Args) > 0 {
		for _, arg := range cmd.Args {
			name, ok := arg.(string)
			if !ok {
				return &UsageError{Message: cmd.Verb + " arguments must be strings"}
			}
			unregisterOne(name)
		}
		cmd.ExpectedReplies = uint32(len(cmd.Args))
		return nil
	}

	removed := unregisterAll()
	cmd.ExpectedReplies = uint32(len(removed))
	return nil
}

// channelHandler builds the Handler a freshly-registered channel
// subscription dispatches through: it forwards the push to the Client's
// configured Notifier, addressed per §6 as "<address>.<channel>".
func (c *Client) channelHandler() Handler {
	return func(msg PushMessage) {
		c.notifier.Notify(c.address+"."+msg.Channel, Notification{Status: "ok", Value: msg})
	}
}

// patternHandler is channelHandler's PSUBSCRIBE counterpart, addressed as
// "<address>.<pattern>".
func (c *Client) patternHandler() Handler {
	return func(msg PushMessage) {
		c.notifier.Notify(c.address+"."+msg.Pattern, Notification{Status: "ok", Value: msg})
	}
}
