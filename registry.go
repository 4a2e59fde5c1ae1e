package redis

import "sync"

// Handler receives one pub/sub push routed to the channel or pattern it was
// registered under.
type Handler func(PushMessage)

// SubscriptionRegistry maps channel names and glob patterns to the handlers
// registered for them. It is grounded on the teacher's chanSet type
// (add/del/missing over a set of Go channels), generalized here to an
// ordered handler list per name since spec.md allows more than one
// registration per channel.
//
// A single registry is shared by a Client and whatever Conn it currently
// owns, but the two sides run on different goroutines: registration
// (Register*/Unregister*) happens on the caller's goroutine inside
// Client.send, while dispatch (Dispatch*) happens on Conn.readLoop. mu
// guards the two maps against exactly that race, mirroring the teacher's
// own csL RWMutex around chanSet (pubsub.go's publish under RLock,
// Subscribe/Unsubscribe under Lock).
type SubscriptionRegistry struct {
	mu       sync.RWMutex
	channels map[string][]Handler
	patterns map[string][]Handler
}

// NewSubscriptionRegistry builds an empty registry.
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		channels: make(map[string][]Handler),
		patterns: make(map[string][]Handler),
	}
}

// RegisterChannel appends h to the handlers for channel. Called before the
// SUBSCRIBE confirmation is received so the first server push is never
// lost.
func (r *SubscriptionRegistry) RegisterChannel(channel string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[channel] = append(r.channels[channel], h)
}

// RegisterPattern appends h to the handlers for pattern.
func (r *SubscriptionRegistry) RegisterPattern(pattern string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns[pattern] = append(r.patterns[pattern], h)
}

// UnregisterChannel removes every handler registered for channel, reporting
// whether the channel was present at all.
func (r *SubscriptionRegistry) UnregisterChannel(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.channels[channel]
	delete(r.channels, channel)
	return ok
}

// UnregisterPattern removes every handler registered for pattern.
func (r *SubscriptionRegistry) UnregisterPattern(pattern string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.patterns[pattern]
	delete(r.patterns, pattern)
	return ok
}

// UnregisterAllChannels clears the channel map entirely, returning the
// names that were removed (used to compute UNSUBSCRIBE's expected-reply
// count for the bulk, argument-less form).
func (r *SubscriptionRegistry) UnregisterAllChannels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	r.channels = make(map[string][]Handler)
	return names
}

// UnregisterAllPatterns clears the pattern map entirely, returning the
// patterns that were removed.
func (r *SubscriptionRegistry) UnregisterAllPatterns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.patterns))
	for name := range r.patterns {
		names = append(names, name)
	}
	r.patterns = make(map[string][]Handler)
	return names
}

// ChannelSize reports how many channels currently have at least one
// handler.
func (r *SubscriptionRegistry) ChannelSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// PatternSize reports how many patterns currently have at least one
// handler.
func (r *SubscriptionRegistry) PatternSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patterns)
}

// DispatchChannel forwards msg to every handler registered for channel,
// reporting whether any handler matched. Handlers run outside the lock, so
// a handler that itself calls back into the registry (e.g. to unsubscribe)
// does not deadlock against the RWMutex it just released.
func (r *SubscriptionRegistry) DispatchChannel(channel string, msg PushMessage) bool {
	r.mu.RLock()
	handlers, ok := r.channels[channel]
	cp := append([]Handler(nil), handlers...)
	r.mu.RUnlock()
	if !ok {
		return false
	}
	for _, h := range cp {
		h(msg)
	}
	return true
}

// DispatchPattern forwards msg to every handler registered for pattern,
// reporting whether any handler matched.
func (r *SubscriptionRegistry) DispatchPattern(pattern string, msg PushMessage) bool {
	r.mu.RLock()
	handlers, ok := r.patterns[pattern]
	cp := append([]Handler(nil), handlers...)
	r.mu.RUnlock()
	if !ok {
		return false
	}
	for _, h := range cp {
		h(msg)
	}
	return true
}
