// Package redis is a non-blocking client for a Redis-style RESP server:
// every request is submitted with a callback sink instead of returning a
// value directly, so a single Client can keep many requests pipelined on
// one connection. See package resp for the underlying wire protocol, and
// DESIGN.md for how this module's pieces are grounded.
package redis
