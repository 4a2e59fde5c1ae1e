// Package resptest is a tiny loopback RESP server used by this module's own
// tests — the "embedded test server harness" spec.md names as an external
// collaborator, grounded on the teacher's in-process PubSubConn fixtures
// and on tidwall/redcon's embedded-server pattern. It implements just
// enough of the real command surface (strings, hashes, sets, lists,
// pub/sub, MULTI/EXEC, INFO) to drive the scenarios in spec.md §8.
package resptest

import (
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/nats-redis-io/goresp/resp"
)

// Server is a minimal, in-memory Redis-alike listening on a loopback port.
type Server struct {
	ln net.Listener

	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
	lists   map[string][]string

	channels map[string]map[*client]struct{}
	patterns map[string]map[*client]struct{}
}

type client struct {
	conn     net.Conn
	writeMu  sync.Mutex
	channels map[string]bool
	patterns map[string]bool

	inTx     bool
	queued   [][]string
}

// New starts a server on an OS-assigned loopback port.
func New() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{
		ln:       ln,
		strings:  map[string]string{},
		hashes:   map[string]map[string]string{},
		sets:     map[string]map[string]struct{}{},
		lists:    map[string][]string{},
		channels: map[string]map[*client]struct{}{},
		patterns: map[string]map[*client]struct{}{},
	}
	go s.acceptLoop()
	return s, nil
}

// Addr returns the "host:port" the server is listening on.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Close stops accepting connections.
func (s *Server) Close() error { return s.ln.Close() }

func (s *Server) acceptLoop() {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}
		c := &client{conn: nc, channels: map[string]bool{}, patterns: map[string]bool{}}
		go s.serve(c)
	}
}

func (s *Server) serve(c *client) {
	defer s.disconnect(c)

	var dec resp.Decoder
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			replies, ferr := dec.Feed(buf[:n])
			for _, r := range replies {
				s.handle(c, r)
			}
			if ferr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) disconnect(c *client) {
	c.conn.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range c.channels {
		delete(s.channels[ch], c)
	}
	for p := range c.patterns {
		delete(s.patterns[p], c)
	}
}

func (c *client) write(r *resp.Reply) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.Write(r.Encode())
}

func (s *Server) handle(c *client, r *resp.Reply) {
	if r.Kind != resp.Array || r.ArrayNull || len(r.Array) == 0 {
		c.write(resp.NewError("ERR expected a command array"))
		return
	}
	args := make([]string, len(r.Array))
	for i, el := range r.Array {
		text, _, err := el.Text(resp.UTF8)
		if err != nil {
			c.write(resp.NewError("ERR invalid argument"))
			return
		}
		args[i] = text
	}

	verb := strings.ToUpper(args[0])

	if c.inTx && verb != "EXEC" && verb != "DISCARD" && verb != "MULTI" {
		c.queued = append(c.queued, args)
		c.write(resp.NewSimpleString("QUEUED"))
		return
	}

	c.write(s.exec(c, verb, args[1:]))
}

func (s *Server) exec(c *client, verb string, args []string) *resp.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch verb {
	case "PING":
		return resp.NewSimpleString("PONG")

	case "MULTI":
		c.inTx = true
		c.queued = nil
		return resp.NewSimpleString("OK")

	case "DISCARD":
		c.inTx = false
		c.queued = nil
		return resp.NewSimpleString("OK")

	case "EXEC":
		queued := c.queued
		c.inTx = false
		c.queued = nil
		replies := make([]*resp.Reply, len(queued))
		for i, cmd := range queued {
			replies[i] = s.execLocked(c, strings.ToUpper(cmd[0]), cmd[1:])
		}
		return resp.NewArray(replies)

	case "SET":
		if len(args) < 2 {
			return resp.NewError("ERR wrong number of arguments for 'set' command")
		}
		s.strings[args[0]] = args[1]
		return resp.NewSimpleString("OK")

	case "GET":
		v, ok := s.strings[args[0]]
		if !ok {
			return resp.NewBulkNull()
		}
		return resp.NewBulk([]byte(v))

	case "APPEND":
		s.strings[args[0]] += args[1]
		return resp.NewInteger(int64(len(s.strings[args[0]])))

	case "DEL":
		var n int64
		for _, k := range args {
			if _, ok := s.strings[k]; ok {
				delete(s.strings, k)
				n++
			}
			if _, ok := s.hashes[k]; ok {
				delete(s.hashes, k)
				n++
			}
			if _, ok := s.sets[k]; ok {
				delete(s.sets, k)
				n++
			}
			if _, ok := s.lists[k]; ok {
				delete(s.lists, k)
				n++
			}
		}
		return resp.NewInteger(n)

	case "EXISTS":
		var n int64
		for _, k := range args {
			if s.exists(k) {
				n++
			}
		}
		return resp.NewInteger(n)

	case "INCR":
		return s.incrBy(args[0], 1)
	case "DECR":
		return s.incrBy(args[0], -1)
	case "INCRBY":
		delta, _ := strconv.ParseInt(args[1], 10, 64)
		return s.incrBy(args[0], delta)
	case "DECRBY":
		delta, _ := strconv.ParseInt(args[1], 10, 64)
		return s.incrBy(args[0], -delta)

	case "HSET":
		h, ok := s.hashes[args[0]]
		if !ok {
			h = map[string]string{}
			s.hashes[args[0]] = h
		}
		_, existed := h[args[1]]
		h[args[1]] = args[2]
		if existed {
			return resp.NewInteger(0)
		}
		return resp.NewInteger(1)

	case "HGET":
		h, ok := s.hashes[args[0]]
		if !ok {
			return resp.NewBulkNull()
		}
		v, ok := h[args[1]]
		if !ok {
			return resp.NewBulkNull()
		}
		return resp.NewBulk([]byte(v))

	case "HGETALL":
		h := s.hashes[args[0]]
		items := make([]*resp.Reply, 0, len(h)*2)
		for k, v := range h {
			items = append(items, resp.NewBulk([]byte(k)), resp.NewBulk([]byte(v)))
		}
		return resp.NewArray(items)

	case "SADD":
		set, ok := s.sets[args[0]]
		if !ok {
			set = map[string]struct{}{}
			s.sets[args[0]] = set
		}
		var n int64
		for _, m := range args[1:] {
			if _, ok := set[m]; !ok {
				set[m] = struct{}{}
				n++
			}
		}
		return resp.NewInteger(n)

	case "SMEMBERS":
		set := s.sets[args[0]]
		items := make([]*resp.Reply, 0, len(set))
		for m := range set {
			items = append(items, resp.NewBulk([]byte(m)))
		}
		return resp.NewArray(items)

	case "LPUSH":
		list := s.lists[args[0]]
		for _, v := range args[1:] {
			list = append([]string{v}, list...)
		}
		s.lists[args[0]] = list
		return resp.NewInteger(int64(len(list)))

	case "LRANGE":
		list := s.lists[args[0]]
		start, _ := strconv.Atoi(args[1])
		stop, _ := strconv.Atoi(args[2])
		start, stop = normalizeRange(start, stop, len(list))
		items := make([]*resp.Reply, 0)
		for i := start; i <= stop && i < len(list); i++ {
			items = append(items, resp.NewBulk([]byte(list[i])))
		}
		return resp.NewArray(items)

	case "SUBSCRIBE":
		return s.subscribeLocked(c, args, false)
	case "PSUBSCRIBE":
		return s.subscribeLocked(c, args, true)
	case "UNSUBSCRIBE":
		return s.unsubscribeLocked(c, args, false)
	case "PUNSUBSCRIBE":
		return s.unsubscribeLocked(c, args, true)

	case "PUBLISH":
		return s.publishLocked(args[0], args[1])

	case "INFO":
		return resp.NewBulk([]byte(defaultInfo))

	default:
		return resp.NewError("ERR unknown command '" + verb + "'")
	}
}

// execLocked runs exec from inside EXEC, which already holds s.mu: it
// releases s.mu for the nested exec call (which takes it again) and
// re-acquires it before returning.
func (s *Server) execLocked(c *client, verb string, args []string) *resp.Reply {
	s.mu.Unlock()
	defer s.mu.Lock()
	return s.exec(c, verb, args)
}

func (s *Server) exists(key string) bool {
	if _, ok := s.strings[key]; ok {
		return true
	}
	if _, ok := s.hashes[key]; ok {
		return true
	}
	if _, ok := s.sets[key]; ok {
		return true
	}
	if _, ok := s.lists[key]; ok {
		return true
	}
	return false
}

func (s *Server) incrBy(key string, delta int64) *resp.Reply {
	v, _ := strconv.ParseInt(s.strings[key], 10, 64)
	v += delta
	s.strings[key] = strconv.FormatInt(v, 10)
	return resp.NewInteger(v)
}

func normalizeRange(start, stop, length int) (int, int) {
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	return start, stop
}

// subscribeLocked registers c for each name and replies once per name with
// the real-Redis confirmation shape, called with s.mu held.
func (s *Server) subscribeLocked(c *client, names []string, pattern bool) *resp.Reply {
	verb := "subscribe"
	index := s.channels
	set := c.channels
	if pattern {
		verb = "psubscribe"
		index = s.patterns
		set = c.patterns
	}

	var last *resp.Reply
	for i, name := range names {
		if index[name] == nil {
			index[name] = map[*client]struct{}{}
		}
		index[name][c] = struct{}{}
		set[name] = true
		last = resp.NewArray([]*resp.Reply{
			resp.NewBulk([]byte(verb)),
			resp.NewBulk([]byte(name)),
			resp.NewInteger(int64(len(set))),
		})
		if i != len(names)-1 {
			c.write(last)
		}
	}
	return last
}

func (s *Server) unsubscribeLocked(c *client, names []string, pattern bool) *resp.Reply {
	verb := "unsubscribe"
	index := s.channels
	set := c.channels
	if pattern {
		verb = "punsubscribe"
		index = s.patterns
		set = c.patterns
	}

	if len(names) == 0 {
		for name := range set {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return resp.NewArray([]*resp.Reply{
			resp.NewBulk([]byte(verb)),
			resp.NewBulkNull(),
			resp.NewInteger(0),
		})
	}

	var last *resp.Reply
	for i, name := range names {
		delete(index[name], c)
		delete(set, name)
		last = resp.NewArray([]*resp.Reply{
			resp.NewBulk([]byte(verb)),
			resp.NewBulk([]byte(name)),
			resp.NewInteger(int64(len(set))),
		})
		if i != len(names)-1 {
			c.write(last)
		}
	}
	return last
}

func (s *Server) publishLocked(channel, message string) *resp.Reply {
	var n int64
	for subscriber := range s.channels[channel] {
		subscriber.write(resp.NewArray([]*resp.Reply{
			resp.NewBulk([]byte("message")),
			resp.NewBulk([]byte(channel)),
			resp.NewBulk([]byte(message)),
		}))
		n++
	}
	for pattern, subscribers := range s.patterns {
		if !globMatch(pattern, channel) {
			continue
		}
		for subscriber := range subscribers {
			subscriber.write(resp.NewArray([]*resp.Reply{
				resp.NewBulk([]byte("pmessage")),
				resp.NewBulk([]byte(pattern)),
				resp.NewBulk([]byte(channel)),
				resp.NewBulk([]byte(message)),
			}))
			n++
		}
	}
	return resp.NewInteger(n)
}

// globMatch implements the small subset of glob syntax ("*") PSUBSCRIBE
// needs for this test server; it is not a general pattern matcher.
func globMatch(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(s, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == s
}

const defaultInfo = "# Server\r\nredis_version:7.0.0-test\r\n\r\n# Stats\r\ntotal_connections_received:42\r\ntotal_commands_processed:1000\r\n"
