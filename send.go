package redis

import (
	"strings"

	"github.com/nats-redis-io/goresp/resp"
)

// TextSink receives a text projection. isNil reports a null bulk; it is
// not an error.
type TextSink func(value string, isNil bool, err error)

// IntegerSink receives an integer projection.
type IntegerSink func(value int64, err error)

// VoidSink receives completion with no meaningful value, e.g. for commands
// whose reply the caller only cares about as success/failure.
type VoidSink func(err error)

// ListSink receives a list projection, preserving RESP nulls per element.
type ListSink func(values []resp.NullString, err error)

// MapSink receives a map projection (alternating key/value array, or an
// HGETALL-shaped reply).
type MapSink func(values map[string]string, err error)

// InfoSink receives INFO's two-level {section -> {key -> value}} shape
// plus any key/value pairs that appeared before the first section header.
type InfoSink func(sections map[string]map[string]string, top map[string]string, err error)

// SendText is the send_text entry point of §6: it projects the reply to
// text.
func (c *Client) SendText(verb string, args []interface{}, sink TextSink) {
	c.send(verb, args, func(r *resp.Reply, err error) {
		if err != nil {
			sink("", false, err)
			return
		}
		v, isNil, perr := r.Text(c.charset)
		sink(v, isNil, wrapProjectionErr(perr))
	})
}

// SendInteger is the send_integer entry point of §6.
func (c *Client) SendInteger(verb string, args []interface{}, sink IntegerSink) {
	c.send(verb, args, func(r *resp.Reply, err error) {
		if err != nil {
			sink(0, err)
			return
		}
		v, perr := r.Integer()
		sink(v, wrapProjectionErr(perr))
	})
}

// SendVoid is the send_void entry point of §6: the reply is discarded once
// it is known not to be an error.
func (c *Client) SendVoid(verb string, args []interface{}, sink VoidSink) {
	c.send(verb, args, func(r *resp.Reply, err error) {
		sink(err)
	})
}

// SendList is the send_list entry point of §6: it projects an Array reply
// element-wise to text.
func (c *Client) SendList(verb string, args []interface{}, sink ListSink) {
	c.send(verb, args, func(r *resp.Reply, err error) {
		if err != nil {
			sink(nil, err)
			return
		}
		v, perr := r.List(c.charset)
		sink(v, wrapProjectionErr(perr))
	})
}

// SendMap is the send_map entry point of §6: it projects an even-length
// Array reply to a flat map, which is exactly the shape HGETALL's raw
// reply already has — no further transform is needed for that verb beyond
// choosing SendMap to dispatch it.
func (c *Client) SendMap(verb string, args []interface{}, sink MapSink) {
	c.send(verb, args, func(r *resp.Reply, err error) {
		if err != nil {
			sink(nil, err)
			return
		}
		v, perr := r.Map(c.charset)
		sink(v, wrapProjectionErr(perr))
	})
}

// SendInfo is a core extension beyond §6's five canonical entry points,
// added because INFO's two-level shape does not fit any of them (see
// DESIGN.md). It parses the single Bulk text block per §4.4's rules.
func (c *Client) SendInfo(verb string, args []interface{}, sink InfoSink) {
	c.send(verb, args, func(r *resp.Reply, err error) {
		if err != nil {
			sink(nil, nil, err)
			return
		}
		text, isNil, perr := r.Text(c.charset)
		if perr != nil {
			sink(nil, nil, wrapProjectionErr(perr))
			return
		}
		if isNil {
			sink(nil, nil, nil)
			return
		}
		sections, top := parseInfo(text)
		sink(sections, top, nil)
	})
}

// parseInfo implements §4.4's INFO parse rules: split on CRLF or LF; an
// empty line terminates the current section; a line starting with '#'
// opens a new, lower-cased section; any other line splits on the first ':'
// into key/value, landing in the current section or, if there is none
// yet, among the top-level orphans.
func parseInfo(text string) (sections map[string]map[string]string, top map[string]string) {
	sections = make(map[string]map[string]string)
	top = make(map[string]string)

	var current string
	for _, line := range splitLines(text) {
		if line == "" {
			current = ""
			continue
		}
		if strings.HasPrefix(line, "#") {
			current = strings.ToLower(strings.TrimSpace(line[1:]))
			if _, ok := sections[current]; !ok {
				sections[current] = make(map[string]string)
			}
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if current == "" {
			top[key] = value
			continue
		}
		sections[current][key] = value
	}
	return sections, top
}

// splitLines splits on both "\r\n" and bare "\n" per §4.4.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}
