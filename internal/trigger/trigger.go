// Package trigger turns committed store writes into handler invocations.
//
// A write to a path matching a registered pattern becomes an Event carrying a
// delivery-unique ID.  Transports may deliver an Event more than once; the ID
// stays the same across redeliveries so handlers can deduplicate on it.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Event is one on-write invocation.
type Event struct {
	ID     string            `json:"id"`
	Path   string            `json:"path"`
	Data   json.RawMessage   `json:"data,omitempty"`
	Params map[string]string `json:"-"`
}

// Empty reports whether the event carries nothing to process: no id, no
// data, or a JSON null / empty object.  Such invocations are spurious.
func (e Event) Empty() bool {
	if e.ID == "" {
		return true
	}
	d := bytes.TrimSpace(e.Data)
	return len(d) == 0 || bytes.Equal(d, []byte("null")) || bytes.Equal(d, []byte("{}"))
}

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, ev Event) error

type route struct {
	pattern  string
	segments []string
	handler  HandlerFunc
}

// Router maps path patterns such as "/queue/{uid}" to handlers.
type Router struct {
	routes []route
}

// NewRouter returns an empty router.
func NewRouter() *Router { return &Router{} }

// Handle registers h for pattern.  Segments written as {name} match any
// single path segment and are exposed through Event.Params.
func (r *Router) Handle(pattern string, h HandlerFunc) {
	r.routes = append(r.routes, route{
		pattern:  pattern,
		segments: strings.Split(strings.Trim(pattern, "/"), "/"),
		handler:  h,
	})
}

// Accepts reports whether any route matches path.  It lets the router act
// as the filter of a store change feed.
func (r *Router) Accepts(path string) bool {
	_, _, ok := r.match(path)
	return ok
}

// Dispatch runs the handler matching ev.Path.
func (r *Router) Dispatch(ctx context.Context, ev Event) error {
	rt, params, ok := r.match(ev.Path)
	if !ok {
		return fmt.Errorf("trigger: no route for %q", ev.Path)
	}
	ev.Params = params
	return rt.handler(ctx, ev)
}

func (r *Router) match(path string) (route, map[string]string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, rt := range r.routes {
		if len(rt.segments) != len(parts) {
			continue
		}
		params := map[string]string{}
		ok := true
		for i, seg := range rt.segments {
			if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
				if parts[i] == "" {
					ok = false
					break
				}
				params[seg[1:len(seg)-1]] = parts[i]
				continue
			}
			if seg != parts[i] {
				ok = false
				break
			}
		}
		if ok {
			return rt, params, true
		}
	}
	return route{}, nil, false
}

// SanitizeID makes an event id safe to use as a single path segment.
func SanitizeID(id string) string {
	return strings.ReplaceAll(id, "/", "-")
}
