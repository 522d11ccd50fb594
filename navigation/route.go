// Package navigation keeps browser-style history entries and the viewer's
// top-level route consistent.
//
// Rules, applied synchronously on every route change while enabled:
//
//	route -> landing, entry.app == true   => Back()
//	route -> app,     entry.app == false  => Push({app: true})
//
// A pop (back/forward) commits app when the new entry has app=true and
// landing otherwise, including when the entry carries no state.
package navigation

import (
	"encoding/json"
	"fmt"
)

// Route is the top-level UI mode.
type Route string

const (
	RouteLanding Route = "landing"
	RouteApp     Route = "app"
)

// ParseRoute validates a route name.
func ParseRoute(value string) (Route, error) {
	switch Route(value) {
	case RouteLanding, RouteApp:
		return Route(value), nil
	default:
		return "", fmt.Errorf("navigation: unknown route %q", value)
	}
}

// Entry is the payload attached to a history entry.
type Entry struct {
	App bool `json:"app"`
}

// Route maps the entry to the route it represents.
func (e Entry) Route() Route {
	if e.App {
		return RouteApp
	}
	return RouteLanding
}

// MarshalEntry encodes e the way it is stored on a history stack.
func MarshalEntry(e Entry) ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEntry decodes a stored payload. Empty or null payloads decode to
// the zero Entry (landing).
func UnmarshalEntry(payload []byte) (Entry, error) {
	var entry Entry
	if len(payload) == 0 || string(payload) == "null" {
		return entry, nil
	}
	if err := json.Unmarshal(payload, &entry); err != nil {
		return Entry{}, fmt.Errorf("navigation: decode entry: %w", err)
	}
	return entry, nil
}
