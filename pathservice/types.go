package pathservice

import "agent-navigator/navgraph"

// RequestID identifies a submitted query. Ids are unique and strictly
// increasing for the lifetime of a Service; zero is never assigned.
type RequestID uint64

// Query asks for a route between two world positions.
type Query struct {
	Start navgraph.Vec3 `json:"start"`
	Goal  navgraph.Vec3 `json:"goal"`
}

// Request is a query paired with the id it was submitted under.
type Request struct {
	ID RequestID
	Query
}

// Result is the answer to one request.
type Result struct {
	ID        RequestID       `json:"id"`
	Waypoints []navgraph.Vec3 `json:"waypoints"` // nil when no path exists
	Cost      float64         `json:"cost"`
	Expanded  int             `json:"expanded"`
}

// Found reports whether a path was found.
func (r Result) Found() bool {
	return r.Waypoints != nil
}
