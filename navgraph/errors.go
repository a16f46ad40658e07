package navgraph

import "errors"

var (
	// ErrFrozen is returned by every mutation once the graph has been frozen.
	ErrFrozen = errors.New("navigation graph is frozen")

	// ErrUnknownNode is returned when a connection references a node id that was never added.
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidCost is returned for negative, NaN or infinite connection costs.
	ErrInvalidCost = errors.New("connection cost must be finite and non-negative")

	// ErrInvalidPosition is returned for node positions with NaN or infinite coordinates.
	ErrInvalidPosition = errors.New("node position must be finite")

	// ErrInvalidGrid is returned by BuildGrid for non-positive dimensions or spacing.
	ErrInvalidGrid = errors.New("invalid grid specification")

	// ErrInvalidRoadmap is returned by BuildRoadmap for empty samples, radius or bounds.
	ErrInvalidRoadmap = errors.New("invalid roadmap specification")

	// ErrUnsupportedFormat is returned by Save and Load for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported snapshot format")
)
