package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when a lookup has no result.
	ErrNotFound = errors.New("not found")

	// ErrUnknownLayer is returned for a layer name that is not configured.
	ErrUnknownLayer = errors.New("unknown layer")

	// ErrMarkerNotFound is returned when a marker id is not currently displayed.
	ErrMarkerNotFound = errors.New("marker not found")
)
