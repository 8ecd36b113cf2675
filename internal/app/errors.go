package app

import "errors"

var (
	// ErrNotMiddleware is returned by Use for a nil unit.
	ErrNotMiddleware = errors.New("app: middleware must be a function")

	// ErrConnectionAborted is reported when the client goes away before the
	// dispatcher finished. It wraps the cause of the request context.
	ErrConnectionAborted = errors.New("app: connection aborted")
)
