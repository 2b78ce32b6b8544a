package service

import "errors"

// Error taxonomy of the realtime API. Failures surface to the
// initiating connection only; benign races (already-gone targets,
// stale ids) resolve as silent no-ops instead of errors.
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTargetUnavailable = errors.New("target unavailable")
)
