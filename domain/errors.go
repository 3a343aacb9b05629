package domain

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrThreadNotFound    = errors.New("thread not found")
	ErrPodNotFound       = errors.New("pod could not be resolved")
	ErrStaleSession      = errors.New("session is stale, resume required")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrSendFailed        = errors.New("message send failed")
	ErrUnknownRegion     = errors.New("unknown region")
	ErrThreadInactive    = errors.New("thread is not the active thread of its session")
)
