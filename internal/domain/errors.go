package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrResolution    = errors.New("market resolution failed")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrSigningFailed = errors.New("signing failed")
	ErrStalledFeed   = errors.New("stalled feed")
	ErrWindowEnded   = errors.New("market window ended")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRateLimited   = errors.New("rate limited")
)
