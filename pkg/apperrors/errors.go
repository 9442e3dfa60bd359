package apperrors

import "errors"

var (
	ErrNotConnected            = errors.New("session not connected")
	ErrQueryFailed             = errors.New("query failed")
	ErrNoHealthySession        = errors.New("no healthy session in pool")
	ErrPoolNotFound            = errors.New("pool not found")
	ErrRouterFailure           = errors.New("router failure")
	ErrUnsupportedDriver       = errors.New("unsupported driver type")
	ErrInvalidPoolName         = errors.New("invalid pool name")
	ErrConnectionManagerClosed = errors.New("connection manager closed")
)
