package apperrors

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrNoActiveTimer  = errors.New("no active timer")
	ErrServiceStopped = errors.New("focus service is not running")
	ErrInvalidSession = errors.New("invalid focus session")
)
