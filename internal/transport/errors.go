package transport

import "errors"

var (
	ErrAuthenticationFailed = errors.New("authentication rejected at connect")
	ErrAlreadyClosed        = errors.New("transport already closed")
)
