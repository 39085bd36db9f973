package controller

import "errors"

var (
	ErrNoActiveRoom = errors.New("no room is currently selected")
	ErrUnknownRoom  = errors.New("room is not in the registry")
)
