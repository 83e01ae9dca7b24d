package protocol

import "errors"

var (
	ErrMalformed    = errors.New("protocol: malformed message")
	ErrMissingType  = errors.New("protocol: missing message type")
	ErrReservedType = errors.New("protocol: reserved message type")
)
