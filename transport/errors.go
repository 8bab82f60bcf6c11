package transport

import "errors"

var (
	ErrMalformed    = errors.New("transport: malformed packet")
	ErrRemoteError  = errors.New("transport: remote returned error flag")
	ErrNoConnection = errors.New("transport: no connection")
)
