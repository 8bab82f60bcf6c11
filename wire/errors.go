package wire

import "errors"

var (
	// ErrBufferTooSmall is returned by Pack when the destination buffer
	// cannot hold the header plus the packed procedure.
	ErrBufferTooSmall = errors.New("wire: buffer too small")
	// ErrMalformed is returned by Unpack when the packet is truncated or
	// a length field would read past the end of the buffer.
	ErrMalformed = errors.New("wire: malformed packet")
	// ErrUnknownType is returned when an instruction tag is not one of
	// the seven known types.
	ErrUnknownType = errors.New("wire: unknown instruction type")
)
