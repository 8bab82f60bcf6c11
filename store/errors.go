package store

import "errors"

var (
	ErrSlotOutOfRange = errors.New("store: slot out of range")
	ErrSlotEmpty      = errors.New("store: slot empty")
	ErrSlotOccupied   = errors.New("store: slot occupied")
)
