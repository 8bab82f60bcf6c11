package runtime

import "errors"

var (
	// ErrTooManyConcurrent is returned when MaxConcurrent workers are
	// already running.
	ErrTooManyConcurrent = errors.New("runtime: maximum number of concurrent procedures reached")

	// ErrProcEmpty is returned when the requested slot has no instructions.
	ErrProcEmpty = errors.New("runtime: procedure has no instructions")

	// ErrNotRunning is returned by Stop when slot has no running worker.
	ErrNotRunning = errors.New("runtime: procedure not running")
)
