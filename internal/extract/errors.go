// SPDX-License-Identifier: MIT

package extract

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrInvalidURL          = errors.New("extract: not a valid video URL")
	ErrVideoUnavailable    = errors.New("extract: video removed, private or restricted")
	ErrNoAudioStream       = errors.New("extract: no audio-only stream available")
	ErrUpstreamBlocked     = errors.New("extract: upstream rejected request as automated traffic")
	ErrUpstreamUnavailable = errors.New("extract: upstream unreachable or transport failure")
)

// Error wraps a sentinel with the operation and backend that produced it.
type Error struct {
	Sentinel  error
	Backend   string
	Operation string
	Err       error // nested lower-level error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %v", e.Backend, e.Operation, e.Sentinel)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Wrap builds an Error carrying the given sentinel for errors.Is checks.
func Wrap(backend, op string, sentinel, err error) error {
	return &Error{Sentinel: sentinel, Backend: backend, Operation: op, Err: err}
}
