package libgopro

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTarget is returned when a command URL cannot be built or parsed
	ErrMalformedTarget = errors.New("malformed target")
	// ErrConnection is returned when a request could not be completed
	ErrConnection = errors.New("connection failure")
	// ErrShortResponse is returned when a response is too short for the requested field
	ErrShortResponse = errors.New("short response")
	// ErrNoSession is returned when the camera answered the session request without a token
	ErrNoSession = errors.New("camera returned no session token")
	// ErrNotLoaded is returned by commands that need a session before Login succeeded
	ErrNotLoaded = errors.New("camera login required")
)

func shortResponse(need, got int) error {
	return fmt.Errorf("%w: need %d bytes, got %d", ErrShortResponse, need, got)
}
