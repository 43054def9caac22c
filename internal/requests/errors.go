package requests

import "errors"

var (
	// ErrMissingSession is returned when a record has no originating session
	ErrMissingSession = errors.New("requests: session id is required")

	// ErrMissingCaller is returned when the caller id is empty
	ErrMissingCaller = errors.New("requests: caller id is required")

	// ErrRecordNotFound is returned when a record is not found
	ErrRecordNotFound = errors.New("requests: record not found")
)
