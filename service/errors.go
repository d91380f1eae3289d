package service

import "errors"

var (
	// ErrNotFound reports an array name with no registered array.
	ErrNotFound = errors.New("service: array not found")

	// ErrExists reports a create against a name already in use.
	ErrExists = errors.New("service: array already exists")

	// ErrInvalid reports a malformed request, such as an empty name
	// or a negative length.
	ErrInvalid = errors.New("service: invalid request")
)
