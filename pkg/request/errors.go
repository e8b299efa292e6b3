package request

import "errors"

var (
	// ErrInternalServer is returned to the client when an unexpected error occurs.
	ErrInternalServer = errors.New("internal server error")

	// ErrUnauthorized is returned when the request carries no valid credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTooManyRequests is returned when a client exceeds the rate limit.
	ErrTooManyRequests = errors.New("too many requests")
)
