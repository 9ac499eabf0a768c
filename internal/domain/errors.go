package domain

import "errors"

// Domain errors
var (
	ErrPlayerNotFound   = errors.New("player not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrQueueEmpty       = errors.New("matchmaking queue is empty")
	ErrAlreadyInSession = errors.New("player is already in an active session")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInternalError    = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound) || errors.Is(err, ErrSessionNotFound)
}
