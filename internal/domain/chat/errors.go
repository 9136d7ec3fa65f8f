package chat

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("user is not authenticated")
	ErrForbidden       = errors.New("agent is not available to this user")
	ErrEmptySession    = errors.New("session has no stored messages")
	ErrEmptyMessage    = errors.New("message text is empty")
	ErrTurnInFlight    = errors.New("a message is already being sent")
	ErrInvalidID       = errors.New("invalid identifier")
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// ValidateID rejects identifiers that are empty or carry characters outside
// [a-zA-Z0-9_-].
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
