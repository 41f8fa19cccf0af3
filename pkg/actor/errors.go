package actor

import "errors"

var (
	// ErrForbidden is returned when a privileged read presents the wrong secret.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidSignature is returned when an update's tag does not match its body.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidPayload is returned when a signed update is not a valid partial snapshot.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrClosed is returned by operations on an actor that has been shut down.
	ErrClosed = errors.New("actor closed")
)
