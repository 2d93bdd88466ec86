package errors

import "errors"

var (
	ErrNotFound = errors.New("intent not found")

	ErrTerminal = errors.New("intent is in a terminal state")

	ErrInvalidTransition = errors.New("invalid intent status transition")

	ErrRetryCountDecrease = errors.New("retry count cannot decrease")

	ErrIntentBusy = errors.New("intent is being synchronized")

	ErrInvalidID = errors.New("invalid intent ID format")
)
