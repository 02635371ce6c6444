package service

import "errors"

var (
	// ErrMessageNotFound is returned when a read acknowledgement names a
	// message that does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrForbidden is returned when a connection tries to acknowledge a
	// message it does not own.
	ErrForbidden = errors.New("you don't have permission to act on this message")

	// ErrUserNotFound is returned when a participant projection could not
	// be created because the remote identity lookup failed.
	ErrUserNotFound = errors.New("user not found")

	// ErrConversationNotFound is returned when a conversation lookup by id
	// finds nothing.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrTooManyConnections is returned when the lifecycle controller
	// refuses a new connection because the configured cap is reached.
	ErrTooManyConnections = errors.New("too many connections")

	// ErrShuttingDown is returned when a new connection arrives while the
	// lifecycle controller is draining.
	ErrShuttingDown = errors.New("connection manager is shutting down")

	// ErrReceiverRequired is returned when message.send carries no receiver.
	ErrReceiverRequired = errors.New("receiver ID is required")

	// ErrContentRequired is returned when message.send carries no content.
	ErrContentRequired = errors.New("message content is required")
)
