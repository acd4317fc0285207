/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with relay clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that an inbound event payload was not valid JSON.
	ErrInvalidJSONFormat = 1002

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1003

	// ErrUnsupportedEvent indicates that the client sent an event type the relay does not handle.
	ErrUnsupportedEvent = 1004
)

// 2xxx: Session Lifecycle Errors
const (
	// ErrMissingUserID indicates that an auth event arrived without a user id.
	ErrMissingUserID = 2001

	// ErrAlreadyConnected indicates that a live session already exists for the
	// requested user, or that the requesting client already owns a session.
	ErrAlreadyConnected = 2002

	// ErrNotConnected indicates that the client issued a command that requires
	// a prior successful auth.
	ErrNotConnected = 2003

	// ErrConnectionFailure indicates that establishing the protocol connection
	// failed (credential load or handshake error).
	ErrConnectionFailure = 2004

	// ErrSendFailure indicates that forwarding a message to the protocol client failed.
	ErrSendFailure = 2005
)

// 3xxx: Store and Security Errors
const (
	// ErrStoreUnavailable indicates that the user's chat store has not been
	// materialized yet (no successful connection open).
	ErrStoreUnavailable = 3001

	// ErrUnauthorized indicates a missing or invalid relay access token.
	ErrUnauthorized = 3002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
