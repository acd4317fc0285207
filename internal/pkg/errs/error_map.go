/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrInvalidJSONFormat: {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrUnsupportedEvent:  {Code: ErrUnsupportedEvent, Message: "Unsupported event type."},

	// 2xxx: Session Lifecycle Errors
	ErrMissingUserID:     {Code: ErrMissingUserID, Message: "A user id is required to start a session."},
	ErrAlreadyConnected:  {Code: ErrAlreadyConnected, Message: "This account is already connected."},
	ErrNotConnected:      {Code: ErrNotConnected, Message: "Not connected. Authenticate first."},
	ErrConnectionFailure: {Code: ErrConnectionFailure, Message: "Failed to connect to WhatsApp: %v"},
	ErrSendFailure:       {Code: ErrSendFailure, Message: "Failed to send message: %v"},

	// 3xxx: Store and Security Errors
	ErrStoreUnavailable: {Code: ErrStoreUnavailable, Message: "Chat store is not ready yet."},
	ErrUnauthorized:     {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
