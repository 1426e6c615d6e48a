/*
Package errs provides custom error types and application-level error code constants.

These codes identify business and system errors both inside the server and in
HTTP responses sent to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON is malformed.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained data after the JSON value.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Direct Message Errors
const (
	// ErrMessageNotFound indicates that the referenced message does not exist.
	ErrMessageNotFound = 2101

	// ErrNotMessageReceiver indicates that only the receiver may perform the action.
	ErrNotMessageReceiver = 2102

	// ErrReceiverNotFound indicates that the addressed receiver does not exist.
	ErrReceiverNotFound = 2103

	// ErrMessageContentTooLong indicates that the message content exceeded the length limit.
	ErrMessageContentTooLong = 2201

	// ErrInvalidMimeType indicates an avatar upload with a disallowed MIME type.
	ErrInvalidMimeType = 2301

	// ErrFileSizeTooLarge indicates an avatar upload over the size limit.
	ErrFileSizeTooLarge = 2302
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates a missing, invalid, or expired credential.
	ErrUnauthorized = 3001

	// ErrInvalidCredentials indicates a wrong username/password pair.
	ErrInvalidCredentials = 3002

	// ErrUsernameTaken indicates a registration with an existing username.
	ErrUsernameTaken = 3003

	// ErrEmailTaken indicates a registration with an existing email.
	ErrEmailTaken = 3004

	// ErrInvalidUsername indicates a username outside the allowed shape.
	ErrInvalidUsername = 3005

	// ErrInvalidPassword indicates a password outside the allowed length.
	ErrInvalidPassword = 3006

	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = 3007
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStorageUnavailable indicates object storage is not configured or failed.
	ErrStorageUnavailable = 5001
)
