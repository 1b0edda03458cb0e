/*
Package errs provides the application error taxonomy and its numeric error codes.

Every failure that crosses a package boundary is a *CustomError carrying a code, a Kind
(validation, auth, conflict, not found, upload, persistence), a user-facing message and
the HTTP status used when the error is rendered by the functions service.
*/
package errs

// 1xxx: Request and input validation errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	ErrInvalidEmail       = 1101
	ErrInvalidPassword    = 1102
	ErrNameRequired       = 1103
	ErrMessageEmpty       = 1104
	ErrRoomIDRequired     = 1105
	ErrSenderIDRequired   = 1106
	ErrInvalidMessageType = 1107

	// ErrRoomCodeInvalid indicates a join code that is not 6 base62 characters.
	ErrRoomCodeInvalid = 1108

	// ErrMediaTooLarge indicates an empty attachment or one above the size limit.
	ErrMediaTooLarge = 1109
)

// 2xxx: Room errors
const (
	// ErrRoomCodeExists indicates that a freshly minted join code collided with an existing room.
	ErrRoomCodeExists = 2102

	// ErrRoomNotFound indicates that the room does not exist.
	ErrRoomNotFound = 2103

	// ErrRoomAccessDenied indicates a wrong room password or an unknown join code.
	ErrRoomAccessDenied = 2105
)

// 3xxx: User, session and security errors
const (
	ErrInvalidCredentials = 3101
	ErrUnauthorized       = 3102
	ErrUserAlreadyExists  = 3103
	ErrUserNotFound       = 3104
)

// 4xxx: Media upload errors
const (
	// ErrUploadFailed indicates that the blob store rejected or failed the upload.
	ErrUploadFailed = 4001

	// ErrUploadUnauthenticated indicates a media upload attempted without a signed-in caller.
	ErrUploadUnauthenticated = 4002

	// ErrMediaNotFound indicates a file URL with no stored object behind it.
	ErrMediaNotFound = 4004
)

// 5xxx: Internal and backend errors
const (
	// ErrUnknown represents an unclassified, general internal error.
	ErrUnknown = 5000

	// ErrPersistence indicates that the backend failed to read or write rows.
	ErrPersistence = 5001

	// ErrBackendUnavailable indicates that the backend could not be reached.
	ErrBackendUnavailable = 5002
)
