// Package apperrors defines the stable error codes surfaced by the
// service layer. Handlers translate codes to HTTP statuses; services
// never pick status codes themselves.
package apperrors

import "errors"

type Code string

const (
	CodeNodeNotFound    Code = "ERROR_NODE_NOT_FOUND"
	CodeParentNotFound  Code = "ERROR_PARENT_NOT_FOUND"
	CodeUserNotFound    Code = "ERROR_USER_NOT_FOUND"
	CodeLinkNotFound    Code = "ERROR_LINK_NOT_FOUND"
	CodeShareNotFound   Code = "ERROR_SHARE_NOT_FOUND"
	CodeSessionNotFound Code = "ERROR_SESSION_NOT_FOUND"

	CodeInvalidParent      Code = "ERROR_INVALID_PARENT"
	CodeInvalidNodeType    Code = "ERROR_INVALID_NODE_TYPE"
	CodeInvalidUserStatus  Code = "ERROR_INVALID_USER_STATUS"
	CodeFileExpired        Code = "ERROR_FILE_EXPIRED"
	CodeInvalidFile        Code = "ERROR_INVALID_FILE"
	CodeCyclicMove         Code = "ERROR_CYCLIC_MOVE"
	CodeInvalidShare       Code = "ERROR_INVALID_SHARE"
	CodeShareAlreadyExists Code = "ERROR_SHARE_ALREADY_EXISTS"

	CodeUsernameTaken Code = "ERROR_USERNAME_ALREADY_TAKEN"
	CodeEmailTaken    Code = "ERROR_EMAIL_ALREADY_TAKEN"

	CodeInvalidCredentials  Code = "ERROR_INVALID_CREDENTIALS"
	CodeInvalidSession      Code = "ERROR_INVALID_SESSION"
	CodeNoAuthToken         Code = "ERROR_NO_AUTH_TOKEN"
	CodeInvalidAccessLevel  Code = "ERROR_INVALID_ACCESS_LEVEL"
	CodeNotOwnerOrShared    Code = "ERROR_NOT_OWNER_OR_SHARED"
	CodeInvalidRegistration Code = "ERROR_INVALID_REGISTRATION_KEY"
)

type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the stable code from err, or empty when err is not
// an application error.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
