package domain

import "errors"

// Error kinds. Every domain error wraps exactly one of these so callers can
// classify failures without matching individual sentinels.
var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidCredential = errors.New("invalid credential")
)

// Domain errors
var (
	ErrDuplicateEmail  = newError(ErrConflict, "that email already has an account")
	ErrUserNotFound    = newError(ErrNotFound, "no trainer was found with that email")
	ErrTrainerNotFound = newError(ErrNotFound, "trainer not found")
	ErrAccountNotFound = newError(ErrNotFound, "no email account was found for that address")
	ErrWrongPassword   = newError(ErrInvalidCredential, "the password you entered is incorrect")
	ErrUnauthenticated = newError(ErrInvalidCredential, "sign in to continue")

	ErrSelfRequest            = newError(ErrConflict, "you cannot send a request to yourself")
	ErrFriendRequestPending   = newError(ErrConflict, "a request is already pending for this trainer")
	ErrAlreadyFriends         = newError(ErrConflict, "you are already friends")
	ErrFriendRequestNotFound  = newError(ErrNotFound, "friend request not found")
	ErrAlreadyResolved        = newError(ErrConflict, "this request has already been answered")
	ErrInvalidResponseStatus  = newError(ErrValidation, "status must be accepted or declined")
	ErrServerNotFound         = newError(ErrNotFound, "server not found")
	ErrNotServerOwner         = newError(ErrForbidden, "only the server owner can send invites")
	ErrAlreadyMember          = newError(ErrConflict, "that trainer is already in this server")
	ErrServerFull             = newError(ErrConflict, "this server already has two members")
	ErrInvitePending          = newError(ErrConflict, "an invite is already pending for this trainer")
	ErrInviteNotFound         = newError(ErrNotFound, "invite not found")
	ErrNotInvitee             = newError(ErrForbidden, "only the invited trainer can answer this invite")
	ErrNotRecipient           = newError(ErrForbidden, "only the recipient can answer this request")
	ErrNotMember              = newError(ErrForbidden, "you are not a member of this server")
	ErrInsufficientSelections = newError(ErrConflict, "two trainers must select a pokemon first")
	ErrSameUser               = newError(ErrConflict, "both selections must be from different trainers")
	ErrConcurrentUpdate       = newError(ErrConflict, "the data changed while saving, please retry")
	ErrArchiveDisabled        = newError(ErrNotFound, "match archive is not enabled")

	ErrInvalidRequest = newError(ErrValidation, "invalid request")
	ErrInternalError  = errors.New("internal server error")
)

// Error is a domain failure carrying a human-readable message and its kind
type Error struct {
	kind error
	msg  string
}

func newError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Unwrap exposes the kind so errors.Is(err, ErrConflict) works
func (e *Error) Unwrap() error { return e.kind }

// ValidationError lists every field problem found in a request
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return "please fix the highlighted fields"
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflictError checks if an error is a conflict type error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidationError checks if an error is a validation type error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsForbiddenError checks if an error is a forbidden type error
func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsCredentialError checks if an error is an authentication failure
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrInvalidCredential)
}
