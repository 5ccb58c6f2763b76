package filestorage

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the caller-facing classification of a storage error. Kinds are error values themselves so that
// errors.Is(err, filestorage.ErrNotFound) works for every *Error produced by a backend.
type Kind string

// Error returns a string representation of the kind
func (k Kind) Error() string { return string(k) }

const (
	// ErrNotFound - the file or folder does not exist
	ErrNotFound = Kind("NOT_FOUND")

	// ErrNotAFile - the path resolved to something other than a file
	ErrNotAFile = Kind("NOT_A_FILE")

	// ErrNotAFolder - the path resolved to something other than a folder
	ErrNotAFolder = Kind("NOT_A_FOLDER")

	// ErrFileAlreadyExists - a file with the same name already exists at the destination
	ErrFileAlreadyExists = Kind("FILE_ALREADY_EXISTS")

	// ErrDuplicateFolder - a folder with the same name already exists at the destination
	ErrDuplicateFolder = Kind("DUPLICATE_FOLDER")

	// ErrIllegalCharacters - the name contains characters the backend does not allow
	ErrIllegalCharacters = Kind("ILLEGAL_CHARACTERS")

	// ErrQuotaReached - the account has no remaining capacity
	ErrQuotaReached = Kind("QUOTA_REACHED")

	// ErrNoCreateAccess - the account may not write at the given path
	ErrNoCreateAccess = Kind("NO_CREATE_ACCESS")

	// ErrRateLimited - the backend throttled the request
	ErrRateLimited = Kind("RATE_LIMITED")

	// ErrAuthInvalid - the credential is missing, invalid, expired or revoked
	ErrAuthInvalid = Kind("AUTH_INVALID")

	// ErrProtocol - transport or protocol level failure
	ErrProtocol = Kind("PROTOCOL_ERROR")

	// ErrVersioningNotSupported - the backend cannot address a specific version
	ErrVersioningNotSupported = Kind("VERSIONING_NOT_SUPPORTED")

	// ErrOperationNotSupported - the operation is not available for this storage
	ErrOperationNotSupported = Kind("OPERATION_NOT_SUPPORTED")

	// ErrUnexpected - anything the translator could not classify
	ErrUnexpected = Kind("UNEXPECTED_ERROR")
)

// Kinds lists every kind of the taxonomy.
var Kinds = []Kind{
	ErrNotFound, ErrNotAFile, ErrNotAFolder, ErrFileAlreadyExists, ErrDuplicateFolder, ErrIllegalCharacters,
	ErrQuotaReached, ErrNoCreateAccess, ErrRateLimited, ErrAuthInvalid, ErrProtocol, ErrVersioningNotSupported,
	ErrOperationNotSupported, ErrUnexpected,
}

// Error is a storage error. It always carries a Kind plus whatever context was available when it was raised: the
// backend path, the display name of the item, the account and user, and the backend's own message.
type Error struct {
	Kind    Kind
	Path    string
	Name    string
	Account string
	User    string
	Message string
	Err     error
}

// NewError returns an *Error of the given kind for path.
func NewError(kind Kind, path string) *Error {
	return &Error{Kind: kind, Path: path}
}

// Error returns a string representation of the error
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Path != "" {
		fmt.Fprintf(&b, " path=%q", e.Path)
	}
	if e.Name != "" {
		fmt.Fprintf(&b, " name=%q", e.Name)
	}
	if e.Account != "" {
		fmt.Fprintf(&b, " account=%q", e.Account)
	}
	if e.User != "" {
		fmt.Fprintf(&b, " user=%q", e.User)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap returns the backend error the storage error was translated from, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// WithName sets the display name and returns e.
func (e *Error) WithName(name string) *Error {
	e.Name = name
	return e
}

// WithCause records the original error and its message and returns e.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	if err != nil && e.Message == "" {
		e.Message = err.Error()
	}
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsStorageError reports whether err already is (or wraps) a storage error.
func IsStorageError(err error) bool {
	return KindOf(err) != ""
}
