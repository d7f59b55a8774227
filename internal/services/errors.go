package services

import (
	"errors"
	"fmt"

	"github.com/catalogsync/api/internal/repositories"
)

var (
	// ErrInvalidInput indicates the caller supplied an invalid payload or parameter.
	ErrInvalidInput = errors.New("services: invalid input")
	// ErrNotFound indicates the addressed record does not exist.
	ErrNotFound = errors.New("services: not found")
	// ErrConflict indicates a uniqueness constraint would be violated.
	ErrConflict = errors.New("services: conflict")
)

// Error pairs a classification sentinel with the message returned to the caller.
type Error struct {
	kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.kind
}

func invalidInput(format string, args ...any) error {
	return &Error{kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func notFound(message string) error {
	return &Error{kind: ErrNotFound, Message: message}
}

func conflict(format string, args ...any) error {
	return &Error{kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// Message returns the caller-facing message of a classified error, or "" for anything else.
func Message(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return ""
}

// translateRepoError maps repository categories onto service errors. Errors already classified
// by a service (for example inside a transaction callback) pass through unchanged, and
// unclassified failures are returned as-is so the caller reports them as internal.
func translateRepoError(err error, notFoundMessage, conflictMessage string) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound() && notFoundMessage != "":
			return notFound(notFoundMessage)
		case repoErr.IsConflict() && conflictMessage != "":
			return conflict("%s", conflictMessage)
		}
	}
	return err
}
