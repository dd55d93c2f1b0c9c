package chat

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindDatabase
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDatabase:
		return "database"
	default:
		return "unknown"
	}
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is returned by every Service operation that fails.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KnownRequest reports whether a database error was caused by the request
// itself (a constraint violation) rather than the database being unavailable.
func (e *Error) KnownRequest() bool {
	return e.Kind == KindDatabase &&
		(errors.Is(e.Err, gorm.ErrForeignKeyViolated) || errors.Is(e.Err, gorm.ErrDuplicatedKey))
}

func validationError(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed", Fields: fields}
}

func notFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func databaseError(err error) *Error {
	return &Error{Kind: KindDatabase, Message: "Database operation failed", Err: err}
}
