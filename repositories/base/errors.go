package base

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// RepositoryError represents a failed storage operation.
type RepositoryError struct {
	Operation string
	Table     string
	Message   string
	Cause     error
}

func (e *RepositoryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to %s %s: %s (caused by: %v)", e.Operation, e.Table, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Table, e.Message)
}

func (e *RepositoryError) Unwrap() error {
	return e.Cause
}

// EntityNotFoundError represents a lookup miss.
type EntityNotFoundError struct {
	Table      string
	Identifier string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("%s with %s not found", e.Table, e.Identifier)
}

// DuplicateEntityError represents a uniqueness violation.
type DuplicateEntityError struct {
	Table string
	Field string
	Value string
}

func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("%s with %s '%s' already exists", e.Table, e.Field, e.Value)
}

// NewRepositoryError creates a new repository error.
func NewRepositoryError(operation, table, message string, cause error) *RepositoryError {
	return &RepositoryError{
		Operation: operation,
		Table:     table,
		Message:   message,
		Cause:     cause,
	}
}

// NewEntityNotFoundError creates a new entity not found error.
func NewEntityNotFoundError(table, identifier string) *EntityNotFoundError {
	return &EntityNotFoundError{
		Table:      table,
		Identifier: identifier,
	}
}

// NewDuplicateEntityError creates a new duplicate entity error.
func NewDuplicateEntityError(table, field, value string) *DuplicateEntityError {
	return &DuplicateEntityError{
		Table: table,
		Field: field,
		Value: value,
	}
}

// IsEntityNotFound reports whether err is a lookup miss, including the raw
// GORM sentinel.
func IsEntityNotFound(err error) bool {
	var notFound *EntityNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateEntity reports whether err is a uniqueness violation.
func IsDuplicateEntity(err error) bool {
	var dup *DuplicateEntityError
	return errors.As(err, &dup)
}

// GetErrorMessage returns a user-facing message for a repository error.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
